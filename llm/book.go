package llm

import "strings"

// PlaceholderFullText marks book rows whose full text was never filled in.
const PlaceholderFullText = "Full text goes here."

// BookRecord is a catalogue row as supplied to ingestion.
type BookRecord struct {
	ISBN            string `json:"isbn" yaml:"isbn"`
	Title           string `json:"title" yaml:"title"`
	Publisher       string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Year            int    `json:"year,omitempty" yaml:"year,omitempty"`
	Summary         string `json:"summary,omitempty" yaml:"summary,omitempty"`
	ExtendedSummary string `json:"extended_summary,omitempty" yaml:"extended_summary,omitempty"`
	FullText        string `json:"full_text,omitempty" yaml:"full_text,omitempty"`
	Authors         string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Categories      string `json:"categories,omitempty" yaml:"categories,omitempty"`
	LexileMeasure   string `json:"lexile_measure,omitempty" yaml:"lexile_measure,omitempty"`
	AgeRange        string `json:"age_range,omitempty" yaml:"age_range,omitempty"`

	// FullTextFile names a file holding the full text, relative to the
	// record file. Loaders read it into FullText.
	FullTextFile string `json:"full_text_file,omitempty" yaml:"full_text_file,omitempty"`
}

// FullSummary joins the summary and the extended summary.
func (b BookRecord) FullSummary() string {
	summary := strings.TrimSpace(b.Summary)
	ext := strings.TrimSpace(b.ExtendedSummary)
	switch {
	case ext == "":
		return summary
	case summary == "":
		return ext
	default:
		return summary + "\n\n" + ext
	}
}

// HasFullText reports whether the record carries real full text.
func (b BookRecord) HasFullText() bool {
	ft := strings.TrimSpace(b.FullText)
	return ft != "" && ft != PlaceholderFullText
}

// Text returns the blob to be chunked: the full text followed by the
// summary, or the summary alone when there is no full text.
func (b BookRecord) Text() string {
	summary := b.FullSummary()
	if !b.HasFullText() {
		return summary
	}
	if summary == "" {
		return b.FullText
	}
	return b.FullText + "\n" + summary
}

// Metadata returns the chunk metadata template of the book. The summary is
// left out; it is already part of the chunked text.
func (b BookRecord) Metadata() Metadata {
	md := Metadata{MetaISBN: b.ISBN}
	set := func(key, val string) {
		if val = strings.TrimSpace(val); val != "" {
			md[key] = val
		}
	}
	set(MetaTitle, b.Title)
	set(MetaPublisher, b.Publisher)
	set(MetaAuthors, b.Authors)
	set(MetaCategories, b.Categories)
	set(MetaLexileMeasure, b.LexileMeasure)
	set(MetaAgeRange, b.AgeRange)
	if b.Year != 0 {
		md[MetaYear] = b.Year
	}
	return md
}
