package tools

import (
	"fmt"
	"strings"
)

// ResultStatus represents the status of a tool execution
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// Metadata contains structured metadata about tool execution
type Metadata struct {
	Query      string   `json:"query,omitempty"`
	MatchCount int      `json:"match_count,omitempty"`
	TopScore   float32  `json:"top_score,omitempty"`
	Threshold  float32  `json:"threshold,omitempty"`
	Books      []string `json:"books,omitempty"`
}

// ToolResult represents a structured tool response
type ToolResult struct {
	Status   ResultStatus `json:"status"`
	Content  string       `json:"content"`
	Metadata *Metadata    `json:"metadata,omitempty"`
}

// String returns the formatted string representation for LLM consumption
func (r *ToolResult) String() string {
	var sb strings.Builder

	if r.Status == StatusError {
		sb.WriteString("[ERROR] ")
	}
	sb.WriteString(r.Content)

	if r.Metadata != nil {
		md := r.Metadata
		var attrs []string

		if md.Query != "" {
			attrs = append(attrs, fmt.Sprintf("query=%q", md.Query))
		}
		if md.MatchCount > 0 {
			attrs = append(attrs, fmt.Sprintf("matches=%d", md.MatchCount))
		}
		if md.TopScore > 0 {
			attrs = append(attrs, fmt.Sprintf("top_score=%.2f", md.TopScore))
		}
		if md.Threshold > 0 {
			attrs = append(attrs, fmt.Sprintf("threshold=%.2f", md.Threshold))
		}
		if len(md.Books) > 0 {
			attrs = append(attrs, fmt.Sprintf("books=%q", strings.Join(md.Books, ",")))
		}

		if len(attrs) > 0 {
			sb.WriteString(fmt.Sprintf("\n\n<metadata %s />", strings.Join(attrs, " ")))
		}
	}

	return sb.String()
}

// Success renders a successful tool result
func Success(content string, metadata *Metadata) string {
	return (&ToolResult{
		Status:   StatusSuccess,
		Content:  content,
		Metadata: metadata,
	}).String()
}

// Error renders an error tool result
func Error(content string) string {
	return (&ToolResult{
		Status:  StatusError,
		Content: content,
	}).String()
}
