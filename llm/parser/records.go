package parser

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// JSONParser reads a JSON array of records, a single record, or a stream of
// concatenated records (JSON lines)
type JSONParser struct {
	ft FileType
}

// NewJSONParser creates a parser for .json files
func NewJSONParser() *JSONParser {
	return &JSONParser{ft: FileTypeJSON}
}

// NewJSONLinesParser creates a parser for .jsonl files
func NewJSONLinesParser() *JSONParser {
	return &JSONParser{ft: FileTypeJSONL}
}

func (p *JSONParser) FileType() FileType {
	return p.ft
}

func (p *JSONParser) Parse(ctx context.Context, r io.Reader) ([]llm.BookRecord, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var books []llm.BookRecord
		if err := dec.Decode(&books); err != nil {
			return nil, fmt.Errorf("failed to decode JSON array: %w", err)
		}
		return books, nil
	}

	var books []llm.BookRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var b llm.BookRecord
		err := dec.Decode(&b)
		if errors.Is(err, io.EOF) {
			return books, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(books)+1, err)
		}
		books = append(books, b)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// YAMLParser reads YAML documents, each either a list of records or a
// single record
type YAMLParser struct{}

// NewYAMLParser creates a parser for .yaml and .yml files
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) FileType() FileType {
	return FileTypeYAML
}

func (p *YAMLParser) Parse(ctx context.Context, r io.Reader) ([]llm.BookRecord, error) {
	dec := yaml.NewDecoder(r)

	var books []llm.BookRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return books, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}

		node := &doc
		if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
			node = node.Content[0]
		}

		switch node.Kind {
		case yaml.SequenceNode:
			var list []llm.BookRecord
			if err := node.Decode(&list); err != nil {
				return nil, fmt.Errorf("failed to decode YAML list: %w", err)
			}
			books = append(books, list...)
		case yaml.MappingNode:
			var b llm.BookRecord
			if err := node.Decode(&b); err != nil {
				return nil, fmt.Errorf("failed to decode YAML record: %w", err)
			}
			books = append(books, b)
		default:
			return nil, fmt.Errorf("unexpected YAML node at line %d", node.Line)
		}
	}
}
