package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

const (
	// RetrieveToolName is the name the model uses to call the retriever.
	RetrieveToolName = "retrieve"

	// NoResultsMarker is the observation for a retrieval with no hits.
	NoResultsMarker = "no relevant documents found"

	DefaultTopK      = 5
	DefaultThreshold = float32(0.2)
)

const retrieveDescription = "Retrieve information related to a query from the library's book index. " +
	"Returns passages of books with their catalogue details (ISBN, title, authors, age range, reading level). " +
	"Use it for questions about specific books, their plots, characters, themes or suitability."

// Searcher is the part of the index client the retriever needs.
type Searcher interface {
	Query(ctx context.Context, text string, k int, threshold float32) (llm.RetrievalResult, error)
}

// RetrieverConfig fixes the retrieval parameters
type RetrieverConfig struct {
	TopK      int
	Threshold float32
}

// DefaultRetrieverConfig returns k=5, threshold=0.2
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{TopK: DefaultTopK, Threshold: DefaultThreshold}
}

// Retriever looks up book passages for a free-text query. It is also an
// eino tool.InvokableTool.
type Retriever struct {
	index  Searcher
	config RetrieverConfig
}

var _ tool.InvokableTool = (*Retriever)(nil)

// NewRetriever creates a retriever over index.
func NewRetriever(index Searcher, cfg RetrieverConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Retriever{index: index, config: cfg}
}

// Config returns the retrieval parameters in use.
func (r *Retriever) Config() RetrieverConfig {
	return r.config
}

// Retrieve queries the index and renders the hits for the model. An empty
// result is not an error; its summary is NoResultsMarker.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, llm.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, llm.InvalidInput("query cannot be empty")
	}

	result, err := r.index.Query(ctx, query, r.config.TopK, r.config.Threshold)
	if err != nil {
		return "", nil, err
	}

	if c := citationsFrom(ctx); c != nil {
		c.add(result)
	}
	return Serialize(result), result, nil
}

// Serialize renders each hit as a "Source:" line with its metadata followed
// by a "Content:" line, blocks separated by a blank line.
func Serialize(result llm.RetrievalResult) string {
	if len(result) == 0 {
		return NoResultsMarker
	}
	blocks := make([]string, len(result))
	for i, sc := range result {
		blocks[i] = fmt.Sprintf("Source: %s\nContent: %s", FormatMetadata(sc.Chunk.Metadata), sc.Chunk.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// FormatMetadata renders metadata as {'key': value, ...} with sorted keys.
func FormatMetadata(md llm.Metadata) string {
	keys := slices.Sorted(maps.Keys(md))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("'%s': %s", k, formatValue(md[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		return "'" + strings.ReplaceAll(val, "'", `\'`) + "'"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		if val {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(val)
	}
}

// RetrieveParams are the tool call arguments.
type RetrieveParams struct {
	Query string `json:"query"`
}

// Info describes the tool to the model.
func (r *Retriever) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: RetrieveToolName,
		Desc: retrieveDescription,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "What to look for, e.g. a title, a character, a theme or a reader's question",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun runs a retrieval for a tool call. Failures are returned as
// errors so the caller can classify them.
func (r *Retriever) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var params RetrieveParams
	if err := json.Unmarshal([]byte(argumentsInJSON), &params); err != nil {
		return "", llm.InvalidInput("bad %s arguments: %v", RetrieveToolName, err)
	}

	summary, result, err := r.Retrieve(ctx, params.Query)
	if err != nil {
		return "", err
	}
	if len(result) == 0 {
		return summary, nil
	}

	md := &Metadata{
		Query:      params.Query,
		MatchCount: len(result),
		TopScore:   result[0].Score,
		Threshold:  r.config.Threshold,
	}
	for _, sc := range result {
		if isbn := sc.Chunk.ISBN(); !slices.Contains(md.Books, isbn) {
			md.Books = append(md.Books, isbn)
		}
	}
	return Success(summary, md), nil
}

// Citations collects every chunk retrieved while serving one request.
type Citations struct {
	mu     sync.Mutex
	result llm.RetrievalResult
}

type citationsKey struct{}

// WithCitations returns a context whose retrievals are recorded in the
// returned collector.
func WithCitations(ctx context.Context) (context.Context, *Citations) {
	c := &Citations{}
	return context.WithValue(ctx, citationsKey{}, c), c
}

func citationsFrom(ctx context.Context) *Citations {
	c, _ := ctx.Value(citationsKey{}).(*Citations)
	return c
}

func (c *Citations) add(result llm.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sc := range result {
		dup := slices.ContainsFunc(c.result, func(x llm.ScoredChunk) bool {
			return x.Chunk.Key() == sc.Chunk.Key()
		})
		if !dup {
			c.result = append(c.result, sc)
		}
	}
}

// Result returns the distinct retrieved chunks by descending score.
func (c *Citations) Result() llm.RetrievalResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.result)
	slices.SortStableFunc(out, func(a, b llm.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}
