package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// scriptedModel replays canned responses and records every prompt it sees.
// WithTools returns a view sharing the same script.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	inputs    [][]*schema.Message
	bound     []*schema.ToolInfo
	toolsSeen []bool
	withTools bool
	parent    *scriptedModel
}

var _ model.ToolCallingChatModel = (*scriptedModel)(nil)

func (m *scriptedModel) root() *scriptedModel {
	if m.parent != nil {
		return m.parent
	}
	return m
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.inputs = append(r.inputs, input)
	r.toolsSeen = append(r.toolsSeen, m.withTools)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	// The last response repeats forever
	resp := r.responses[0]
	if len(r.responses) > 1 {
		r.responses = r.responses[1:]
	}
	return resp, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	r := m.root()
	r.mu.Lock()
	r.bound = infos
	r.mu.Unlock()
	return &scriptedModel{parent: r, withTools: true}, nil
}

func (m *scriptedModel) calls() int {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

func (m *scriptedModel) input(i int) []*schema.Message {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs[i]
}

func answer(text string) *schema.Message {
	return schema.AssistantMessage(text, nil)
}

func callTool(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

// stubSearcher answers every query with the same result or error
type stubSearcher struct {
	mu      sync.Mutex
	result  llm.RetrievalResult
	err     error
	queries []string
}

func (s *stubSearcher) Query(_ context.Context, text string, _ int, _ float32) (llm.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, text)
	return s.result, s.err
}

func bookChunk(isbn string, page int, content string, score float32) llm.ScoredChunk {
	return llm.ScoredChunk{
		Chunk: llm.Chunk{
			Content:  content,
			Metadata: llm.Metadata{llm.MetaISBN: isbn, llm.MetaPage: page, llm.MetaTitle: "The Chocolate Time Machine"},
		},
		Score: score,
	}
}
