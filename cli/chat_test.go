package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/agent"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/ingest"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/tools"
	"github.com/Data-Day-Solutions/bookworm-backend/pubsub"
)

// echoModel answers every prompt by echoing the last user turn
type echoModel struct {
	err error
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	last := input[len(input)-1]
	return schema.AssistantMessage("you said "+last.Content, nil), nil
}

func (m *echoModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *echoModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type emptySearcher struct{}

func (emptySearcher) Query(context.Context, string, int, float32) (llm.RetrievalResult, error) {
	return nil, nil
}

func newTestSession(t *testing.T, m model.ToolCallingChatModel) *agent.Session {
	t.Helper()
	box, err := tools.NewToolbox(context.Background(), tools.NewRetriever(emptySearcher{}, tools.DefaultRetrieverConfig()))
	require.NoError(t, err)
	orch, err := agent.NewOrchestrator(m, box, agent.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(orch.Close)
	return agent.NewSession(orch)
}

func TestREPL_ConversationAndExit(t *testing.T) {
	session := newTestSession(t, &echoModel{})
	in := strings.NewReader("hello\n\n/reset\nbooks about owls\nexit\nnever read\n")
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), in, &out, session))

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "Welcome to your Agentic RAG Chatbot!\n"))
	assert.Contains(t, got, "Bot: 📚 you said hello 📚\n")
	assert.Contains(t, got, "Conversation cleared.")
	assert.Contains(t, got, "Bot: 📚 you said books about owls 📚\n")
	assert.True(t, strings.HasSuffix(got, "Goodbye!\n"))
	assert.NotContains(t, got, "never read")

	assert.Equal(t, agent.Ended, session.State())
	// The reset dropped the first exchange
	assert.Equal(t, 3, session.Conversation().Len())
}

func TestREPL_EndOfInput(t *testing.T) {
	session := newTestSession(t, &echoModel{})
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), strings.NewReader("hi"), &out, session))
	assert.True(t, strings.HasSuffix(out.String(), "Goodbye!\n"))
}

func TestREPL_ModelUnavailable(t *testing.T) {
	session := newTestSession(t, &echoModel{err: errors.New("connection reset")})
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), strings.NewReader("hi\nexit\n"), &out, session))
	assert.Contains(t, out.String(), "Bot: Sorry, I can't reach the library right now.")
	assert.True(t, strings.HasSuffix(out.String(), "Goodbye!\n"))
}

func TestPrintReport(t *testing.T) {
	r := &ingest.IngestionReport{
		Books:   3,
		Skipped: []ingest.SkippedBook{{ISBN: "1", Title: "Empty", Reason: "no text"}},
		Batches: []ingest.BatchResult{
			{Index: 0, Chunks: 10, ISBNs: []string{"2"}},
			{Index: 1, Chunks: 4, ISBNs: []string{"3"}, Err: llm.Unavailable("upsert", errors.New("timeout"))},
		},
		ChunksWritten: 10,
	}

	var out bytes.Buffer
	printReport(&out, r)
	got := out.String()

	assert.Regexp(t, `Batches\s+2 \(1 failed\)`, got)
	assert.Contains(t, got, `skipped 1 "Empty": no text`)
	assert.Contains(t, got, "batch 1 (4 chunks, books [3]) failed")
}

// lockedBuffer is a bytes.Buffer safe for a concurrent writer and reader
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchSteps(t *testing.T) {
	broker := pubsub.NewBroker[agent.Step]()
	defer broker.Shutdown()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out lockedBuffer
	watchSteps(ctx, broker, &out)

	broker.Publish(pubsub.CreatedEvent, agent.Step{State: agent.Planning, Iteration: 0})
	broker.Publish(pubsub.CreatedEvent, agent.Step{State: agent.ToolCall, Iteration: 1, Tool: "retrieve", Arguments: `{"query":"dragons"}`})
	broker.Publish(pubsub.CreatedEvent, agent.Step{State: agent.Observing, Iteration: 1, Observation: "abcd"})

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "observed 4 chars")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "  [1] retrieve {\"query\":\"dragons\"}\n  [1] observed 4 chars\n", out.String())
}
