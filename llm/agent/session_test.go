package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

func TestSession_Chat(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{answer("Try Matilda by Roald Dahl.")}}
	o := newTestOrchestrator(t, m, &stubSearcher{}, DefaultConfig())
	s := NewSession(o)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, AwaitingInput, s.State())
	assert.Equal(t, LibrarianPrompt, s.Conversation().History()[0].Content)

	resp := s.Chat(context.Background(), ChatRequest{UserPrompt: "A book for year 3?"})
	assert.Equal(t, MessageSuccess, resp.Message)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "Try Matilda by Roald Dahl.", *resp.Data)
	require.NotNil(t, s.LastReply())

	resp = s.Chat(context.Background(), ChatRequest{UserPrompt: ""})
	assert.Equal(t, MessageInvalid, resp.Message)
	assert.Nil(t, resp.Data)
}

func TestSession_Exit(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{answer("unused")}}
	o := newTestOrchestrator(t, m, &stubSearcher{}, DefaultConfig())
	s := NewSession(o)

	resp := s.Chat(context.Background(), ChatRequest{UserPrompt: "exit"})
	assert.Equal(t, MessageEnded, resp.Message)
	assert.Nil(t, resp.Data)
	assert.Equal(t, Ended, s.State())
	assert.Equal(t, 1, s.Conversation().Len())

	_, err := s.Ask(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.Zero(t, m.calls())

	s.Reset()
	assert.Equal(t, AwaitingInput, s.State())
	_, err = s.Ask(context.Background(), "hello")
	assert.NoError(t, err)
}

func TestSession_Unavailable(t *testing.T) {
	m := &scriptedModel{err: errors.New("provider down")}
	o := newTestOrchestrator(t, m, &stubSearcher{}, DefaultConfig())
	s := NewSession(o)

	resp := s.Chat(context.Background(), ChatRequest{UserPrompt: "hello"})
	assert.Equal(t, MessageUnavailable, resp.Message)
	require.NotNil(t, resp.Data)
	assert.Equal(t, AwaitingInput, s.State())
}

func TestSessions(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{answer("ok")}}
	o := newTestOrchestrator(t, m, &stubSearcher{}, DefaultConfig())
	reg := NewSessions(o, nil)

	a := reg.Open()
	b := reg.Open()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, reg.Len())

	resp, err := reg.Chat(context.Background(), a.ID, ChatRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, MessageSuccess, resp.Message)
	assert.Equal(t, 3, a.Conversation().Len())
	assert.Equal(t, 1, b.Conversation().Len())

	resp, err = reg.Chat(context.Background(), a.ID, ChatRequest{UserPrompt: "exit"})
	require.NoError(t, err)
	assert.Equal(t, MessageEnded, resp.Message)
	_, ok := reg.Get(a.ID)
	assert.False(t, ok, "ended sessions are dropped")

	_, err = reg.Chat(context.Background(), "missing", ChatRequest{UserPrompt: "hi"})
	assert.ErrorIs(t, err, llm.ErrInvalidInput)
}
