package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// Response messages returned by Session.Chat
const (
	MessageSuccess     = "Successfully processed prompt."
	MessageEnded       = "Session ended."
	MessageInvalid     = "Invalid prompt."
	MessageUnavailable = "Service unavailable."

	unavailableApology = "Sorry, the library assistant is unavailable right now. Please try again in a moment."
)

// ChatRequest is one prompt sent to a session
type ChatRequest struct {
	UserPrompt string `json:"user_prompt"`
}

// ChatResponse mirrors the chat endpoint payload. Data carries the answer
// text, or nil when there is nothing to show.
type ChatResponse struct {
	Message string  `json:"message"`
	Data    *string `json:"data"`
}

// Session pairs a conversation with the orchestrator serving it
type Session struct {
	ID        string
	CreatedAt time.Time

	conv  *Conversation
	orch  *Orchestrator
	mu    sync.Mutex
	state State
	last  *Reply
}

// NewSession starts a session seeded with the librarian prompt
func NewSession(orch *Orchestrator) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		conv:      NewConversation(LibrarianPrompt),
		orch:      orch,
		state:     AwaitingInput,
	}
}

// State returns where the session is in its lifecycle
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation exposes the session transcript
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// LastReply returns the most recent successful reply, or nil
func (s *Session) LastReply() *Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Ask runs one prompt. Requests on a session are serialized.
func (s *Session) Ask(ctx context.Context, prompt string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Ended {
		return nil, ErrSessionEnded
	}

	reply, err := s.orch.Run(ctx, s.conv, prompt)
	if errors.Is(err, ErrSessionEnded) {
		s.state = Ended
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.last = reply
	return reply, nil
}

// Chat is Ask wrapped in the chat endpoint's response shape
func (s *Session) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	reply, err := s.Ask(ctx, req.UserPrompt)
	switch {
	case err == nil:
		text := reply.Text
		return ChatResponse{Message: MessageSuccess, Data: &text}
	case errors.Is(err, ErrSessionEnded):
		return ChatResponse{Message: MessageEnded}
	case errors.Is(err, llm.ErrInvalidInput):
		return ChatResponse{Message: MessageInvalid}
	default:
		apology := unavailableApology
		return ChatResponse{Message: MessageUnavailable, Data: &apology}
	}
}

// Reset clears the transcript back to the system turn and reopens an
// ended session
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.Reset()
	s.state = AwaitingInput
	s.last = nil
}

// Sessions tracks live sessions by ID
type Sessions struct {
	orch   *Orchestrator
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates an empty session registry
func NewSessions(orch *Orchestrator, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		orch:     orch,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open starts and registers a new session
func (m *Sessions) Open() *Session {
	s := NewSession(m.orch)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Info("session opened", "session", s.ID)
	return s
}

// Get looks a session up by ID
func (m *Sessions) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close forgets a session
func (m *Sessions) Close(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.logger.Info("session closed", "session", id)
	}
}

// Len returns the number of live sessions
func (m *Sessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Chat routes a request to the session with the given ID. Sessions that
// end are dropped from the registry.
func (m *Sessions) Chat(ctx context.Context, id string, req ChatRequest) (ChatResponse, error) {
	s, ok := m.Get(id)
	if !ok {
		return ChatResponse{}, llm.InvalidInput("unknown session %q", id)
	}
	resp := s.Chat(ctx, req)
	if s.State() == Ended {
		m.Close(id)
	}
	return resp, nil
}
