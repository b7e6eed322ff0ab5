package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/tools"
	"github.com/Data-Day-Solutions/bookworm-backend/pubsub"
)

// State is a phase of the agent loop
type State int

const (
	AwaitingInput State = iota
	Planning
	ToolCall
	Observing
	Responding
	Ended
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "AWAITING_INPUT"
	case Planning:
		return "PLANNING"
	case ToolCall:
		return "TOOL_CALL"
	case Observing:
		return "OBSERVING"
	case Responding:
		return "RESPONDING"
	case Ended:
		return "ENDED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	// ExitSentinel ends a session when typed as the whole input
	ExitSentinel = "exit"

	// RetrievalUnavailable is the observation recorded when a tool call
	// fails because a backing service is down
	RetrievalUnavailable = "retrieval unavailable"

	// DefaultMaxIterations bounds the tool rounds of one request
	DefaultMaxIterations = 5

	defaultModelTimeout     = 60 * time.Second
	defaultObservationLimit = 12000

	fallbackAnswer = "I'm sorry, I couldn't put together an answer to that. Could you rephrase the question?"

	forceAnswerInstruction = "You have used all available lookups for this question. " +
		"Answer the teacher now using only the information gathered above, without calling any tools. " +
		"If it is not enough, say so politely."
)

// ErrSessionEnded is returned when the input is the exit sentinel
var ErrSessionEnded = errors.New("session ended")

// IsExit reports whether input is the exit sentinel, ignoring case and
// surrounding space
func IsExit(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), ExitSentinel)
}

// Step is one entry of a run's audit trail
type Step struct {
	State       State
	Iteration   int
	Tool        string `json:",omitempty"`
	Arguments   string `json:",omitempty"`
	Observation string `json:",omitempty"`
	At          time.Time
}

// Reply is the outcome of one request
type Reply struct {
	Text       string
	Citations  llm.RetrievalResult
	Steps      []Step
	Iterations int
}

// Config tunes the orchestrator
type Config struct {
	MaxIterations    int           // Tool rounds before an answer is forced
	ModelTimeout     time.Duration // Bound on each model call
	ObservationLimit int           // Characters kept per observation
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		MaxIterations:    DefaultMaxIterations,
		ModelTimeout:     defaultModelTimeout,
		ObservationLimit: defaultObservationLimit,
	}
}

// Orchestrator drives the plan, call tools, observe, respond loop for a
// request. It keeps no per-session state and may serve many sessions.
type Orchestrator struct {
	base    model.ToolCallingChatModel
	planner model.ToolCallingChatModel
	toolbox *tools.Toolbox
	config  Config
	logger  *slog.Logger
	broker  *pubsub.Broker[Step]
}

// NewOrchestrator binds the toolbox to the chat model.
func NewOrchestrator(chatModel model.ToolCallingChatModel, toolbox *tools.Toolbox, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if chatModel == nil {
		return nil, llm.InvalidInput("chat model is required")
	}
	if toolbox == nil {
		return nil, llm.InvalidInput("toolbox is required")
	}

	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = def.ModelTimeout
	}
	if cfg.ObservationLimit <= 0 {
		cfg.ObservationLimit = def.ObservationLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	planner, err := chatModel.WithTools(toolbox.Infos())
	if err != nil {
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	return &Orchestrator{
		base:    chatModel,
		planner: planner,
		toolbox: toolbox,
		config:  cfg,
		logger:  logger,
		broker:  pubsub.NewBroker[Step](),
	}, nil
}

// Broker publishes every step as it happens
func (o *Orchestrator) Broker() *pubsub.Broker[Step] {
	return o.broker
}

// Close stops step publication
func (o *Orchestrator) Close() {
	o.broker.Shutdown()
}

// run is the working state of one request
type run struct {
	o          *Orchestrator
	steps      []Step
	iterations int
}

func (r *run) record(s Step) {
	s.At = time.Now()
	r.steps = append(r.steps, s)
	r.o.broker.Publish(pubsub.CreatedEvent, s)
	r.o.logger.Debug("agent step", "state", s.State.String(), "iteration", s.Iteration, "tool", s.Tool)
}

// Run handles one user input against conv. The exit sentinel returns
// ErrSessionEnded without touching conv. On success exactly one user turn
// and one assistant turn are appended; when a model call fails the user
// turn stays and the error wraps llm.ErrServiceUnavailable.
func (o *Orchestrator) Run(ctx context.Context, conv ConversationStore, input string) (*Reply, error) {
	if IsExit(input) {
		o.broker.Publish(pubsub.FinishedEvent, Step{State: Ended, At: time.Now()})
		return nil, ErrSessionEnded
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, llm.InvalidInput("prompt cannot be empty")
	}

	if err := conv.Append(schema.UserMessage(input)); err != nil {
		return nil, err
	}

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{Name: "Librarian", Type: "Orchestrator", Component: "Agent"})
	ctx, cites := tools.WithCitations(ctx)

	r := &run{o: o}
	working := conv.History()

	var answer string
	for {
		r.record(Step{State: Planning, Iteration: r.iterations + 1})
		msg, err := o.generate(ctx, o.planner, "Planner", working)
		if err != nil {
			o.logger.Warn("planning failed", "error", err, "iteration", r.iterations+1)
			return nil, err
		}
		if len(msg.ToolCalls) == 0 {
			answer = msg.Content
			break
		}

		r.iterations++
		working = append(working, msg)
		for _, tc := range msg.ToolCalls {
			working = append(working, r.callTool(ctx, tc))
		}

		if r.iterations >= o.config.MaxIterations {
			o.logger.Info("tool budget exhausted, forcing an answer", "iterations", r.iterations)
			answer, err = r.forceAnswer(ctx, working)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	if strings.TrimSpace(answer) == "" {
		answer = fallbackAnswer
	}

	r.record(Step{State: Responding, Iteration: r.iterations})
	if err := conv.Append(schema.AssistantMessage(answer, nil)); err != nil {
		return nil, err
	}

	reply := &Reply{
		Text:       answer,
		Citations:  cites.Result(),
		Steps:      r.steps,
		Iterations: r.iterations,
	}
	o.broker.Publish(pubsub.FinishedEvent, Step{State: AwaitingInput, Iteration: r.iterations, At: time.Now()})
	o.logger.Info("request answered", "iterations", r.iterations, "citations", len(reply.Citations))
	return reply, nil
}

// callTool runs one requested tool call and turns the outcome, success or
// failure, into a tool message for the working context
func (r *run) callTool(ctx context.Context, tc schema.ToolCall) *schema.Message {
	o := r.o
	name, args := tc.Function.Name, tc.Function.Arguments
	r.record(Step{State: ToolCall, Iteration: r.iterations, Tool: name, Arguments: args})

	tctx := callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{Name: name, Type: "Toolbox", Component: components.ComponentOfTool})
	tctx = callbacks.OnStart(tctx, &tool.CallbackInput{ArgumentsInJSON: args})

	out, err := o.toolbox.Run(tctx, name, args)

	var observation string
	switch {
	case err == nil:
		callbacks.OnEnd(tctx, &tool.CallbackOutput{Response: out})
		observation = truncateObservation(out, o.config.ObservationLimit)
	case errors.Is(err, llm.ErrInvalidInput):
		callbacks.OnError(tctx, err)
		o.logger.Warn("tool call rejected", "tool", name, "error", err)
		observation = tools.Error(fmt.Sprintf("tool call rejected: %v. Available tools: %s",
			err, strings.Join(o.toolbox.Names(), ", ")))
	default:
		callbacks.OnError(tctx, err)
		o.logger.Warn("tool call failed", "tool", name, "error", err)
		observation = RetrievalUnavailable
	}

	r.record(Step{State: Observing, Iteration: r.iterations, Tool: name, Observation: observation})
	return schema.ToolMessage(observation, tc.ID, schema.WithToolName(name))
}

// forceAnswer asks the model without tools to answer from what has been
// gathered so far
func (r *run) forceAnswer(ctx context.Context, working []*schema.Message) (string, error) {
	r.record(Step{State: Planning, Iteration: r.iterations})
	msgs := append(working, schema.UserMessage(forceAnswerInstruction))
	msg, err := r.o.generate(ctx, r.o.base, "Responder", msgs)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// generate makes one model call under the model timeout. Failures are not
// retried.
func (o *Orchestrator) generate(ctx context.Context, m model.ToolCallingChatModel, name string, msgs []*schema.Message) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.ModelTimeout)
	defer cancel()

	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{Name: name, Type: "ChatModel", Component: components.ComponentOfChatModel})
	msg, err := m.Generate(ctx, msgs)
	if err != nil {
		return nil, llm.Unavailable("chat model", err)
	}
	if msg == nil {
		return nil, llm.Unavailable("chat model", errors.New("empty response"))
	}
	return msg, nil
}
