package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/agent"
	"github.com/Data-Day-Solutions/bookworm-backend/pubsub"
)

// resetCommand clears the conversation without ending the session
const resetCommand = "/reset"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the library assistant",
	Long: `Start an interactive chat with the library assistant.

Type "exit" to leave and "/reset" to start a new conversation.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	index, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer index.Close()

	orch, err := openOrchestrator(ctx, index)
	if err != nil {
		return err
	}
	defer orch.Close()

	if verbose {
		watchSteps(ctx, orch.Broker(), cmd.ErrOrStderr())
	}

	return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), agent.NewSession(orch))
}

// runREPL reads prompts line by line until "exit" or end of input
func runREPL(ctx context.Context, in io.Reader, out io.Writer, session *agent.Session) error {
	fmt.Fprintln(out, "Welcome to your Agentic RAG Chatbot!")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == resetCommand:
			session.Reset()
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		reply, err := session.Ask(ctx, line)
		switch {
		case errors.Is(err, agent.ErrSessionEnded):
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case errors.Is(err, llm.ErrServiceUnavailable):
			slog.Error("chat request failed", "error", err)
			fmt.Fprintln(out, "Bot: Sorry, I can't reach the library right now. Please try again.")
		case err != nil:
			return err
		default:
			fmt.Fprintf(out, "Bot: 📚 %s 📚\n", reply.Text)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Goodbye!")
	return nil
}

// watchSteps prints the agent's progress until ctx ends
func watchSteps(ctx context.Context, steps pubsub.Subscriber[agent.Step], w io.Writer) {
	events := steps.Subscribe(ctx)
	go func() {
		for ev := range events {
			step := ev.Payload
			switch step.State {
			case agent.ToolCall:
				fmt.Fprintf(w, "  [%d] %s %s\n", step.Iteration, step.Tool, step.Arguments)
			case agent.Observing:
				fmt.Fprintf(w, "  [%d] observed %d chars\n", step.Iteration, len(step.Observation))
			}
		}
	}()
}
