package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Data-Day-Solutions/bookworm-backend/llm/agent"
)

var askCitations bool

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send a single prompt and print the chat response as JSON",
	Long: `Send one prompt to a fresh session and print the response in the
chat endpoint format: {"message": ..., "data": ...}.

Examples:
  bookworm ask "Can you recommend a funny book for year 4?"
  bookworm ask "Which books are about the Romans?" --citations`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askCitations, "citations", false, "include the retrieved passages")
}

type askOutput struct {
	agent.ChatResponse
	Citations any `json:"citations,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	session := agent.NewSession(orch)
	out := askOutput{ChatResponse: session.Chat(ctx, agent.ChatRequest{UserPrompt: args[0]})}
	if askCitations {
		if reply := session.LastReply(); reply != nil && len(reply.Citations) > 0 {
			out.Citations = reply.Citations
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
