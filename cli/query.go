package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the book index directly",
	Long: `Run the retrieval tool once and print what the assistant would see.

Examples:
  bookworm query "chocolate time machine"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	index, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer index.Close()

	summary, result, err := newRetriever(index).Retrieve(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary)
	if verbose {
		for _, sc := range result {
			fmt.Fprintf(out, "# %s score=%.3f\n", sc.Chunk.Key(), sc.Score)
		}
	}
	return nil
}
