package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

var (
	booksLimit  int
	booksOffset int
)

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Inspect and manage indexed books",
}

var booksListCmd = &cobra.Command{
	Use:   "list [isbn]",
	Short: "List indexed chunks, optionally of one book",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		index, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer index.Close()

		filter := llm.ListFilter{Limit: booksLimit, Offset: booksOffset}
		if len(args) == 1 {
			filter.ISBN = args[0]
		}
		chunks, err := index.List(ctx, filter)
		if err != nil {
			return err
		}
		total, err := index.Count(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ISBN\tPAGE\tTITLE\tCHARS")
		for _, c := range chunks {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", c.ISBN(), c.Page(), c.Metadata.String(llm.MetaTitle), len([]rune(c.Content)))
		}
		_ = tw.Flush()
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d chunks\n", len(chunks), total)
		return nil
	},
}

var booksDeleteCmd = &cobra.Command{
	Use:   "delete <isbn>",
	Short: "Remove a book from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		index, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer index.Close()

		n, err := index.DeleteBook(ctx, args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Book %s is not indexed\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d chunks of %s\n", n, args[0])
		return nil
	},
}

func init() {
	booksListCmd.Flags().IntVarP(&booksLimit, "limit", "n", 50, "max chunks to show")
	booksListCmd.Flags().IntVar(&booksOffset, "offset", 0, "chunks to skip")

	booksCmd.AddCommand(booksListCmd)
	booksCmd.AddCommand(booksDeleteCmd)
}
