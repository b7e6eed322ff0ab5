// Package cli provides the command-line interface for bookworm.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Data-Day-Solutions/bookworm-backend/config"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/providers"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string
	verbose    bool

	// Global config and logger, set up before any subcommand runs
	cfg      *config.Config
	logger   *slog.Logger
	cleanups []func()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bookworm",
	Short: "Library assistant for primary school teachers",
	Long: `Bookworm answers teachers' questions about the books in a school library.

Book records are chunked, embedded and stored in a vector index; a chat agent
searches that index to ground its answers in the library's own books.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		path := configPath
		if path == "" {
			path = os.Getenv("BOOKWORM_CONFIG")
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.LogLevel()
		if verbose {
			level = slog.LevelDebug
		}
		var closeLog func() error
		logger, closeLog = config.SetupLogger(cfg.Logging.File, level)
		slog.SetDefault(logger)
		cleanups = append(cleanups, func() { _ = closeLog() })

		closeTracing, err := providers.SetupCallbacks(cmd.Context(), providers.TracingConfig{
			APIToken:    cfg.Tracing.APIToken,
			WorkspaceID: cfg.Tracing.WorkspaceID,
		}, logger)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, closeTracing)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		runCleanups()
	},
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRun is skipped when a command fails
		runCleanups()
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $BOOKWORM_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(booksCmd)
}
