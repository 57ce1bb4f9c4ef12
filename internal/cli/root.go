package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/facetlabs/facet/internal/errs"
)

const version = "0.3.0"

var flagVerbose bool

var rootCmd = &cobra.Command{
	Use:   "facet",
	Short: "Evidence-grounded multi-aspect code review",
	Long: "Facet reviews code changes one aspect at a time (correctness, security,\n" +
		"testing, ...) through an external LLM capability, verifies every finding\n" +
		"against the diff it cites, and merges the results into a single summary\n" +
		"with deterministic exit codes.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Run executes the root command and returns the process exit code:
// 0 for success, 1 when the review is blocked, 2 for execution failures
// and usage errors.
func Run() int {
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(aspectsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return errs.ExitCode(err)
	}
	return 0
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// reserved for review output.
func newLogger() *zap.Logger {
	level := zapcore.WarnLevel
	if flagVerbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print facet version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "facet version %s\n", version)
	},
}
