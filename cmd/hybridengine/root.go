package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var configPath string

// buildID correlates every log line emitted by one process invocation,
// grounded on the session/request identifiers the rest of the example
// corpus mints with google/uuid.
var buildID = uuid.NewString()

var rootCmd = &cobra.Command{
	Use:   "hybridengine",
	Short: "Hybrid BM25 + learned sparse vector retrieval engine",
	Long: `hybridengine builds and queries a retrieval index that fuses classic
BM25 ranking over a positional inverted index with a SPLADE-style learned
sparse vector index, combined via Reciprocal Rank Fusion.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)).With(slog.String("build_id", buildID)))
	},
}

// Execute runs the CLI's root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML engine config file (defaults baked in if omitted)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(warmupCmd)
	rootCmd.AddCommand(interactiveCmd)
}
