package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/2Jaeheon/cascading-hybrid-search-engine"
	"github.com/spf13/cobra"
)

var queryMode string
var queryTopK int
var queryBool bool

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a query against a built index",
	Long: "Run a query against a built index.\n\n" +
		"--mode selects the ranking strategy: hybrid (BM25 + SPLADE fused with\n" +
		"RRF), bm25 (positional index alone), or proximity (documents containing\n" +
		"every query term, ranked by how close together those terms appear).\n\n" +
		"--bool treats <text> as a whitespace-separated AND query over the\n" +
		"positional index, where a leading \"-\" negates a term, e.g.\n" +
		"`hybridengine query --bool \"machine learning -deprecated\"`.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine, err := retrieval.New(cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		loaded, err := engine.Load()
		if err != nil {
			return err
		}
		if !loaded {
			return fmt.Errorf("no index found at %s / %s — run `hybridengine build` first", cfg.IndexPath, cfg.SparseIndexPath)
		}

		var results []retrieval.Result
		switch {
		case queryBool:
			results, err = engine.SearchBoolean(strings.Fields(args[0]), queryTopK)
		case queryMode == "hybrid":
			results, err = engine.Search(context.Background(), args[0])
		case queryMode == "bm25":
			results, err = engine.SearchBM25Only(args[0], queryTopK)
		case queryMode == "proximity":
			results, err = engine.SearchProximity(args[0], queryTopK)
		default:
			return fmt.Errorf("unknown --mode %q (want hybrid, bm25, or proximity)", queryMode)
		}
		if err != nil {
			return err
		}

		printResults(results)
		return nil
	},
}

func printResults(results []retrieval.Result) {
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%2d. [%.4f] %s — %s\n", i+1, r.Score, r.DocID, title)
	}
}

func init() {
	queryCmd.Flags().StringVar(&queryMode, "mode", "hybrid", "retrieval mode: hybrid, bm25, or proximity")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 10, "number of results for --mode bm25/proximity and --bool")
	queryCmd.Flags().BoolVar(&queryBool, "bool", false, "treat <text> as a whitespace-separated AND query, \"-term\" to negate")
}
