package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/2Jaeheon/cascading-hybrid-search-engine"
	"github.com/spf13/cobra"
)

// corpusRecord accepts both a plain {doc_id, text, title} record and the
// enriched {doc_id, original_text, generated_queries, text, title} schema a
// neural expansion pass produces; Text wins over OriginalText when both are
// present.
type corpusRecord struct {
	DocID          string `json:"doc_id"`
	Text           string `json:"text"`
	OriginalText   string `json:"original_text"`
	Title          string `json:"title"`
	GeneratedQueries []string `json:"generated_queries"`
}

var buildCmd = &cobra.Command{
	Use:   "build <corpus.jsonl>",
	Short: "Build the positional and sparse indices from a JSON-lines corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening corpus: %w", err)
		}
		defer f.Close()

		var docs []retrieval.Corpus
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec corpusRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("parsing corpus line: %w", err)
			}
			text := rec.Text
			if text == "" {
				text = rec.OriginalText
			}
			docs = append(docs, retrieval.Corpus{DocID: rec.DocID, Text: text, Title: rec.Title})
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		slog.Info("loaded corpus", slog.Int("documents", len(docs)))

		engine, err := retrieval.New(cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		if err := engine.Build(context.Background(), docs); err != nil {
			return fmt.Errorf("building index: %w", err)
		}

		slog.Info("build complete",
			slog.String("index_path", cfg.IndexPath),
			slog.String("sparse_index_path", cfg.SparseIndexPath))
		return nil
	},
}
