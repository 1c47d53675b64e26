package main

import (
	"context"
	"fmt"

	"github.com/2Jaeheon/cascading-hybrid-search-engine"
	"github.com/spf13/cobra"
)

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Load the index and warm up the sparse encoder ahead of serving queries",
	Args:  cobra.NoArgs,
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

		if _, err := engine.Load(); err != nil {
			return err
		}
		if err := engine.WarmUp(context.Background()); err != nil {
			return fmt.Errorf("warming up encoder: %w", err)
		}

		fmt.Println("engine warmed up")
		return nil
	},
}
