package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tormodhaugland/co2pack/internal/config"
	"github.com/tormodhaugland/co2pack/internal/docpack"
	"github.com/tormodhaugland/co2pack/internal/embedder"
	"github.com/tormodhaugland/co2pack/internal/query"
)

var (
	queryDocpack      string
	queryText         string
	queryLimit        int
	queryMinScore     float64
	querySubstring    bool
	queryShowContent  bool
	queryEmbeddingURL string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search a docpack by embedding similarity or exact substring",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryDocpack, "docpack", "", "path to a .docpack file")
	queryCmd.Flags().StringVar(&queryText, "query", "", "search text")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 10, "maximum results")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "minimum similarity score (0-1, ignored for --substring)")
	queryCmd.Flags().BoolVar(&querySubstring, "substring", false, "exact substring search instead of embedding similarity")
	queryCmd.Flags().BoolVar(&queryShowContent, "show-content", false, "include a content preview in text output")
	queryCmd.Flags().StringVar(&queryEmbeddingURL, "embedding-endpoint", "", "embedding service endpoint (default: config default)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryDocpack == "" {
		return fmt.Errorf("%w: --docpack is required", ErrInvalidArgs)
	}
	if queryText == "" {
		return fmt.Errorf("%w: --query is required", ErrInvalidArgs)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	reader, err := docpack.Open(queryDocpack)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrInvalidArgs, queryDocpack, err)
	}
	defer reader.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var embed *embedder.Client
	if !querySubstring {
		embCfg := cfg.GetEmbeddingConfig()
		endpoint := embCfg.Endpoint
		if queryEmbeddingURL != "" {
			endpoint = queryEmbeddingURL
		}
		model := reader.Manifest.Models.EmbeddingModel
		if model == "" {
			model = embCfg.Model
		}
		embed = embedder.New(embedder.Config{
			Endpoint: endpoint,
			Timeout:  time.Duration(embCfg.TimeoutSeconds) * time.Second,
			Model:    embedder.ModelInfo{Name: model, Dim: embedder.DefaultModelInfo().Dim, MaxBatch: embedder.DefaultModelInfo().MaxBatch},
		})
		if err := embed.Ping(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: embedding service unreachable at %s, falling back to substring search: %v\n", endpoint, err)
			embed = nil
		}
	}

	searcher := query.NewSearcher(reader, embed)

	results, err := searcher.Search(ctx, queryText, query.Config{
		Limit:          queryLimit,
		MinScore:       queryMinScore,
		IncludeContent: queryShowContent || jsonOut,
		Substring:      querySubstring,
	})
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}
	for _, r := range results {
		fmt.Fprint(out, query.FormatResult(r, queryShowContent))
	}
	return nil
}
