// Package query backs the "query" CLI command: it embeds a query
// string against the same model a docpack was built with, ranks
// chunks by cosine similarity against the docpack's chunk_vectors ANN
// index, and falls back to an exact substring scan when no embedding
// endpoint is reachable.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/tormodhaugland/co2pack/internal/docpack"
	"github.com/tormodhaugland/co2pack/internal/embedder"
)

// Config controls a single Search call.
type Config struct {
	Limit          int
	MinScore       float64
	IncludeContent bool
	Substring      bool
}

// Result is one ranked chunk.
type Result struct {
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score"`
	ChunkType string  `json:"chunk_type"`
	Name      string  `json:"name,omitempty"`
	Language  string  `json:"language"`
	Content   string  `json:"content,omitempty"`
}

// Searcher ranks chunks in a docpack against a query.
type Searcher struct {
	reader *docpack.Reader
	embed  *embedder.Client
}

// NewSearcher creates a Searcher over reader, embedding queries
// through embed. embed may be nil, in which case Search always falls
// back to a substring scan.
func NewSearcher(reader *docpack.Reader, embed *embedder.Client) *Searcher {
	return &Searcher{reader: reader, embed: embed}
}

// Search ranks chunks by similarity to queryText, or by exact
// substring match when cfg.Substring is set or no embedding client is
// available.
func (s *Searcher) Search(ctx context.Context, queryText string, cfg Config) ([]Result, error) {
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}

	if cfg.Substring || s.embed == nil {
		return s.searchSubstring(queryText, cfg)
	}

	vectors, err := s.embed.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query: no vector returned")
	}

	dbResults, err := s.reader.SearchSimilar(vectors[0], cfg.Limit*2)
	if err != nil {
		return nil, fmt.Errorf("searching docpack: %w", err)
	}

	var results []Result
	for _, r := range dbResults {
		score := 1.0 - r.Distance
		if score < cfg.MinScore {
			continue
		}

		res := Result{
			FilePath:  r.Chunk.FilePath,
			StartLine: r.Chunk.StartLine,
			EndLine:   r.Chunk.EndLine,
			Score:     score,
			ChunkType: r.Chunk.ChunkType,
			Name:      r.Chunk.Name,
			Language:  r.Chunk.Language,
		}
		if cfg.IncludeContent {
			res.Content = r.Chunk.Content
		}
		results = append(results, res)

		if len(results) >= cfg.Limit {
			break
		}
	}

	return results, nil
}

func (s *Searcher) searchSubstring(queryText string, cfg Config) ([]Result, error) {
	chunks, err := s.reader.SearchSubstring(queryText, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		res := Result{
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			ChunkType: c.ChunkType,
			Name:      c.Name,
			Language:  c.Language,
		}
		if cfg.IncludeContent {
			res.Content = c.Content
		}
		results = append(results, res)
	}
	return results, nil
}

// FormatResult renders a Result as a human-readable block for CLI
// output.
func FormatResult(r Result, showContent bool) string {
	var sb strings.Builder

	lineRange := fmt.Sprintf("%d-%d", r.StartLine, r.EndLine)
	if r.StartLine == r.EndLine {
		lineRange = fmt.Sprintf("%d", r.StartLine)
	}

	sb.WriteString(fmt.Sprintf("%s:%s\n", r.FilePath, lineRange))
	sb.WriteString(fmt.Sprintf("  Score: %.2f | %s | %s", r.Score, r.Language, r.ChunkType))
	if r.Name != "" {
		sb.WriteString(fmt.Sprintf(" | %s", r.Name))
	}
	sb.WriteString("\n")

	if showContent && r.Content != "" {
		lines := strings.Split(r.Content, "\n")
		const maxLines = 5
		shown := lines
		if len(shown) > maxLines {
			shown = shown[:maxLines]
		}
		for _, line := range shown {
			sb.WriteString(fmt.Sprintf("  | %s\n", truncate(line, 80)))
		}
		if len(lines) > maxLines {
			sb.WriteString(fmt.Sprintf("  | ... (%d more lines)\n", len(lines)-maxLines))
		}
	}

	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
