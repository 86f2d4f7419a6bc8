// Package chunker folds a stream of parser.SemanticUnit values into
// token-bounded chunks, merging small units together and splitting
// oversized units on line boundaries.
package chunker

import (
	"strings"

	"github.com/tormodhaugland/co2pack/internal/parser"
)

// DefaultMaxTokens is the default token budget per chunk.
const DefaultMaxTokens = 2000

// EstimateTokens is the sole token-count proxy used throughout this
// package: roughly 4 bytes per token, floored at 1 for any non-empty
// text.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Chunk is one token-bounded group of semantic units.
type Chunk struct {
	Text        string
	TokenCount  int
	StartOffset int
	EndOffset   int
	Kinds       []parser.SemanticKind
	UnitCount   int
}

// ChunkSemanticUnits merges and splits units to honor maxTokens,
// preserving unit order. Chunks only cross unit boundaries when
// merging; a unit whose own token estimate exceeds maxTokens is never
// merged with its neighbors and is split on its own.
func ChunkSemanticUnits(units []parser.SemanticUnit, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var chunks []Chunk
	var batch []parser.SemanticUnit
	batchTokens := 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(batch))
		batch = nil
		batchTokens = 0
	}

	for _, u := range units {
		t := EstimateTokens(u.Text)
		switch {
		case t > maxTokens:
			flush()
			chunks = append(chunks, splitLargeUnit(u, maxTokens)...)
		case batchTokens+t > maxTokens && len(batch) > 0:
			flush()
			batch = append(batch, u)
			batchTokens = t
		default:
			batch = append(batch, u)
			batchTokens += t
		}
	}
	flush()

	return chunks
}

func buildChunk(units []parser.SemanticUnit) Chunk {
	texts := make([]string, len(units))
	tokens := 0
	kindSeen := make(map[parser.SemanticKind]bool)
	var kinds []parser.SemanticKind
	for i, u := range units {
		texts[i] = u.Text
		tokens += EstimateTokens(u.Text)
		if !kindSeen[u.Kind] {
			kindSeen[u.Kind] = true
			kinds = append(kinds, u.Kind)
		}
	}
	return Chunk{
		Text:        strings.Join(texts, "\n\n"),
		TokenCount:  tokens,
		StartOffset: units[0].StartOffset,
		EndOffset:   units[len(units)-1].EndOffset,
		Kinds:       kinds,
		UnitCount:   len(units),
	}
}

// splitLargeUnit splits a single oversized unit on line boundaries,
// greedily accumulating lines under maxTokens. A line whose own token
// estimate exceeds maxTokens is emitted as its own chunk.
func splitLargeUnit(u parser.SemanticUnit, maxTokens int) []Chunk {
	lines := strings.Split(u.Text, "\n")

	var chunks []Chunk
	var acc []string
	accTokens := 0

	flush := func() {
		if len(acc) == 0 {
			return
		}
		text := strings.Join(acc, "\n")
		chunks = append(chunks, Chunk{
			Text:        text,
			TokenCount:  EstimateTokens(text),
			StartOffset: u.StartOffset,
			EndOffset:   u.StartOffset + len(text),
			Kinds:       []parser.SemanticKind{u.Kind},
			UnitCount:   1,
		})
		acc = nil
		accTokens = 0
	}

	for _, line := range lines {
		t := EstimateTokens(line)
		switch {
		case t > maxTokens:
			flush()
			chunks = append(chunks, Chunk{
				Text:        line,
				TokenCount:  t,
				StartOffset: u.StartOffset,
				EndOffset:   u.StartOffset + len(line),
				Kinds:       []parser.SemanticKind{u.Kind},
				UnitCount:   1,
			})
		case accTokens+t > maxTokens && len(acc) > 0:
			flush()
			acc = append(acc, line)
			accTokens = t
		default:
			acc = append(acc, line)
			accTokens += t
		}
	}
	flush()

	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{
			Text:        u.Text,
			TokenCount:  EstimateTokens(u.Text),
			StartOffset: u.StartOffset,
			EndOffset:   u.EndOffset,
			Kinds:       []parser.SemanticKind{u.Kind},
			UnitCount:   1,
		})
	}

	return chunks
}
