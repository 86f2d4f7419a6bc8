package docpack

import "fmt"

// Manifest is the top-level metadata record stored as manifest.json.
type Manifest struct {
	Version      string       `json:"version"`
	CreatedAt    string       `json:"created_at"`
	SourceRepo   *string      `json:"source_repo"`
	SourcePath   *string      `json:"source_path"`
	Generator    string       `json:"generator"`
	Stats        ManifestStats `json:"stats"`
	Models       ModelInfo    `json:"models"`
}

// ManifestStats summarizes the relational rows a docpack holds.
type ManifestStats struct {
	FileCount       uint32 `json:"file_count"`
	ChunkCount      uint32 `json:"chunk_count"`
	EmbeddingCount  uint32 `json:"embedding_count"`
	SymbolCount     uint32 `json:"symbol_count"`
	TotalSizeBytes  uint64 `json:"total_size_bytes"`
	ClusterCount    uint32 `json:"cluster_count"`
}

// ModelInfo records which models produced a docpack's derived data.
type ModelInfo struct {
	EmbeddingModel string  `json:"embedding_model"`
	RerankerModel  *string `json:"reranker_model"`
	GeneratorModel *string `json:"generator_model"`
}

func generateReadme(m Manifest) string {
	source := "Unknown"
	if m.SourceRepo != nil && *m.SourceRepo != "" {
		source = *m.SourceRepo
	} else if m.SourcePath != nil && *m.SourcePath != "" {
		source = *m.SourcePath
	}

	reranker := "None"
	if m.Models.RerankerModel != nil {
		reranker = *m.Models.RerankerModel
	}
	generator := "None"
	if m.Models.GeneratorModel != nil {
		generator = *m.Models.GeneratorModel
	}

	return fmt.Sprintf(`# Docpack

This is a docpack generated by co2pack.

## Metadata

- **Version**: %s
- **Created**: %s
- **Generator**: %s
- **Source**: %s

## Contents

- **Files**: %d
- **Code Chunks**: %d
- **Embeddings**: %d
- **Symbols**: %d
- **Clusters**: %d

## Models Used

- **Embedding**: %s
- **Reranker**: %s
- **Generator**: %s

## Structure

`+"```"+`
docpack.sqlite    - All structured data (files, chunks, embeddings, symbols)
manifest.json     - Top-level metadata
assets/           - Screenshots, diagrams, attachments
readme.md         - This file
`+"```"+`

## Usage

This docpack can be queried with "co2pack query" or any SQLite-compatible
database viewer.
`,
		m.Version, m.CreatedAt, m.Generator, source,
		m.Stats.FileCount, m.Stats.ChunkCount, m.Stats.EmbeddingCount, m.Stats.SymbolCount, m.Stats.ClusterCount,
		m.Models.EmbeddingModel, reranker, generator,
	)
}
