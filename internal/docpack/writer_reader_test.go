package docpack

import (
	"path/filepath"
	"testing"
)

func buildSampleDocpack(t *testing.T) string {
	t.Helper()

	w, err := NewWriter(WriterConfig{
		SourceRepo:     "acme/widgets",
		EmbeddingModel: "google/embeddinggemma-300m",
		EmbeddingDim:   4,
	})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close()

	if err := w.AddFile(File{Path: "main.go", Hash: "abc123", Size: 42, Language: "go"}); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}

	chunkID, err := w.AddChunk(Chunk{
		FilePath: "main.go", Content: "func main() {}", StartLine: 1, EndLine: 1,
		Language: "go", ChunkType: "function", Name: "main",
	})
	if err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}

	if err := w.AddEmbedding(chunkID, []float32{0.1, 0.2, 0.3, 0.4}, "google/embeddinggemma-300m"); err != nil {
		t.Fatalf("AddEmbedding failed: %v", err)
	}

	if _, err := w.AddSymbol(Symbol{Name: "main", Kind: "function", FilePath: "main.go", Line: 1}); err != nil {
		t.Fatalf("AddSymbol failed: %v", err)
	}

	w.SetClusterCount(1)

	outPath := filepath.Join(t.TempDir(), "sample.docpack")
	if err := w.WriteToFile(outPath); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}
	return outPath
}

func TestWriterProducesReadableDocpack(t *testing.T) {
	path := buildSampleDocpack(t)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if r.Manifest.Stats.FileCount != 1 {
		t.Errorf("expected file_count 1, got %d", r.Manifest.Stats.FileCount)
	}
	if r.Manifest.Stats.ChunkCount != 1 {
		t.Errorf("expected chunk_count 1, got %d", r.Manifest.Stats.ChunkCount)
	}
	if r.Manifest.Stats.ClusterCount != 1 {
		t.Errorf("expected cluster_count 1, got %d", r.Manifest.Stats.ClusterCount)
	}

	chunks, err := r.ListChunks()
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Name != "main" {
		t.Errorf("expected chunk name 'main', got %q", chunks[0].Name)
	}

	vector, ok, err := r.GetEmbedding(chunks[0].ID)
	if err != nil {
		t.Fatalf("GetEmbedding failed: %v", err)
	}
	if !ok {
		t.Fatal("expected embedding to exist")
	}
	if len(vector) != 4 {
		t.Errorf("expected 4-dim vector, got %d", len(vector))
	}

	symbols, err := r.ListSymbols()
	if err != nil {
		t.Fatalf("ListSymbols failed: %v", err)
	}
	if len(symbols) != 1 || symbols[0].Name != "main" {
		t.Errorf("expected symbol 'main', got %v", symbols)
	}
}

func TestSearchSimilarFindsNearestVector(t *testing.T) {
	path := buildSampleDocpack(t)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	results, err := r.SearchSimilar([]float32{0.1, 0.2, 0.3, 0.4}, 1)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Chunk.Name != "main" {
		t.Errorf("expected closest chunk 'main', got %q", results[0].Chunk.Name)
	}
}

func TestSearchSubstringMatchesContent(t *testing.T) {
	path := buildSampleDocpack(t)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	chunks, err := r.SearchSubstring("func main", 10)
	if err != nil {
		t.Fatalf("SearchSubstring failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 matching chunk, got %d", len(chunks))
	}
}

func TestSearchSubstringNoMatch(t *testing.T) {
	path := buildSampleDocpack(t)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	chunks, err := r.SearchSubstring("nonexistent token", 10)
	if err != nil {
		t.Fatalf("SearchSubstring failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no matches, got %d", len(chunks))
	}
}
