package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/tormodhaugland/co2pack/internal/docpack"
	"github.com/tormodhaugland/co2pack/internal/embedder"
	"github.com/tormodhaugland/co2pack/internal/parser"
	"github.com/tormodhaugland/co2pack/internal/sandbox"
)

func buildTestSandbox(t *testing.T) *sandbox.Sandbox {
	t.Helper()
	b := sandbox.NewBuilder()
	if err := b.AddFile("main.go", []byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := b.AddFile("README.md", []byte("# hello\n\nsome docs\n")); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	return b.Build()
}

func fakeEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := struct {
			Embeddings [][]float32 `json:"embeddings"`
		}{}
		for range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3, 0.4})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestPipelineRunProducesDocpack(t *testing.T) {
	sb := buildTestSandbox(t)
	registry := parser.NewRegistry(&parser.UnknownParser{})

	srv := fakeEmbeddingServer(t)
	defer srv.Close()

	client := embedder.New(embedder.Config{
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
		Model:    embedder.ModelInfo{Name: "test-model", Dim: 4, MaxBatch: 10},
	})

	outPath := filepath.Join(t.TempDir(), "out.docpack")
	cfg := DefaultConfig()
	cfg.OutputPath = outPath
	cfg.NumClusters = 1

	p := New(sb, registry, client, cfg)

	progress := make(chan Progress, 64)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), progress) }()

	var phases []string
	for pr := range progress {
		phases = append(phases, pr.Phase)
	}
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(phases) == 0 || phases[len(phases)-1] != "complete" {
		t.Errorf("expected pipeline to report a final 'complete' phase, got %v", phases)
	}

	reader, err := docpack.Open(outPath)
	if err != nil {
		t.Fatalf("opening produced docpack: %v", err)
	}
	defer reader.Close()

	if reader.Manifest.Stats.FileCount != 2 {
		t.Errorf("expected 2 files in manifest, got %d", reader.Manifest.Stats.FileCount)
	}
	if reader.Manifest.Stats.ChunkCount == 0 {
		t.Error("expected at least 1 chunk in manifest")
	}
}

func failingEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "embedding backend unavailable", http.StatusInternalServerError)
	}))
}

func TestPipelineRunContinuesAfterEmbeddingBatchFailure(t *testing.T) {
	sb := buildTestSandbox(t)
	registry := parser.NewRegistry(&parser.UnknownParser{})

	srv := failingEmbeddingServer(t)
	defer srv.Close()

	client := embedder.New(embedder.Config{
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
		Model:    embedder.ModelInfo{Name: "test-model", Dim: 4, MaxBatch: 10},
	})

	outPath := filepath.Join(t.TempDir(), "out.docpack")
	cfg := DefaultConfig()
	cfg.OutputPath = outPath
	cfg.NumClusters = 1

	p := New(sb, registry, client, cfg)

	progress := make(chan Progress, 64)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), progress) }()

	for range progress {
	}
	if err := <-done; err != nil {
		t.Fatalf("Run should recover from a failed embedding batch, got: %v", err)
	}

	reader, err := docpack.Open(outPath)
	if err != nil {
		t.Fatalf("opening produced docpack: %v", err)
	}
	defer reader.Close()

	if reader.Manifest.Stats.FileCount != 2 {
		t.Errorf("expected 2 files in manifest, got %d", reader.Manifest.Stats.FileCount)
	}
	if reader.Manifest.Stats.EmbeddingCount != 0 {
		t.Errorf("expected no embeddings after a failed batch, got %d", reader.Manifest.Stats.EmbeddingCount)
	}
}

func TestPipelineRunSkipsEmbeddingsWhenConfigured(t *testing.T) {
	sb := buildTestSandbox(t)
	registry := parser.NewRegistry(&parser.UnknownParser{})

	outPath := filepath.Join(t.TempDir(), "out.docpack")
	cfg := DefaultConfig()
	cfg.OutputPath = outPath
	cfg.SkipEmbeddings = true

	p := New(sb, registry, nil, cfg)

	progress := make(chan Progress, 64)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), progress) }()

	for range progress {
	}
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	reader, err := docpack.Open(outPath)
	if err != nil {
		t.Fatalf("opening produced docpack: %v", err)
	}
	defer reader.Close()

	if reader.Manifest.Stats.EmbeddingCount != 0 {
		t.Errorf("expected no embeddings when skipped, got %d", reader.Manifest.Stats.EmbeddingCount)
	}
}

func TestPipelineRunEmptySandbox(t *testing.T) {
	sb := sandbox.NewBuilder().Build()
	registry := parser.NewRegistry(&parser.UnknownParser{})

	cfg := DefaultConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.docpack")

	p := New(sb, registry, nil, cfg)

	progress := make(chan Progress, 8)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), progress) }()

	for range progress {
	}
	if err := <-done; err != nil {
		t.Fatalf("expected no error for empty sandbox, got %v", err)
	}
}
