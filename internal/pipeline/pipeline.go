// Package pipeline wires the sandbox, parser, chunker, embedder and
// clusterer together into the single driver the build CLI command
// runs: parse+chunk every sandboxed file across a worker pool, embed
// the resulting chunks in batches, cluster the embeddings, and
// persist everything into a docpack.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tormodhaugland/co2pack/internal/chunker"
	"github.com/tormodhaugland/co2pack/internal/clusterer"
	"github.com/tormodhaugland/co2pack/internal/docpack"
	"github.com/tormodhaugland/co2pack/internal/embedder"
	"github.com/tormodhaugland/co2pack/internal/parser"
	"github.com/tormodhaugland/co2pack/internal/sandbox"
)

// Config controls how a Pipeline processes a sandbox.
type Config struct {
	Workers         int
	MaxTokens       int
	SkipEmbeddings  bool
	NumClusters     int
	MaxClusterIters int
	ClusterSeed     uint64
	SourceRepo      string
	SourcePath      string
	OutputPath      string
}

// DefaultConfig returns sane defaults matching SPEC_FULL.md §4.8.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		MaxTokens:       chunker.DefaultMaxTokens,
		NumClusters:     8,
		MaxClusterIters: 50,
		ClusterSeed:     1,
	}
}

// Progress reports a pipeline's advancement through its phases. The
// CLI drains these over a channel to print status lines.
type Progress struct {
	Phase          string
	FilesTotal     int
	FilesProcessed int
	ChunksTotal    int
	ChunksEmbedded int
	CurrentFile    string
	Error          error
}

// Pipeline drives one build from a sandbox to a finished docpack.
type Pipeline struct {
	sandbox  *sandbox.Sandbox
	registry *parser.Registry
	embed    *embedder.Client
	cfg      Config
}

// New creates a Pipeline over sb, dispatching parse by extension
// through registry and embedding batches through embed.
func New(sb *sandbox.Sandbox, registry *parser.Registry, embed *embedder.Client, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = chunker.DefaultMaxTokens
	}
	return &Pipeline{sandbox: sb, registry: registry, embed: embed, cfg: cfg}
}

type fileUnit struct {
	path string
}

type fileResult struct {
	path   string
	result parser.ParseResult
	chunks []chunker.Chunk
	err    error
}

// chunkRow is one chunk awaiting embedding and persistence, still
// attached to its source file's metadata.
type chunkRow struct {
	filePath string
	language string
	chunk    chunker.Chunk
	embedID  int // index into the flat embedding slice once embedded
}

// Run processes every file in the sandbox and writes a docpack to
// p.cfg.OutputPath, reporting progress on progress (which Run closes
// when done, successfully or not).
func (p *Pipeline) Run(ctx context.Context, progress chan<- Progress) error {
	defer close(progress)

	entries := p.sandbox.List()
	sort.Slice(entries, func(i, j int) bool { return entries[i].VirtualPath < entries[j].VirtualPath })

	progress <- Progress{Phase: "scanning", FilesTotal: len(entries)}

	results := p.parseAndChunk(ctx, entries, progress)

	var rows []chunkRow
	var files []docpack.File
	var symbols []parser.Symbol

	for _, r := range results {
		if r.err != nil {
			continue
		}
		data, _ := p.sandbox.Get(r.path)
		hash := sha256.Sum256(data)
		files = append(files, docpack.File{
			Path:     r.path,
			Hash:     hex.EncodeToString(hash[:]),
			Size:     int64(len(data)),
			Language: r.result.Metadata.Language,
		})
		symbols = append(symbols, parser.ExtractSymbols(r.result)...)
		for _, c := range r.chunks {
			rows = append(rows, chunkRow{filePath: r.path, language: r.result.Metadata.Language, chunk: c})
		}
	}

	progress <- Progress{Phase: "embedding", FilesTotal: len(entries), ChunksTotal: len(rows)}

	var embeddings [][]float32
	embeddingModel := ""
	if !p.cfg.SkipEmbeddings && p.embed != nil && len(rows) > 0 {
		embeddings = p.embedRows(ctx, rows, progress, len(entries))
		embeddingModel = p.embed.ModelName()
	}

	var clusterResult clusterer.Result
	validEmbeddings := nonNilVectors(embeddings)
	if len(validEmbeddings) > 0 {
		progress <- Progress{Phase: "clustering", FilesTotal: len(entries), ChunksTotal: len(rows)}
		k := p.cfg.NumClusters
		if k > len(validEmbeddings) {
			k = len(validEmbeddings)
		}
		clusterResult = clusterer.Run(validEmbeddings, k, p.cfg.MaxClusterIters, p.cfg.ClusterSeed)
	}

	progress <- Progress{Phase: "storing", FilesTotal: len(entries), ChunksTotal: len(rows)}

	dim := 0
	if p.embed != nil {
		dim = p.embed.Dimension()
	}
	if dim == 0 {
		dim = 1
	}

	w, err := docpack.NewWriter(docpack.WriterConfig{
		SourceRepo:     p.cfg.SourceRepo,
		SourcePath:     p.cfg.SourcePath,
		EmbeddingModel: embeddingModel,
		EmbeddingDim:   dim,
	})
	if err != nil {
		return fmt.Errorf("creating docpack writer: %w", err)
	}
	defer w.Close()

	for _, f := range files {
		if err := w.AddFile(f); err != nil {
			return err
		}
	}

	for i, row := range rows {
		id, err := w.AddChunk(docpack.Chunk{
			FilePath:  row.filePath,
			Content:   row.chunk.Text,
			StartLine: 0,
			EndLine:   0,
			Language:  row.language,
			ChunkType: chunkTypeOf(row.chunk),
		})
		if err != nil {
			return err
		}
		if i < len(embeddings) && embeddings[i] != nil {
			if err := w.AddEmbedding(id, embeddings[i], embeddingModel); err != nil {
				return err
			}
		}
	}

	for _, s := range symbols {
		if _, err := w.AddSymbol(docpack.Symbol{
			Name: s.Name, Kind: s.Kind, FilePath: s.FilePath, Line: s.Line, Signature: s.Signature,
		}); err != nil {
			return err
		}
	}

	w.SetClusterCount(len(clusterResult.Clusters))

	if err := w.WriteToFile(p.cfg.OutputPath); err != nil {
		return fmt.Errorf("writing docpack: %w", err)
	}

	progress <- Progress{
		Phase: "complete", FilesTotal: len(entries), FilesProcessed: len(entries),
		ChunksTotal: len(rows), ChunksEmbedded: len(validEmbeddings),
	}
	return nil
}

// nonNilVectors returns the subset of vectors left in their original
// relative order after dropping the nil placeholders embedRows leaves
// behind for a batch it could not embed.
func nonNilVectors(vectors [][]float32) [][]float32 {
	out := make([][]float32, 0, len(vectors))
	for _, v := range vectors {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func chunkTypeOf(c chunker.Chunk) string {
	if len(c.Kinds) == 0 {
		return parser.KindUnknown.String()
	}
	return c.Kinds[0].String()
}

// parseAndChunk fans out over a bounded worker pool, mirroring the
// file-channel/result-channel/wait-group shape used elsewhere in this
// codebase for CPU-bound per-file work, then reorders results back
// into sandbox-entry order so persisted row order is deterministic.
func (p *Pipeline) parseAndChunk(ctx context.Context, entries []sandbox.FileEntry, progress chan<- Progress) []fileResult {
	type indexed struct {
		index int
		res   fileResult
	}

	jobs := make(chan fileUnit, len(entries))
	out := make(chan indexed, len(entries))

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				idx := pathIndex(entries, job.path)
				data, _ := p.sandbox.Get(job.path)
				parsed := p.registry.Parse(job.path, data)
				chunks := chunker.ChunkSemanticUnits(parsed.SemanticUnits, p.cfg.MaxTokens)
				out <- indexed{index: idx, res: fileResult{path: job.path, result: parsed, chunks: chunks}}
			}
		}()
	}

	go func() {
		for _, e := range entries {
			select {
			case <-ctx.Done():
			case jobs <- fileUnit{path: e.VirtualPath}:
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]fileResult, len(entries))
	processed := 0
	for r := range out {
		results[r.index] = r.res
		processed++
		progress <- Progress{
			Phase: "chunking", FilesTotal: len(entries), FilesProcessed: processed,
			CurrentFile: r.res.path,
		}
	}
	return results
}

func pathIndex(entries []sandbox.FileEntry, path string) int {
	for i, e := range entries {
		if e.VirtualPath == path {
			return i
		}
	}
	return -1
}

// embedRows batches chunk text through the embedder sequentially,
// matching the reference driver's non-parallel batch dispatch. A
// batch that fails to embed is logged and skipped rather than
// aborting the run: its slots in the returned slice are left nil, and
// the caller's existing nil checks omit them from the docpack and
// from clustering.
func (p *Pipeline) embedRows(ctx context.Context, rows []chunkRow, progress chan<- Progress, filesTotal int) [][]float32 {
	batchSize := p.embed.MaxBatch()
	if batchSize <= 0 {
		batchSize = 32
	}
	batcher := embedder.Batcher{BatchSize: batchSize}

	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.chunk.Text
	}

	batches := batcher.Split(texts)
	embeddings := make([][]float32, 0, len(rows))
	embedded := 0

	for _, batch := range batches {
		vectors, err := p.embed.EmbedBatch(ctx, batch)
		if err != nil {
			slog.Warn("skipping batch after embedding failure", "batch_size", len(batch), "error", err)
			embeddings = append(embeddings, make([][]float32, len(batch))...)
			continue
		}
		embeddings = append(embeddings, vectors...)
		embedded += len(vectors)
		progress <- Progress{
			Phase: "embedding", FilesTotal: filesTotal, ChunksTotal: len(rows),
			ChunksEmbedded: embedded,
		}
	}

	return embeddings
}
