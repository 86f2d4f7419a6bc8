package docpack

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"os"
	"time"
)

const manifestVersion = "1.0.0"

// WriterConfig configures a new Writer.
type WriterConfig struct {
	SourceRepo     string
	SourcePath     string
	EmbeddingModel string
	EmbeddingDim   int
	Generator      string
}

// Writer accumulates files, chunks, embeddings and symbols in an
// in-memory SQLite store and flattens them into a docpack zip on
// WriteToFile.
type Writer struct {
	conn     *sql.DB
	manifest Manifest
}

// NewWriter opens a fresh in-memory store and schema sized to
// cfg.EmbeddingDim.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	conn, err := openStore(":memory:", cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	generator := cfg.Generator
	if generator == "" {
		generator = "co2pack"
	}

	var sourceRepo, sourcePath *string
	if cfg.SourceRepo != "" {
		sourceRepo = &cfg.SourceRepo
	}
	if cfg.SourcePath != "" {
		sourcePath = &cfg.SourcePath
	}

	return &Writer{
		conn: conn,
		manifest: Manifest{
			Version:   manifestVersion,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			SourceRepo: sourceRepo,
			SourcePath: sourcePath,
			Generator: generator,
			Models:    ModelInfo{EmbeddingModel: cfg.EmbeddingModel},
		},
	}, nil
}

// SetRerankerModel records the optional reranker model in the manifest.
func (w *Writer) SetRerankerModel(model string) { w.manifest.Models.RerankerModel = &model }

// SetGeneratorModel records the optional documentation-generator model.
func (w *Writer) SetGeneratorModel(model string) { w.manifest.Models.GeneratorModel = &model }

// SetClusterCount records how many clusters the pipeline produced.
// Cluster assignments themselves are not part of the relational
// schema; only the count is surfaced, as an informational stat.
func (w *Writer) SetClusterCount(n int) { w.manifest.Stats.ClusterCount = uint32(n) }

// AddFile inserts or replaces a files row.
func (w *Writer) AddFile(f File) error {
	_, err := w.conn.Exec(
		`INSERT OR REPLACE INTO files (path, hash, size, language) VALUES (?, ?, ?, ?)`,
		f.Path, f.Hash, f.Size, f.Language,
	)
	if err != nil {
		return &RowInsertError{Table: "files", ID: f.Path, Cause: err}
	}
	return nil
}

// AddChunk inserts a chunks row and returns its assigned id.
func (w *Writer) AddChunk(c Chunk) (int64, error) {
	result, err := w.conn.Exec(
		`INSERT INTO chunks (file_path, content, start_line, end_line, language, chunk_type, name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.FilePath, c.Content, c.StartLine, c.EndLine, c.Language, c.ChunkType, c.Name,
	)
	if err != nil {
		return 0, &RowInsertError{Table: "chunks", ID: c.FilePath, Cause: err}
	}
	return result.LastInsertId()
}

// AddEmbedding inserts an embeddings row and its derived chunk_vectors
// entry for chunkID.
func (w *Writer) AddEmbedding(chunkID int64, vector []float32, model string) error {
	blob := float32SliceToBytes(vector)
	if _, err := w.conn.Exec(
		`INSERT OR REPLACE INTO embeddings (chunk_id, vector, model) VALUES (?, ?, ?)`,
		chunkID, blob, model,
	); err != nil {
		return &RowInsertError{Table: "embeddings", ID: chunkID, Cause: err}
	}
	if _, err := w.conn.Exec(
		`INSERT OR REPLACE INTO chunk_vectors (chunk_id, embedding) VALUES (?, ?)`,
		chunkID, blob,
	); err != nil {
		return &RowInsertError{Table: "chunk_vectors", ID: chunkID, Cause: err}
	}
	return nil
}

// AddSymbol inserts a symbols row and returns its assigned id.
func (w *Writer) AddSymbol(s Symbol) (int64, error) {
	result, err := w.conn.Exec(
		`INSERT INTO symbols (name, kind, file_path, line, signature, documentation)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.Name, s.Kind, s.FilePath, s.Line, s.Signature, s.Documentation,
	)
	if err != nil {
		return 0, &RowInsertError{Table: "symbols", ID: s.Name, Cause: err}
	}
	return result.LastInsertId()
}

func (w *Writer) updateStats() error {
	counts := []struct {
		query string
		dest  *uint32
	}{
		{"SELECT COUNT(*) FROM files", &w.manifest.Stats.FileCount},
		{"SELECT COUNT(*) FROM chunks", &w.manifest.Stats.ChunkCount},
		{"SELECT COUNT(*) FROM embeddings", &w.manifest.Stats.EmbeddingCount},
		{"SELECT COUNT(*) FROM symbols", &w.manifest.Stats.SymbolCount},
	}
	for _, c := range counts {
		if err := w.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return &SchemaInitError{Cause: err}
		}
	}

	var total sql.NullInt64
	if err := w.conn.QueryRow("SELECT COALESCE(SUM(size), 0) FROM files").Scan(&total); err != nil {
		return &SchemaInitError{Cause: err}
	}
	w.manifest.Stats.TotalSizeBytes = uint64(total.Int64)
	return nil
}

// WriteToFile flattens the in-memory store into a docpack zip at path:
// docpack.sqlite (via VACUUM INTO), manifest.json, readme.md and an
// empty assets/ directory entry.
func (w *Writer) WriteToFile(path string) error {
	if err := w.updateStats(); err != nil {
		return err
	}

	tempDBPath := path + ".tmp.db"
	os.Remove(tempDBPath)
	if _, err := w.conn.Exec("VACUUM INTO ?", tempDBPath); err != nil {
		return &ZipWriteError{Entry: "docpack.sqlite", Cause: err}
	}
	defer os.Remove(tempDBPath)

	out, err := os.Create(path)
	if err != nil {
		return &ZipWriteError{Entry: path, Cause: err}
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	dbBytes, err := os.ReadFile(tempDBPath)
	if err != nil {
		return &ZipWriteError{Entry: "docpack.sqlite", Cause: err}
	}
	if err := writeZipEntry(zw, "docpack.sqlite", dbBytes); err != nil {
		return err
	}

	manifestJSON, err := json.MarshalIndent(w.manifest, "", "  ")
	if err != nil {
		return &ZipWriteError{Entry: "manifest.json", Cause: err}
	}
	if err := writeZipEntry(zw, "manifest.json", manifestJSON); err != nil {
		return err
	}

	if err := writeZipEntry(zw, "readme.md", []byte(generateReadme(w.manifest))); err != nil {
		return err
	}

	if _, err := zw.Create("assets/"); err != nil {
		return &ZipWriteError{Entry: "assets/", Cause: err}
	}

	if err := zw.Close(); err != nil {
		return &ZipWriteError{Entry: path, Cause: err}
	}

	return os.Chmod(path, 0o666)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return &ZipWriteError{Entry: name, Cause: err}
	}
	if _, err := w.Write(data); err != nil {
		return &ZipWriteError{Entry: name, Cause: err}
	}
	return nil
}

// Close releases the writer's in-memory database connection.
func (w *Writer) Close() error { return w.conn.Close() }
