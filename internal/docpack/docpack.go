// Package docpack persists an ingested repository as a single zip
// file: a relational SQLite store (files, chunks, embeddings,
// symbols) plus a JSON manifest and a generated readme.
package docpack

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlitevec.Auto()
}

// File is a row of the files table.
type File struct {
	Path     string
	Hash     string
	Size     int64
	Language string
}

// Chunk is a row of the chunks table.
type Chunk struct {
	ID        int64
	FilePath  string
	Content   string
	StartLine int
	EndLine   int
	Language  string
	ChunkType string
	Name      string
}

// Symbol is a row of the symbols table.
type Symbol struct {
	ID            int64
	Name          string
	Kind          string
	FilePath      string
	Line          int
	Signature     string
	Documentation string
}

// SimilarityResult pairs a chunk with its distance from a query
// vector in a SearchSimilar result set.
type SimilarityResult struct {
	Chunk    Chunk
	Distance float64
}

const schemaDDL = `
CREATE TABLE files (
    path TEXT PRIMARY KEY,
    hash TEXT,
    size INTEGER,
    language TEXT
);

CREATE TABLE chunks (
    id INTEGER PRIMARY KEY,
    file_path TEXT NOT NULL REFERENCES files(path),
    content TEXT NOT NULL,
    start_line INTEGER,
    end_line INTEGER,
    language TEXT,
    chunk_type TEXT,
    name TEXT
);

CREATE TABLE embeddings (
    chunk_id INTEGER PRIMARY KEY REFERENCES chunks(id),
    vector BLOB NOT NULL,
    model TEXT NOT NULL
);

CREATE TABLE symbols (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    file_path TEXT NOT NULL REFERENCES files(path),
    line INTEGER,
    signature TEXT,
    documentation TEXT
);

CREATE INDEX idx_chunks_file_path ON chunks(file_path);
CREATE INDEX idx_symbols_file_path ON symbols(file_path);
CREATE INDEX idx_symbols_name ON symbols(name);
`

// openStore opens a sqlite3 connection (":memory:" or a file path),
// initializes the relational schema and the chunk_vectors ANN index
// sized to dim, and serializes access to a single connection the way
// SQLite's single-writer model expects.
func openStore(dsn string, dim int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &SchemaInitError{Cause: err}
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schemaDDL); err != nil {
		conn.Close()
		return nil, &SchemaInitError{Cause: err}
	}

	vecDDL := fmt.Sprintf(`CREATE VIRTUAL TABLE chunk_vectors USING vec0(
		chunk_id INTEGER PRIMARY KEY,
		embedding float[%d] distance_metric=cosine
	)`, dim)
	if _, err := conn.Exec(vecDDL); err != nil {
		conn.Close()
		return nil, &SchemaInitError{Cause: err}
	}

	return conn, nil
}

func float32SliceToBytes(floats []float32) []byte {
	out := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func bytesToFloat32Slice(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
