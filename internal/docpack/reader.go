package docpack

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Reader opens an existing docpack for querying.
type Reader struct {
	conn     *sql.DB
	Manifest Manifest
	tempPath string
}

// Open extracts docpack.sqlite and manifest.json from the zip at path
// and opens the extracted database.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ZipReadError{Entry: path, Cause: err}
	}
	defer zr.Close()

	manifestBytes, err := readZipEntry(&zr.Reader, "manifest.json")
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, &ZipReadError{Entry: "manifest.json", Cause: err}
	}

	dbBytes, err := readZipEntry(&zr.Reader, "docpack.sqlite")
	if err != nil {
		return nil, err
	}

	tempPath := path + ".extracted.db"
	if err := os.WriteFile(tempPath, dbBytes, 0o600); err != nil {
		return nil, &ZipReadError{Entry: "docpack.sqlite", Cause: err}
	}

	conn, err := sql.Open("sqlite3", tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, &ZipReadError{Entry: "docpack.sqlite", Cause: err}
	}
	conn.SetMaxOpenConns(1)

	return &Reader{conn: conn, Manifest: manifest, tempPath: tempPath}, nil
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, &ZipReadError{Entry: name, Cause: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &ZipReadError{Entry: name, Cause: err}
	}
	return data, nil
}

// Close closes the extracted database connection and removes the
// temporary file it was opened from.
func (r *Reader) Close() error {
	err := r.conn.Close()
	os.Remove(r.tempPath)
	return err
}

// ListChunks returns every chunk row, ordered by id.
func (r *Reader) ListChunks() ([]Chunk, error) {
	rows, err := r.conn.Query(
		`SELECT id, file_path, content, start_line, end_line, language, chunk_type, name
		 FROM chunks ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var name sql.NullString
		if err := rows.Scan(&c.ID, &c.FilePath, &c.Content, &c.StartLine, &c.EndLine, &c.Language, &c.ChunkType, &name); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Name = name.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetEmbedding returns the stored vector for a chunk, or false if none
// exists.
func (r *Reader) GetEmbedding(chunkID int64) ([]float32, bool, error) {
	var blob []byte
	err := r.conn.QueryRow("SELECT vector FROM embeddings WHERE chunk_id = ?", chunkID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting embedding for chunk %d: %w", chunkID, err)
	}
	return bytesToFloat32Slice(blob), true, nil
}

// SearchSimilar ranks chunks by cosine distance to vector using the
// chunk_vectors ANN index, returning at most limit results ordered by
// ascending distance.
func (r *Reader) SearchSimilar(vector []float32, limit int) ([]SimilarityResult, error) {
	blob := float32SliceToBytes(vector)

	rows, err := r.conn.Query(`
		SELECT c.id, c.file_path, c.content, c.start_line, c.end_line, c.language, c.chunk_type, c.name, v.distance
		FROM chunk_vectors v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, blob, limit)
	if err != nil {
		return nil, fmt.Errorf("searching similar chunks: %w", err)
	}
	defer rows.Close()

	var results []SimilarityResult
	for rows.Next() {
		var res SimilarityResult
		var name sql.NullString
		if err := rows.Scan(
			&res.Chunk.ID, &res.Chunk.FilePath, &res.Chunk.Content, &res.Chunk.StartLine,
			&res.Chunk.EndLine, &res.Chunk.Language, &res.Chunk.ChunkType, &name, &res.Distance,
		); err != nil {
			return nil, fmt.Errorf("scanning similarity result: %w", err)
		}
		res.Chunk.Name = name.String
		results = append(results, res)
	}
	return results, rows.Err()
}

// SearchSubstring scans chunk content for an exact substring match,
// used as a fallback when no embedding endpoint is reachable.
func (r *Reader) SearchSubstring(query string, limit int) ([]Chunk, error) {
	rows, err := r.conn.Query(
		`SELECT id, file_path, content, start_line, end_line, language, chunk_type, name
		 FROM chunks WHERE instr(content, ?) > 0 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var name sql.NullString
		if err := rows.Scan(&c.ID, &c.FilePath, &c.Content, &c.StartLine, &c.EndLine, &c.Language, &c.ChunkType, &name); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Name = name.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListSymbols returns every symbol row, ordered by name.
func (r *Reader) ListSymbols() ([]Symbol, error) {
	rows, err := r.conn.Query(
		`SELECT id, name, kind, file_path, line, signature, documentation FROM symbols ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var symbols []Symbol
	for rows.Next() {
		var s Symbol
		var sig, doc sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &s.Kind, &s.FilePath, &s.Line, &sig, &doc); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		s.Signature = sig.String
		s.Documentation = doc.String
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
