// Package sandbox builds an immutable, contiguous byte arena from an
// untrusted source (a GitHub repository archive, a local zip file, or
// a local directory tree), validating every entry against path
// traversal and size limits before it is admitted.
package sandbox

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	fsutil "github.com/tormodhaugland/co2pack/internal/fs"
	"github.com/tormodhaugland/co2pack/internal/sanitize"
)

const (
	// DefaultMaxFileSize bounds the size of any single ingested file.
	DefaultMaxFileSize = 50 * 1024 * 1024
	// DefaultMaxTotalSize bounds the sandbox's cumulative arena size.
	DefaultMaxTotalSize = 500 * 1024 * 1024
)

// FileTooLargeError reports a file or cumulative ingestion exceeding
// a configured size cap.
type FileTooLargeError struct {
	Size uint64
	Max  uint64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes exceeds limit of %d bytes", e.Size, e.Max)
}

// DownloadFailedError reports a failed archive download.
type DownloadFailedError struct {
	URL    string
	Status string
	Cause  error
}

func (e *DownloadFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("download failed for %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("download failed for %s: status %s", e.URL, e.Status)
}

func (e *DownloadFailedError) Unwrap() error { return e.Cause }

// ZipParseFailedError reports a malformed zip archive.
type ZipParseFailedError struct {
	Cause error
}

func (e *ZipParseFailedError) Error() string {
	return fmt.Sprintf("zip parse failed: %v", e.Cause)
}

func (e *ZipParseFailedError) Unwrap() error { return e.Cause }

// FileEntry records where a sandboxed file's bytes live in the arena.
type FileEntry struct {
	Offset      int
	Length      int
	VirtualPath string
}

// Builder accumulates files into a growing byte arena. It is not safe
// for concurrent use; build a Sandbox with Build() once ingestion is
// complete, and discard the Builder.
type Builder struct {
	MaxFileSize  int64
	MaxTotalSize int64

	arena []byte
	index map[string]FileEntry
}

// NewBuilder creates a Builder with the default size limits.
func NewBuilder() *Builder {
	return &Builder{
		MaxFileSize:  DefaultMaxFileSize,
		MaxTotalSize: DefaultMaxTotalSize,
		index:        make(map[string]FileEntry),
	}
}

// AddFile sanitizes rawPath and appends data to the arena, enforcing
// the per-file and cumulative size caps. A duplicate virtual path
// overwrites the index entry; the earlier bytes remain in the arena
// as dead weight (documented, non-critical, matches the reference
// implementation's last-writer-wins behavior).
func (b *Builder) AddFile(rawPath string, data []byte) error {
	vpath, err := sanitize.Path(rawPath)
	if err != nil {
		return err
	}

	size := int64(len(data))
	if size > b.MaxFileSize {
		return &FileTooLargeError{Size: uint64(size), Max: uint64(b.MaxFileSize)}
	}
	if int64(len(b.arena))+size > b.MaxTotalSize {
		return &FileTooLargeError{Size: uint64(len(b.arena)) + uint64(size), Max: uint64(b.MaxTotalSize)}
	}

	offset := len(b.arena)
	b.arena = append(b.arena, data...)
	b.index[vpath] = FileEntry{Offset: offset, Length: len(data), VirtualPath: vpath}
	return nil
}

// IngestZipBytes parses data as a zip archive and adds every
// non-directory entry through AddFile, unmodified.
func (b *Builder) IngestZipBytes(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ZipParseFailedError{Cause: err}
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := b.addZipEntry(f, f.Name); err != nil {
			return err
		}
	}
	return nil
}

// IngestGithubRepo downloads the GitHub archive for owner/repo at
// branch and ingests it, stripping each entry's leading top-level
// directory component the way GitHub's codeload archives add one.
func (b *Builder) IngestGithubRepo(ctx context.Context, owner, repo, branch string) error {
	url := fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/%s.zip", owner, repo, branch)
	return b.ingestZipURL(ctx, url, true)
}

// ingestZipURL downloads a zip archive from url and ingests its
// entries, optionally stripping each entry's leading path component
// (GitHub codeload archives wrap every entry in a single top-level
// directory named after the repo and ref).
func (b *Builder) ingestZipURL(ctx context.Context, url string, stripTopLevel bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DownloadFailedError{URL: url, Cause: err}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &DownloadFailedError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DownloadFailedError{URL: url, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DownloadFailedError{URL: url, Cause: err}
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ZipParseFailedError{Cause: err}
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		if stripTopLevel {
			_, rest, ok := strings.Cut(name, "/")
			if !ok || rest == "" {
				continue
			}
			name = rest
		}
		if err := b.addZipEntry(f, name); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) addZipEntry(f *zip.File, virtualPath string) error {
	rc, err := f.Open()
	if err != nil {
		return &ZipParseFailedError{Cause: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return &ZipParseFailedError{Cause: err}
	}
	return b.AddFile(virtualPath, data)
}

// IngestLocalDir walks a local directory tree and adds every file
// through AddFile, using path relative to root as the virtual path.
// Directories named in excludes are skipped entirely.
func (b *Builder) IngestLocalDir(root string, excludes *fsutil.ExcludeList) error {
	if excludes == nil {
		excludes = fsutil.BuildExcludeList(fsutil.ExcludeOptions{})
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excludes.MatchesDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if excludes.MatchesFile(rel) {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		return b.AddFile(rel, data)
	})
}

// Build freezes the builder into an immutable Sandbox. The builder
// should not be reused afterward.
func (b *Builder) Build() *Sandbox {
	return &Sandbox{arena: b.arena, index: b.index}
}

// Sandbox is an immutable, zero-copy store of sanitized files.
type Sandbox struct {
	arena []byte
	index map[string]FileEntry
}

// Get returns the bytes for virtualPath, or false if absent. The
// returned slice aliases the sandbox's arena and must not be mutated.
func (s *Sandbox) Get(virtualPath string) ([]byte, bool) {
	entry, ok := s.index[virtualPath]
	if !ok {
		return nil, false
	}
	return s.arena[entry.Offset : entry.Offset+entry.Length], true
}

// GetEntry returns the FileEntry for virtualPath, or false if absent.
func (s *Sandbox) GetEntry(virtualPath string) (FileEntry, bool) {
	entry, ok := s.index[virtualPath]
	return entry, ok
}

// List returns every file entry in the sandbox, in no particular
// order.
func (s *Sandbox) List() []FileEntry {
	entries := make([]FileEntry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	return entries
}

// WalkPrefix returns every file entry whose virtual path is under
// dir. An empty dir matches every entry.
func (s *Sandbox) WalkPrefix(dir string) []FileEntry {
	dir = strings.TrimSuffix(dir, "/")
	var entries []FileEntry
	for path, e := range s.index {
		if dir == "" || strings.HasPrefix(path, dir+"/") {
			entries = append(entries, e)
		}
	}
	return entries
}

// FileCount returns the number of files in the sandbox.
func (s *Sandbox) FileCount() int { return len(s.index) }

// TotalSize returns the arena's total byte length.
func (s *Sandbox) TotalSize() int { return len(s.arena) }
