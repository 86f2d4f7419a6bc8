package sandbox

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestAddFileAndGet(t *testing.T) {
	b := NewBuilder()
	if err := b.AddFile("src/main.go", []byte("package main")); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	sb := b.Build()

	data, ok := sb.Get("src/main.go")
	if !ok {
		t.Fatal("expected file to be present")
	}
	if string(data) != "package main" {
		t.Errorf("got %q", data)
	}
}

func TestAddFileRejectsTraversal(t *testing.T) {
	b := NewBuilder()
	if err := b.AddFile("../etc/passwd", []byte("x")); err == nil {
		t.Error("expected error for traversal path")
	}
}

func TestAddFileEnforcesPerFileCap(t *testing.T) {
	b := NewBuilder()
	b.MaxFileSize = 4
	err := b.AddFile("big.txt", []byte("hello world"))
	if err == nil {
		t.Fatal("expected error for oversized file")
	}
	if _, ok := err.(*FileTooLargeError); !ok {
		t.Errorf("expected *FileTooLargeError, got %T", err)
	}
}

func TestAddFileEnforcesCumulativeCap(t *testing.T) {
	b := NewBuilder()
	b.MaxTotalSize = 10
	if err := b.AddFile("a.txt", []byte("12345")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := b.AddFile("b.txt", []byte("123456")); err == nil {
		t.Error("expected error when cumulative cap exceeded")
	}
}

func TestDuplicatePathLastWriterWins(t *testing.T) {
	b := NewBuilder()
	if err := b.AddFile("a.txt", []byte("first")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.AddFile("a.txt", []byte("second")); err != nil {
		t.Fatalf("add: %v", err)
	}
	sb := b.Build()
	data, ok := sb.Get("a.txt")
	if !ok || string(data) != "second" {
		t.Errorf("expected latest write to win, got %q ok=%v", data, ok)
	}
}

func TestWalkPrefix(t *testing.T) {
	b := NewBuilder()
	b.AddFile("src/a.go", []byte("a"))
	b.AddFile("src/sub/b.go", []byte("b"))
	b.AddFile("docs/readme.md", []byte("r"))
	sb := b.Build()

	entries := sb.WalkPrefix("src")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries under src, got %d", len(entries))
	}

	all := sb.WalkPrefix("")
	if len(all) != 3 {
		t.Fatalf("expected 3 entries with empty prefix, got %d", len(all))
	}
}

func TestFileCountAndTotalSize(t *testing.T) {
	b := NewBuilder()
	b.AddFile("a.txt", []byte("12345"))
	b.AddFile("b.txt", []byte("67"))
	sb := b.Build()

	if sb.FileCount() != 2 {
		t.Errorf("expected 2 files, got %d", sb.FileCount())
	}
	if sb.TotalSize() != 7 {
		t.Errorf("expected total size 7, got %d", sb.TotalSize())
	}
}

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestIngestZipBytes(t *testing.T) {
	data := makeZip(t, map[string]string{
		"main.go":     "package main",
		"lib/util.go": "package lib",
	})

	b := NewBuilder()
	if err := b.IngestZipBytes(data); err != nil {
		t.Fatalf("IngestZipBytes: %v", err)
	}
	sb := b.Build()

	if sb.FileCount() != 2 {
		t.Fatalf("expected 2 files, got %d", sb.FileCount())
	}
	if got, ok := sb.Get("main.go"); !ok || string(got) != "package main" {
		t.Errorf("unexpected main.go contents: %q ok=%v", got, ok)
	}
}

func TestIngestZipBytesRejectsMalformed(t *testing.T) {
	b := NewBuilder()
	err := b.IngestZipBytes([]byte("not a zip"))
	if err == nil {
		t.Fatal("expected error for malformed zip")
	}
	if _, ok := err.(*ZipParseFailedError); !ok {
		t.Errorf("expected *ZipParseFailedError, got %T", err)
	}
}

func TestIngestZipURLStripsTopLevelDir(t *testing.T) {
	data := makeZip(t, map[string]string{
		"myrepo-main/":        "",
		"myrepo-main/main.go": "package main",
		"myrepo-main/go.mod":  "module myrepo",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}))
	defer srv.Close()

	b := NewBuilder()
	if err := b.ingestZipURL(context.Background(), srv.URL, true); err != nil {
		t.Fatalf("ingestZipURL: %v", err)
	}
	sb := b.Build()

	if _, ok := sb.Get("myrepo-main/main.go"); ok {
		t.Error("expected top-level directory to be stripped")
	}
	if _, ok := sb.Get("main.go"); !ok {
		t.Error("expected stripped main.go to be present")
	}
}

func TestIngestZipURLFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewBuilder()
	err := b.ingestZipURL(context.Background(), srv.URL, true)
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if _, ok := err.(*DownloadFailedError); !ok {
		t.Errorf("expected *DownloadFailedError, got %T", err)
	}
}

func TestIngestLocalDir(t *testing.T) {
	tmp := t.TempDir()
	os.MkdirAll(filepath.Join(tmp, "node_modules", "pkg"), 0o755)
	os.WriteFile(filepath.Join(tmp, "node_modules", "pkg", "index.js"), []byte("skip me"), 0o644)
	os.MkdirAll(filepath.Join(tmp, "src"), 0o755)
	os.WriteFile(filepath.Join(tmp, "src", "main.go"), []byte("package main"), 0o644)
	os.WriteFile(filepath.Join(tmp, "README.md"), []byte("hello"), 0o644)

	b := NewBuilder()
	if err := b.IngestLocalDir(tmp, nil); err != nil {
		t.Fatalf("IngestLocalDir: %v", err)
	}
	sb := b.Build()

	if _, ok := sb.Get("node_modules/pkg/index.js"); ok {
		t.Error("expected node_modules to be excluded")
	}
	if _, ok := sb.Get("src/main.go"); !ok {
		t.Error("expected src/main.go to be ingested")
	}
	if _, ok := sb.Get("README.md"); !ok {
		t.Error("expected README.md to be ingested")
	}
}
