// Package fs holds filesystem helpers shared by the sandbox's local
// directory ingestion path.
package fs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// BuiltinExcludes contains the default glob patterns skipped when
// walking a local directory into a sandbox: build artifacts, dependency
// caches, and VCS metadata across major ecosystems.
var BuiltinExcludes = []string{
	// === Package managers & dependencies ===
	"node_modules/",
	"vendor/",
	".pnpm-store/",
	"bower_components/",

	// === Build outputs ===
	"target/",
	"dist/",
	"build/",
	"out/",
	"bin/",
	"obj/",
	"_build/",
	".output/",
	".nuxt/",
	".next/",
	".svelte-kit/",
	".vercel/",
	".netlify/",

	// === Test & coverage ===
	"coverage/",
	".nyc_output/",
	"htmlcov/",
	".tox/",
	".nox/",

	// === Caches ===
	".cache/",
	"__pycache__/",
	".pytest_cache/",
	".mypy_cache/",
	".ruff_cache/",
	".turbo/",
	".parcel-cache/",

	// === Virtual environments ===
	".venv/",
	"venv/",
	".virtualenv/",

	// === VCS metadata ===
	".git/",
}

// ExcludeList holds a computed effective exclude pattern set.
type ExcludeList struct {
	Patterns []string
}

// ExcludeOptions configures how an exclude list is assembled.
type ExcludeOptions struct {
	Additional []string
	Remove     []string
}

// BuildExcludeList computes the effective exclude list from defaults,
// additions, and removals.
func BuildExcludeList(opts ExcludeOptions) *ExcludeList {
	removeSet := make(map[string]bool, len(opts.Remove))
	for _, p := range opts.Remove {
		removeSet[p] = true
	}

	patterns := make([]string, 0, len(BuiltinExcludes)+len(opts.Additional))
	for _, p := range BuiltinExcludes {
		if !removeSet[p] {
			patterns = append(patterns, p)
		}
	}
	patterns = append(patterns, opts.Additional...)

	return &ExcludeList{Patterns: dedupePatterns(patterns)}
}

// ParseExcludeFile reads newline-separated exclude patterns from a
// file. Lines starting with # are comments, blank lines are ignored.
func ParseExcludeFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

func dedupePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}

// MatchesDir reports whether a directory name is covered by a
// trailing-slash entry in the exclude list.
func (e *ExcludeList) MatchesDir(name string) bool {
	for _, p := range e.Patterns {
		dir, isDir := strings.CutSuffix(p, "/")
		if !isDir {
			continue
		}
		if dir == name {
			return true
		}
	}
	return false
}

// MatchesFile reports whether a file's base name matches any
// non-directory glob in the exclude list.
func (e *ExcludeList) MatchesFile(path string) bool {
	base := filepath.Base(path)
	for _, p := range e.Patterns {
		if strings.HasSuffix(p, "/") {
			continue
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
