// Package parser normalizes sandboxed files into a language-tagged
// text representation plus a sequence of semantic units ready for
// chunking. The only parser implementation in scope is the generic
// fallback; language-aware AST parsing is out of scope.
package parser

import (
	"strings"
	"unicode/utf8"
)

// SemanticKind classifies a SemanticUnit.
type SemanticKind int

const (
	KindUnknown SemanticKind = iota
	KindBlob
	KindFunction
	KindClass
	KindModule
	KindComment
	KindParagraph
	KindSection
	KindObject
	KindConfig
)

func (k SemanticKind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindBlob:
		return "blob"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindModule:
		return "module"
	case KindComment:
		return "comment"
	case KindParagraph:
		return "paragraph"
	case KindSection:
		return "section"
	case KindObject:
		return "object"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// FileMetadata describes a sandboxed file as seen by a parser.
type FileMetadata struct {
	Path      string
	Extension string
	Language  string
	SizeBytes int
	LineCount int
	IsUTF8    bool
}

// SemanticUnit is one chunkable piece of a parsed file.
type SemanticUnit struct {
	Text        string
	StartOffset int
	EndOffset   int
	Kind        SemanticKind
}

// ParseResult is the output of running a Parser over one file.
type ParseResult struct {
	NormalizedText string
	Metadata       FileMetadata
	SemanticUnits  []SemanticUnit
}

// Parser normalizes one file's bytes into a ParseResult. Implementations
// must be safe to call concurrently from multiple goroutines.
type Parser interface {
	Parse(path string, data []byte) ParseResult
}

// extensionToLanguage maps lowercased extensions to a language name,
// merging the reference parser's table with the wider set carried by
// the teacher's chunk-level language detector.
var extensionToLanguage = map[string]string{
	"rs":     "rust",
	"py":     "python",
	"js":     "javascript",
	"jsx":    "javascript",
	"mjs":    "javascript",
	"cjs":    "javascript",
	"ts":     "typescript",
	"tsx":    "typescript",
	"go":     "go",
	"c":      "c",
	"h":      "c",
	"cpp":    "cpp",
	"cc":     "cpp",
	"cxx":    "cpp",
	"hpp":    "cpp",
	"java":   "java",
	"rb":     "ruby",
	"php":    "php",
	"cs":     "csharp",
	"swift":  "swift",
	"kt":     "kotlin",
	"kts":    "kotlin",
	"md":     "markdown",
	"markdown": "markdown",
	"json":   "json",
	"yaml":   "yaml",
	"yml":    "yaml",
	"toml":   "toml",
	"xml":    "xml",
	"html":   "html",
	"htm":    "html",
	"css":    "css",
	"scss":   "css",
	"sh":     "shell",
	"bash":   "shell",
	"zsh":    "shell",
	"sql":    "sql",
	"lua":    "lua",
	"scala":  "scala",
	"ex":     "elixir",
	"exs":    "elixir",
	"erl":    "erlang",
	"hs":     "haskell",
	"zig":    "zig",
	"proto":  "protobuf",
	"dockerfile": "docker",
}

// DetectLanguage returns the language name for a lowercased file
// extension (without the leading dot), or "unknown".
func DetectLanguage(extension string) string {
	if lang, ok := extensionToLanguage[strings.ToLower(extension)]; ok {
		return lang
	}
	return "unknown"
}

// ExtensionOf returns the lowercased extension of path, without the
// leading dot, or "" if path has none.
func ExtensionOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	// Guard against treating a leading-dot filename (".gitignore") as
	// having the whole name as its extension.
	slashIdx := strings.LastIndexByte(path, '/')
	if idx <= slashIdx {
		return ""
	}
	if idx == slashIdx+1 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}

// NewFileMetadata builds FileMetadata from a virtual path and its raw
// bytes.
func NewFileMetadata(path string, data []byte) FileMetadata {
	ext := ExtensionOf(path)
	return FileMetadata{
		Path:      path,
		Extension: ext,
		Language:  DetectLanguage(ext),
		SizeBytes: len(data),
		IsUTF8:    utf8.Valid(data),
	}
}
