package parser

import "strings"

// Registry dispatches files to a registered Parser by extension,
// falling back to a default parser (normally UnknownParser) when no
// extension-specific parser is registered.
type Registry struct {
	fallback Parser
	byExt    map[string]Parser
}

// NewRegistry creates a Registry with fallback as its default parser.
func NewRegistry(fallback Parser) *Registry {
	return &Registry{fallback: fallback, byExt: make(map[string]Parser)}
}

// Register associates extension (without a leading dot, case
// insensitive) with parser, overwriting any previous registration.
func (r *Registry) Register(extension string, p Parser) {
	r.byExt[strings.ToLower(extension)] = p
}

// Select returns the parser registered for path's extension, or the
// fallback parser if none is registered.
func (r *Registry) Select(path string) Parser {
	ext := ExtensionOf(path)
	if p, ok := r.byExt[ext]; ok {
		return p
	}
	return r.fallback
}

// ParserCount returns the number of extension-specific parsers
// registered (excluding the fallback).
func (r *Registry) ParserCount() int { return len(r.byExt) }

// RegisteredExtensions returns every extension with a dedicated
// parser, in no particular order.
func (r *Registry) RegisteredExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// Parse selects and runs the appropriate parser for path.
func (r *Registry) Parse(path string, data []byte) ParseResult {
	return r.Select(path).Parse(path, data)
}
