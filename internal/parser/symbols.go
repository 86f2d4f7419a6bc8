package parser

import (
	"regexp"
	"strings"
)

// Symbol is a shallow, regex-detected declaration extracted from a
// SemanticUnit of kind Function, Class, Module, or Unknown. This is
// deliberately not an AST-based extraction (language-aware parsing is
// out of scope) - it is a grep-grade heuristic that supplements
// the otherwise-unpopulated symbols table.
type Symbol struct {
	Name      string
	Kind      string
	FilePath  string
	Line      int
	Signature string
}

type symbolPattern struct {
	re   *regexp.Regexp
	kind string
}

// symbolPatterns maps a language name to an ordered list of regexes
// tried against a single line of normalized text. The first match
// wins.
var symbolPatterns = map[string][]symbolPattern{
	"go": {
		{regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(\w+)`), "function"},
		{regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)\b`), "class"},
	},
	"python": {
		{regexp.MustCompile(`^\s*def\s+(\w+)`), "function"},
		{regexp.MustCompile(`^\s*class\s+(\w+)`), "class"},
	},
	"javascript": {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)`), "function"},
		{regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`), "class"},
	},
	"typescript": {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)`), "function"},
		{regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`), "class"},
		{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)`), "class"},
	},
	"rust": {
		{regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+(\w+)`), "function"},
		{regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+(\w+)`), "class"},
	},
	"java": {
		{regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\]]+\s+(\w+)\s*\(`), "function"},
		{regexp.MustCompile(`^\s*(?:public\s+)?class\s+(\w+)`), "class"},
	},
}

// ExtractSymbols scans the semantic units of a ParseResult for
// declaration-shaped lines and returns one Symbol per match. It is
// skipped entirely for units whose kind is not Function, Class,
// Module, or Unknown (the kind UnknownParser gives every UTF-8 line),
// and for files whose language has no pattern table.
func ExtractSymbols(result ParseResult) []Symbol {
	patterns, ok := symbolPatterns[result.Metadata.Language]
	if !ok {
		return nil
	}

	var symbols []Symbol
	line := 1
	for _, unit := range result.SemanticUnits {
		if unit.Kind != KindFunction && unit.Kind != KindClass && unit.Kind != KindModule && unit.Kind != KindUnknown {
			line += strings.Count(unit.Text, "\n")
			continue
		}
		text := strings.TrimRight(unit.Text, "\n")
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(text)
			if m != nil {
				symbols = append(symbols, Symbol{
					Name:      m[1],
					Kind:      p.kind,
					FilePath:  result.Metadata.Path,
					Line:      line,
					Signature: strings.TrimSpace(text),
				})
				break
			}
		}
		line += strings.Count(unit.Text, "\n")
	}
	return symbols
}
