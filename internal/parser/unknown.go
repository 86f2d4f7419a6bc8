package parser

import "strings"

// UnknownParser is the sole parser implementation in scope: a generic
// fallback that normalizes arbitrary bytes into UTF-8 text and splits
// it into one semantic unit per line.
type UnknownParser struct{}

// Parse implements Parser.
func (UnknownParser) Parse(path string, data []byte) ParseResult {
	metadata := NewFileMetadata(path, data)

	var normalized string
	if metadata.IsUTF8 {
		normalized = string(data)
	} else {
		normalized = extractPrintable(data)
	}

	kind := KindUnknown
	if !metadata.IsUTF8 {
		kind = KindBlob
	}

	units := chunkByLines(normalized, kind)
	metadata.LineCount = countLines(normalized)

	return ParseResult{
		NormalizedText: normalized,
		Metadata:       metadata,
		SemanticUnits:  units,
	}
}

// extractPrintable keeps only ASCII graphic and whitespace bytes,
// discarding everything else, as a best-effort text view of binary
// or non-UTF-8 data.
func extractPrintable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if isASCIIGraphic(c) || isASCIIWhitespace(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isASCIIGraphic(b byte) bool { return b > 0x20 && b < 0x7f }
func isASCIIWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// chunkByLines splits text into one SemanticUnit per line, reattaching
// the trailing newline where the line had one, so the unit texts
// concatenate back to text exactly. If text contains no newline but is
// non-empty, it is emitted as a single unit.
func chunkByLines(text string, kind SemanticKind) []SemanticUnit {
	if text == "" {
		return nil
	}

	var units []SemanticUnit
	offset := 0

	lines := strings.Split(text, "\n")
	// strings.Split on "a\nb\n" yields ["a","b",""] - the trailing
	// empty element is not a line.
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}

	for i, line := range lines {
		lineText := line
		if i < len(lines)-1 || strings.HasSuffix(text, "\n") {
			lineText += "\n"
		}
		start := offset
		end := offset + len(lineText)
		units = append(units, SemanticUnit{
			Text:        lineText,
			StartOffset: start,
			EndOffset:   end,
			Kind:        kind,
		})
		offset = end
	}

	if len(units) == 0 && text != "" {
		units = append(units, SemanticUnit{
			Text:        text,
			StartOffset: 0,
			EndOffset:   len(text),
			Kind:        kind,
		})
	}

	return units
}
