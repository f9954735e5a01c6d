// Package chunker splits document text into boundary-aware retrieval units.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultTargetSize is the chunk length, in characters, used when none is configured.
const DefaultTargetSize = 500

// minBoundaryRatio is how far into a window a boundary must sit to be used.
const minBoundaryRatio = 0.7

// boundaries are tried in order; the first one found past the threshold wins.
var boundaries = []string{". ", "! ", "? ", "\n\n"}

// Split cuts text into chunks of at most targetSize characters, preferring to
// end a chunk on a sentence or paragraph boundary. Text no longer than
// targetSize is returned as a single unchanged chunk. Longer text yields
// trimmed, non-empty chunks in reading order.
func Split(text string, targetSize int) []string {
	if text == "" {
		return nil
	}
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}

	runes := []rune(text)
	if len(runes) <= targetSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + targetSize
		if end >= len(runes) {
			chunks = appendTrimmed(chunks, string(runes[start:]))
			break
		}

		end = start + cutPoint(string(runes[start:end]), targetSize)
		chunks = appendTrimmed(chunks, string(runes[start:end]))
		start = end
	}
	return chunks
}

// cutPoint returns the number of characters of window to keep: just past the
// accepted boundary marker, or the whole window for a hard cut.
func cutPoint(window string, targetSize int) int {
	threshold := float64(targetSize) * minBoundaryRatio
	for _, marker := range boundaries {
		pos := strings.LastIndex(window, marker)
		if pos < 0 {
			continue
		}
		runePos := utf8.RuneCountInString(window[:pos])
		if float64(runePos) > threshold {
			return runePos + utf8.RuneCountInString(marker)
		}
	}
	return targetSize
}

func appendTrimmed(chunks []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}
