// Package indexer provides text splitting and ingestion into the vector collection.
package indexer

import (
	"strings"
	"unicode/utf8"
)

// Splitter splits text into overlapping character-bounded chunks. Breaks are
// preferred at paragraph, then line, then word boundaries before falling back
// to a hard cut. Splitting is deterministic for a given (text, size, overlap).
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a splitter with the given chunk size and overlap (characters).
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split returns the chunk sequence for text. Text no longer than the chunk
// size yields exactly one chunk. Each chunk after the first starts overlap
// characters before the previous chunk's end.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.size {
		return []string{text}
	}
	var chunks []string
	start := 0
	for {
		end := start + s.size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		end = runeFloor(text, end)
		if end <= start {
			// Chunk size smaller than one rune; take the rune whole.
			_, n := utf8.DecodeRuneInString(text[start:])
			end = start + n
			if end >= len(text) {
				chunks = append(chunks, text[start:])
				break
			}
		}
		cut := breakPoint(text, start, end)
		chunks = append(chunks, text[start:cut])
		next := runeFloor(text, cut-s.overlap)
		if next <= start {
			// Degenerate input (no progress possible with overlap); advance past the cut.
			next = cut
		}
		start = next
	}
	return chunks
}

// runeFloor returns the largest rune boundary at or before i, so slicing at
// the result never splits a multibyte character.
func runeFloor(text string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(text) {
		return len(text)
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// breakPoint returns the index to cut at, in (start, end]. The latest
// paragraph break wins, then the latest line break, then the latest space;
// otherwise the hard limit end.
func breakPoint(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return start + i + len(sep)
		}
	}
	return end
}
