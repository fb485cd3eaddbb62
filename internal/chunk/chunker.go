// Package chunk splits long-form input text into provider-sized pieces at
// natural linguistic boundaries while preserving exact character offsets
// into the original, untrimmed input.
//
// Offsets are code-point (rune) positions, not byte positions. The timing
// normalizer depends on them to map per-chunk word timing back onto the
// original document, so every split here must keep the invariant
// text[start:end] == chunk text.
package chunk

import (
	"unicode"

	"github.com/voxweave/voxweave/internal/apperr"
)

// TextChunk is a contiguous slice of the input. StartChar and EndChar are
// half-open rune offsets into the original, untrimmed input.
type TextChunk struct {
	Text        string
	StartChar   int
	EndChar     int
	ChunkIndex  int
	TotalChunks int
}

// minBoundaryFraction is the floor below which preferred boundaries are
// ignored, preventing degenerate tiny chunks when a paragraph or sentence
// break sits very early in the window.
const minBoundaryFraction = 0.3

// Chunker splits text under a per-provider character limit.
//
// Splitting rules, in priority order within the first maxChars runes of the
// unconsumed window:
//
//  1. latest paragraph break ("\n\n") past 0.3×maxChars, split after it
//  2. latest sentence end (". ", "! ", "? ", ".\n", "!\n", "?\n") past
//     0.3×maxChars, split after punctuation and whitespace
//  3. latest space, split after it
//  4. hard split at exactly maxChars
type Chunker struct{}

// NewChunker returns a ready Chunker. It is stateless and safe for
// concurrent use.
func NewChunker() *Chunker {
	return &Chunker{}
}

// Chunk splits text into ordered chunks of at most maxChars runes each.
// Returns a validation error when text is empty or whitespace-only, or when
// maxChars < 1.
func (c *Chunker) Chunk(text string, maxChars int) ([]TextChunk, error) {
	if maxChars < 1 {
		return nil, apperr.Validation("max_chars must be at least 1", map[string]any{"max_chars": maxChars})
	}

	runes := []rune(text)
	start, end := trimBounds(runes)
	if start == end {
		return nil, apperr.TextEmpty()
	}

	stripped := runes[start:end]
	if len(stripped) <= maxChars {
		return []TextChunk{{
			Text:        string(stripped),
			StartChar:   start,
			EndChar:     start + len(stripped),
			ChunkIndex:  0,
			TotalChunks: 1,
		}}, nil
	}

	var chunks []TextChunk
	remaining := stripped
	offset := start

	for len(remaining) > 0 {
		// Skip whitespace between chunks by advancing the offset without
		// emitting anything.
		ws := 0
		for ws < len(remaining) && unicode.IsSpace(remaining[ws]) {
			ws++
		}
		offset += ws
		remaining = remaining[ws:]
		if len(remaining) == 0 {
			break
		}

		if len(remaining) <= maxChars {
			chunkText := trimRight(remaining)
			chunks = append(chunks, TextChunk{
				Text:       string(chunkText),
				StartChar:  offset,
				EndChar:    offset + len(chunkText),
				ChunkIndex: len(chunks),
			})
			break
		}

		split := findSplitPoint(remaining, maxChars)
		chunkText := trimRight(remaining[:split])
		chunks = append(chunks, TextChunk{
			Text:       string(chunkText),
			StartChar:  offset,
			EndChar:    offset + len(chunkText),
			ChunkIndex: len(chunks),
		})

		offset += split
		remaining = remaining[split:]
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks, nil
}

// findSplitPoint locates the best boundary within the first maxChars runes.
func findSplitPoint(window []rune, maxChars int) int {
	candidate := window[:maxChars]
	minPos := int(float64(maxChars) * minBoundaryFraction)

	// Paragraph boundary: split after the double newline.
	if pos := lastIndex(candidate, '\n', '\n'); pos > minPos {
		return pos + 2
	}

	// Sentence boundary: the latest punctuation+whitespace pair.
	best := -1
	for _, pat := range [][2]rune{
		{'.', ' '}, {'!', ' '}, {'?', ' '},
		{'.', '\n'}, {'!', '\n'}, {'?', '\n'},
	} {
		if pos := lastIndex(candidate, pat[0], pat[1]); pos > minPos {
			if after := pos + 2; after > best {
				best = after
			}
		}
	}
	if best > minPos {
		return best
	}

	// Word boundary: split after the last space.
	for i := len(candidate) - 1; i > 0; i-- {
		if candidate[i] == ' ' {
			return i + 1
		}
	}

	// No space anywhere: hard split.
	return maxChars
}

// lastIndex returns the rune index of the last occurrence of the two-rune
// pattern in s, or -1.
func lastIndex(s []rune, a, b rune) int {
	for i := len(s) - 2; i >= 0; i-- {
		if s[i] == a && s[i+1] == b {
			return i
		}
	}
	return -1
}

// trimBounds returns the half-open range of s with surrounding whitespace
// removed.
func trimBounds(s []rune) (int, int) {
	start := 0
	for start < len(s) && unicode.IsSpace(s[start]) {
		start++
	}
	end := len(s)
	for end > start && unicode.IsSpace(s[end-1]) {
		end--
	}
	return start, end
}

// trimRight drops trailing whitespace runes.
func trimRight(s []rune) []rune {
	end := len(s)
	for end > 0 && unicode.IsSpace(s[end-1]) {
		end--
	}
	return s[:end]
}
