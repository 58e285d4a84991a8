package services

import (
	"fmt"
	"regexp"
	"strings"
)

// Separators tried largest-first when a piece of text exceeds the chunk
// size: paragraph break, sentence end, word break, then hard character
// split as the last resort.
var chunkSeparators = []string{"\n\n", "\n", ". ", " "}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Chunker splits document text into overlapping windows for indexing.
// Each chunk is at most chunkSize characters; each chunk after the first
// starts overlap characters before the end of the previous one so context
// spanning a boundary is preserved in at least one chunk.
type Chunker struct {
	chunkSize int
	overlap   int
}

func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got overlap=%d chunk size=%d", overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split returns the ordered chunk texts for text. Text at most chunkSize
// characters long yields exactly one chunk; empty or all-whitespace text
// yields none.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Pull the cut back to the largest boundary inside the window.
			if cut := c.findBoundary(runes[start:end]); cut > 0 {
				end = start + cut
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}

		next := end - c.overlap
		if next <= start {
			// Boundary-free run: advance past the window to force progress.
			next = end
		}
		start = next
	}

	return chunks
}

// findBoundary returns the preferred cut position within window, trying
// paragraph, sentence and word separators in order. Zero means no boundary
// was found and the caller should hard-split at the character limit.
func (c *Chunker) findBoundary(window []rune) int {
	s := string(window)
	for _, sep := range chunkSeparators {
		// Only accept boundaries in the latter half of the window so
		// chunks stay reasonably full.
		if idx := strings.LastIndex(s, sep); idx > len(s)/2 {
			return len([]rune(s[:idx+len(sep)]))
		}
	}
	return 0
}

// NormalizeWhitespace collapses runs of whitespace, useful before chunking
// extracted PDF text where layout artifacts produce irregular spacing.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}
