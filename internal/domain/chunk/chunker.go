// Package chunk splits documents into overlapping fixed-size segments.
package chunk

import (
	"fmt"
	"iter"
	"slices"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// Chunker cuts text into windows of Size runes, each starting Size-Overlap runes after the previous one.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. overlap must be in [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrConfiguration)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d: %w", size, overlap, domain.ErrConfiguration)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the target chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// All yields the chunks of text in order. Empty text yields nothing.
//
// Consecutive chunks share exactly Overlap runes; only the last chunk may be
// shorter than Size. Line numbers are 1-based.
func (c *Chunker) All(text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		runes := []rune(text)
		if len(runes) == 0 {
			return
		}
		lines := newLineIndex(runes)
		step := c.size - c.overlap

		for i, start := 0, 0; ; i, start = i+1, start+step {
			end := min(start+c.size, len(runes))
			ch := domain.Chunk{
				Index:     i,
				Content:   string(runes[start:end]),
				LinesFrom: lines.lineAt(start),
				LinesTo:   lines.lineAt(end - 1),
			}
			if !yield(ch) || end == len(runes) {
				return
			}
		}
	}
}

// Split collects All into a slice.
func (c *Chunker) Split(text string) []domain.Chunk {
	return slices.Collect(c.All(text))
}

// lineIndex maps rune offsets to 1-based line numbers.
type lineIndex struct {
	// newlines holds the rune offsets of every '\n', ascending.
	newlines []int
}

func newLineIndex(runes []rune) lineIndex {
	var nl []int
	for i, r := range runes {
		if r == '\n' {
			nl = append(nl, i)
		}
	}
	return lineIndex{newlines: nl}
}

// lineAt returns the line containing offset. A '\n' belongs to the line it terminates.
func (l lineIndex) lineAt(offset int) int {
	n, _ := slices.BinarySearch(l.newlines, offset)
	return n + 1
}
