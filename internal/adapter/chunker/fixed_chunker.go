package chunker

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
)

// FixedSizeChunker cuts text into overlapping windows of runes.
type FixedSizeChunker struct {
	size    int
	overlap int
}

func NewFixedSizeChunker(size, overlap int) (*FixedSizeChunker, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	return &FixedSizeChunker{size: size, overlap: overlap}, nil
}

// Segment joins the pages and windows the result.
func (c *FixedSizeChunker) Segment(pages []string) []string {
	text := strings.Join(pages, "\n")
	chunks, _ := FixedSizeChunks(text, c.size, c.overlap)
	return chunks
}

// FixedSizeChunks returns windows starting at i*(size-overlap). Every
// window holds size runes except the last, which ends at the end of the
// text.
func FixedSizeChunks(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidInput, size, overlap)
	}
	return nil
}
