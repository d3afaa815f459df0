package chunker

import "fmt"

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunker splits text into overlapping fixed-size character windows.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum window length in characters.
func (c *Chunker) Size() int {
	return c.size
}

// Split returns the windows of text. Window i starts at i*(size-overlap).
// Characters are runes, so multi-byte text is never cut inside a code point.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	chunks := make([]string, 0, (n-c.overlap+step-1)/step)
	for start := 0; ; start += step {
		end := min(start+c.size, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return chunks
}
