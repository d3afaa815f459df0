package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative overlap", size: 10, overlap: -1},
		{name: "overlap equals size", size: 10, overlap: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			assert.Error(t, err)
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	text := "Welding requires shade 10-13 helmet, gloves, apron."
	chunks := c.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_WindowsOverlap(t *testing.T) {
	c, err := New(10, 3)
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Split(text)

	// starts at 0, 7, 14, 21
	require.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}, chunks)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-3:], chunks[i][:3], "chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func TestSplit_NeverExceedsSize(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	text := strings.Repeat("Lockout tagout isolates energy sources. ", 80)
	for _, chunk := range c.Split(text) {
		assert.LessOrEqual(t, len([]rune(chunk)), DefaultSize)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	text := strings.Repeat("Confined space entry needs a permit and atmospheric testing. ", 40)

	assert.Equal(t, c.Split(text), c.Split(text))
}

func TestSplit_CoversWholeText(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	text := strings.Repeat("0123456789", 37)
	chunks := c.Split(text)

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, chunk := range chunks[1:] {
		rebuilt.WriteString(chunk[20:])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplit_MultiByteRunes(t *testing.T) {
	c, err := New(4, 1)
	require.NoError(t, err)

	chunks := c.Split("ÄÖÜßäöü")

	assert.Equal(t, []string{"ÄÖÜß", "ßäöü"}, chunks)
}
