package extractor

import (
	"testing"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PlainText(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	text, err := r.Extract("welding.TXT", []byte("Welding requires shade 10-13 helmet.\r\nGloves too.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Welding requires shade 10-13 helmet.\nGloves too.", text)
}

func TestRegistry_Markdown(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	src := "# Welding Safety\n\nWear a **shade 10-13** helmet.\n\n* gloves\n* apron\n"
	text, err := r.Extract("welding.md", []byte(src))
	require.NoError(t, err)

	assert.Contains(t, text, "Welding Safety")
	assert.Contains(t, text, "Wear a shade 10-13 helmet.")
	assert.Contains(t, text, "- gloves")
	assert.Contains(t, text, "- apron")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "#")
}

func TestRegistry_Errors(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	_, err = r.Extract("manual.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, entity.ErrInvalidExtension)

	_, err = r.Extract("blank.txt", []byte("  \n\t"))
	assert.ErrorIs(t, err, entity.ErrEmptyDocument)

	_, err = r.Extract("binary.txt", []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, entity.ErrInvalidFile)

	_, err = r.Extract("broken.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, entity.ErrInvalidFile)
}
