// Package extractor pulls plain text out of uploaded safety documents.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/unidoc/unioffice/common/license"
)

// TextExtractor converts one file format to plain text.
type TextExtractor interface {
	Extract(content []byte) (string, error)
}

// Registry dispatches on the file extension.
type Registry struct {
	byExt map[string]TextExtractor
}

// NewRegistry registers the .txt, .md and .docx extractors. A non-empty unidocKey is
// installed as the unioffice metered license before any .docx is read.
func NewRegistry(unidocKey string) (*Registry, error) {
	if unidocKey != "" {
		if err := license.SetMeteredKey(unidocKey); err != nil {
			return nil, fmt.Errorf("set unidoc license: %w", err)
		}
	}

	return &Registry{
		byExt: map[string]TextExtractor{
			".txt":  &PlainText{},
			".md":   NewMarkdown(),
			".docx": &DOCX{},
		},
	}, nil
}

// Extract returns the text of filename. The result is trimmed and never contains
// invalid UTF-8.
func (r *Registry) Extract(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", entity.ErrInvalidExtension, ext)
	}

	text, err := e.Extract(content)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", entity.ErrInvalidFile, filename, err)
	}

	text = strings.TrimSpace(strings.ToValidUTF8(text, ""))
	if text == "" {
		return "", fmt.Errorf("%w: %s", entity.ErrEmptyDocument, filename)
	}
	return text, nil
}

// PlainText accepts UTF-8 text as is.
type PlainText struct{}

func (p *PlainText) Extract(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", errors.New("not valid UTF-8")
	}
	return strings.ReplaceAll(string(content), "\r\n", "\n"), nil
}
