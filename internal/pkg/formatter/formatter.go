// Package formatter renders answer text for a delivery channel.
package formatter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/pkg/textutil"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
	ChannelPlain    = "plain"
)

// Formatter normalizes model output for a channel and attaches source attribution.
type Formatter interface {
	// Normalize rewrites markup the channel cannot display and drops model-written source lines.
	Normalize(text string) string
	// SourcesLine renders the attribution appended after the body.
	SourcesLine(sources []string) string
	// Plain strips all markup, for short replies such as general chat.
	Plain(text string) string
	Channel() string
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(channel string) (Formatter, error) {
	switch channel {
	case ChannelWhatsApp:
		return NewWhatsAppFormatter(), nil
	case ChannelTelegram:
		return NewTelegramFormatter(), nil
	case ChannelPlain:
		return NewPlainFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported channel: %s", channel)
	}
}

// Compose normalizes body and appends notes and the sources line as separate paragraphs.
// With maxChars > 0 the body is cut at a sentence boundary so the whole message fits.
func Compose(f Formatter, body string, sources []string, maxChars int, notes ...string) string {
	suffix := ""
	for _, note := range notes {
		suffix += "\n\n" + note
	}
	if len(sources) > 0 {
		suffix += "\n\n" + f.SourcesLine(sources)
	}

	body = strings.TrimSpace(f.Normalize(body))
	if maxChars > 0 {
		body = textutil.TrimToSentence(body, maxChars-utf8.RuneCountInString(suffix))
	}
	return body + suffix
}

var (
	doubleBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headingMark   = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	bulletMark    = regexp.MustCompile(`(?m)^(\s*)[•*+]\s+`)
	sourcesLine   = regexp.MustCompile(`(?im)^\s*[*_]*\s*sources?\s*[*_]*\s*:.*$`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	anyEmphasis   = regexp.MustCompile(`[*_]{1,2}([^*_\n]+?)[*_]{1,2}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// normalizeCommon converts bullets to "- ", drops source lines and squeezes blank lines.
func normalizeCommon(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = bulletMark.ReplaceAllString(text, "$1- ")
	text = sourcesLine.ReplaceAllString(text, "")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripMarkup(text string) string {
	text = headingMark.ReplaceAllString(text, "$1")
	text = doubleBold.ReplaceAllString(text, "$1")
	text = anyEmphasis.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
