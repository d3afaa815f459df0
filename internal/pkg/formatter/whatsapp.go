package formatter

import "strings"

// WhatsAppFormatter uses single-asterisk bold, the only bold WhatsApp renders.
type WhatsAppFormatter struct{}

func NewWhatsAppFormatter() *WhatsAppFormatter {
	return &WhatsAppFormatter{}
}

func (f *WhatsAppFormatter) Normalize(text string) string {
	text = normalizeCommon(text)
	text = headingMark.ReplaceAllString(text, "*$1*")
	return doubleBold.ReplaceAllString(text, "*$1*")
}

func (f *WhatsAppFormatter) SourcesLine(sources []string) string {
	return "*Sources:* " + strings.Join(sources, ", ")
}

func (f *WhatsAppFormatter) Plain(text string) string {
	return stripMarkup(text)
}

func (f *WhatsAppFormatter) Channel() string {
	return ChannelWhatsApp
}

// TelegramFormatter targets Telegram's legacy Markdown parse mode.
type TelegramFormatter struct {
	WhatsAppFormatter
}

func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{}
}

func (f *TelegramFormatter) Normalize(text string) string {
	return escapeUnderscores(f.WhatsAppFormatter.Normalize(text))
}

func (f *TelegramFormatter) SourcesLine(sources []string) string {
	return escapeUnderscores(f.WhatsAppFormatter.SourcesLine(sources))
}

func (f *TelegramFormatter) Channel() string {
	return ChannelTelegram
}

// escapeUnderscores keeps file-like titles such as fire_plan.docx from opening italics.
func escapeUnderscores(text string) string {
	return strings.ReplaceAll(text, "_", `\_`)
}

// PlainFormatter produces text with no markup at all.
type PlainFormatter struct{}

func NewPlainFormatter() *PlainFormatter {
	return &PlainFormatter{}
}

func (f *PlainFormatter) Normalize(text string) string {
	return stripMarkup(normalizeCommon(text))
}

func (f *PlainFormatter) SourcesLine(sources []string) string {
	return "Sources: " + strings.Join(sources, ", ")
}

func (f *PlainFormatter) Plain(text string) string {
	return stripMarkup(text)
}

func (f *PlainFormatter) Channel() string {
	return ChannelPlain
}
