// Package textutil holds small text helpers shared by the retrieval and generation stages.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "can": true, "do": true, "does": true, "for": true, "from": true, "how": true,
	"i": true, "if": true, "in": true, "is": true, "it": true, "me": true, "my": true,
	"need": true, "of": true, "on": true, "or": true, "should": true, "that": true,
	"the": true, "this": true, "to": true, "we": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "with": true, "you": true,
	"your": true,
}

// Words splits text into lower-cased letter/digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContentWords is Words without stopwords.
func ContentWords(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// Overlap counts distinct content words of a that also occur in b.
func Overlap(a, b string) int {
	inB := make(map[string]bool)
	for _, w := range ContentWords(b) {
		inB[w] = true
	}

	seen := make(map[string]bool)
	n := 0
	for _, w := range ContentWords(a) {
		if inB[w] && !seen[w] {
			seen[w] = true
			n++
		}
	}
	return n
}

// Sentences splits text on sentence terminators and line breaks, dropping empty pieces.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()
	return out
}

// TrimToSentence cuts text to at most limit runes, preferring the last sentence end
// or line break before the limit over a cut mid-sentence.
func TrimToSentence(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)[:limit]
	cut := -1
	for i := len(runes) - 1; i > 0; i-- {
		r := runes[i]
		if r == '\n' || ((r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1]))) {
			cut = i + 1
			break
		}
	}

	if cut <= 0 {
		// no sentence boundary: fall back to the last word boundary
		s := string(runes)
		if idx := strings.LastIndexFunc(s, unicode.IsSpace); idx > 0 {
			return strings.TrimSpace(s[:idx])
		}
		return s
	}
	return strings.TrimSpace(string(runes[:cut]))
}

// Truncate cuts s to at most limit runes, ending with "..." when it had to cut at a word.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}

	head := string([]rune(s)[:limit-3])
	if idx := strings.LastIndex(head, " "); idx > 0 {
		head = head[:idx]
	}
	return head + "..."
}
