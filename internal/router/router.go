// Package router classifies inbound messages into cached, general or safety routes.
// Classification is pure: it evaluates the rule tables in order and never touches state.
package router

import (
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
)

type rule struct {
	name           string
	route          entity.Route
	phrases        []string
	maxWords       int
	noQuestionMark bool
}

type Classifier struct {
	cached        map[string][]string
	imageTriggers []string
	rules         []rule
	fallback      entity.Route
}

func NewClassifier(rules *config.Rules) *Classifier {
	c := &Classifier{
		cached:   make(map[string][]string, len(rules.CachedReplies)),
		fallback: entity.Route(rules.Classifier.Default),
	}

	for key, variants := range rules.CachedReplies {
		c.cached[Normalize(key)] = variants
	}
	for _, t := range rules.ImageTriggers {
		if p := phrase(t); p != "" {
			c.imageTriggers = append(c.imageTriggers, p)
		}
	}
	for _, r := range rules.Classifier.Rules {
		compiled := rule{
			name:           r.Name,
			route:          entity.Route(r.Route),
			maxWords:       r.MaxWords,
			noQuestionMark: r.NoQuestionMark,
		}
		for _, kw := range r.Contains {
			if p := phrase(kw); p != "" {
				compiled.phrases = append(compiled.phrases, p)
			}
		}
		c.rules = append(c.rules, compiled)
	}

	return c
}

// Classify decides how text should be answered.
func (c *Classifier) Classify(text string) entity.Classification {
	key := Normalize(text)
	if _, ok := c.cached[key]; ok {
		return entity.Classification{Route: entity.RouteCached, CachedKey: key}
	}

	words := phrase(text)
	if c.matchTrigger(words) != "" {
		return entity.Classification{Route: entity.RouteSafety, ImageRequest: true}
	}

	for _, r := range c.rules {
		if r.matches(text, words) {
			return entity.Classification{Route: r.route}
		}
	}

	return entity.Classification{Route: c.fallback}
}

// CachedReply picks one of the variants stored for key.
func (c *Classifier) CachedReply(key string) (string, bool) {
	variants := c.cached[key]
	if len(variants) == 0 {
		return "", false
	}
	return variants[rand.IntN(len(variants))], true
}

// ImageSubject returns the words following the image trigger, which describe what to draw.
func (c *Classifier) ImageSubject(text string) string {
	words := phrase(text)
	trigger := c.matchTrigger(words)
	if trigger == "" {
		return words
	}

	_, after, _ := strings.Cut(" "+words+" ", " "+trigger+" ")
	after = strings.TrimSpace(after)
	for stripped := true; stripped; {
		stripped = false
		for _, lead := range []string{"of ", "a ", "an ", "the "} {
			if strings.HasPrefix(after, lead) {
				after = strings.TrimPrefix(after, lead)
				stripped = true
			}
		}
	}
	if after == "" {
		return words
	}
	return after
}

func (c *Classifier) matchTrigger(words string) string {
	for _, t := range c.imageTriggers {
		if containsPhrase(words, t) {
			return t
		}
	}
	return ""
}

func (r rule) matches(text, words string) bool {
	if r.noQuestionMark && strings.Contains(text, "?") {
		return false
	}
	if r.maxWords > 0 && wordCount(words) > r.maxWords {
		return false
	}
	if len(r.phrases) == 0 {
		return true
	}
	for _, p := range r.phrases {
		if containsPhrase(words, p) {
			return true
		}
	}
	return false
}

// Normalize lower-cases text, collapses whitespace and drops trailing punctuation.
func Normalize(text string) string {
	s := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return strings.TrimRight(s, "!?.,")
}

// phrase reduces text to lower-case words separated by single spaces.
func phrase(text string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}), " ")
}

func containsPhrase(words, p string) bool {
	return strings.Contains(" "+words+" ", " "+p+" ")
}

func wordCount(words string) int {
	if words == "" {
		return 0
	}
	return strings.Count(words, " ") + 1
}
