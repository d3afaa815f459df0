package guard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/futig/safeguard-backend/internal/config"
)

// InjectionScreen flags text that tries to override the assistant's instructions.
type InjectionScreen struct {
	phrases  []string
	patterns []*regexp.Regexp
}

func NewInjectionScreen(rules config.InjectionRules) (*InjectionScreen, error) {
	s := &InjectionScreen{}
	for _, p := range rules.Phrases {
		if p = normalize(p); p != "" {
			s.phrases = append(s.phrases, p)
		}
	}
	for _, p := range rules.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile injection pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Match returns the first rule that matched, or "" when the text looks clean.
func (s *InjectionScreen) Match(text string) string {
	lowered := normalize(text)
	for _, p := range s.phrases {
		if strings.Contains(lowered, p) {
			return p
		}
	}
	for _, re := range s.patterns {
		if re.MatchString(lowered) {
			return re.String()
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
