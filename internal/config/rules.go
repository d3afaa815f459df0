package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules holds the pattern tables used by the classifier, the guard and the research stage.
type Rules struct {
	CachedReplies map[string][]string `yaml:"cached_replies"`
	ImageTriggers []string            `yaml:"image_triggers"`
	Classifier    ClassifierRules     `yaml:"classifier"`
	Injection     InjectionRules      `yaml:"injection"`
	TopicHints    []TopicHint         `yaml:"topic_hints"`
}

type ClassifierRules struct {
	Default string           `yaml:"default"`
	Rules   []ClassifierRule `yaml:"rules"`
}

// ClassifierRule matches when any Contains phrase occurs as whole words, or, for rules
// without phrases, when the message has at most MaxWords words.
type ClassifierRule struct {
	Name           string   `yaml:"name"`
	Route          string   `yaml:"route"`
	Contains       []string `yaml:"contains"`
	MaxWords       int      `yaml:"max_words"`
	NoQuestionMark bool     `yaml:"no_question_mark"`
}

type InjectionRules struct {
	Phrases  []string `yaml:"phrases"`
	Patterns []string `yaml:"patterns"`
}

type TopicHint struct {
	Keywords []string `yaml:"keywords"`
	Sources  []string `yaml:"sources"`
}

// LoadRules parses the rules file at path, or the embedded defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules file %s: %w", path, err)
		}
		data = b
	}
	return ParseRules(data)
}

// DefaultRules returns the embedded rule tables.
func DefaultRules() *Rules {
	rules, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return rules
}

func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	normalized := make(map[string][]string, len(rules.CachedReplies))
	for key, variants := range rules.CachedReplies {
		normalized[strings.ToLower(strings.TrimSpace(key))] = variants
	}
	rules.CachedReplies = normalized

	if rules.Classifier.Default == "" {
		rules.Classifier.Default = "safety"
	}

	if err := rules.validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *Rules) validate() error {
	var errs []string

	for key, variants := range r.CachedReplies {
		if len(variants) == 0 {
			errs = append(errs, fmt.Sprintf("cached reply %q has no variants", key))
		}
	}

	if !validRoute(r.Classifier.Default) {
		errs = append(errs, fmt.Sprintf("classifier default route %q is unknown", r.Classifier.Default))
	}
	for i, rule := range r.Classifier.Rules {
		if !validRoute(rule.Route) {
			errs = append(errs, fmt.Sprintf("classifier rule %d (%s): unknown route %q", i, rule.Name, rule.Route))
		}
		if len(rule.Contains) == 0 && rule.MaxWords <= 0 {
			errs = append(errs, fmt.Sprintf("classifier rule %d (%s): needs contains or max_words", i, rule.Name))
		}
	}

	for _, p := range r.Injection.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Sprintf("injection pattern %q: %v", p, err))
		}
	}

	for i, hint := range r.TopicHints {
		if len(hint.Keywords) == 0 || len(hint.Sources) == 0 {
			errs = append(errs, fmt.Sprintf("topic hint %d needs keywords and sources", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rules:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validRoute(route string) bool {
	switch route {
	case "cached", "general", "safety":
		return true
	}
	return false
}
