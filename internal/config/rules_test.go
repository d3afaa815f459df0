package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_EmbeddedDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)

	assert.NotEmpty(t, rules.CachedReplies["hello"])
	assert.Contains(t, rules.ImageTriggers, "show me")
	assert.Equal(t, "safety", rules.Classifier.Default)
	require.NotEmpty(t, rules.Classifier.Rules)
	assert.Equal(t, "safety", rules.Classifier.Rules[0].Route)
	assert.NotEmpty(t, rules.Injection.Patterns)
}

func TestLoadRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := `
cached_replies:
  "  Hola ":
    - "Hello."
classifier:
  rules:
    - name: short
      route: general
      max_words: 2
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello."}, rules.CachedReplies["hola"])
	assert.Equal(t, "safety", rules.Classifier.Default)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown route", "classifier:\n  rules:\n    - name: x\n      route: chat\n      max_words: 1\n"},
		{"empty rule", "classifier:\n  rules:\n    - name: x\n      route: general\n"},
		{"bad regex", "injection:\n  patterns:\n    - '(unclosed'\n"},
		{"empty variants", "cached_replies:\n  hi: []\n"},
		{"hint without sources", "topic_hints:\n  - keywords: [fire]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
