package router

import (
	"testing"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_LabeledCorpus(t *testing.T) {
	c := NewClassifier(config.DefaultRules())

	tests := []struct {
		text  string
		route entity.Route
		image bool
	}{
		{"Hello!", entity.RouteCached, false},
		{"  good   MORNING. ", entity.RouteCached, false},
		{"thanks", entity.RouteCached, false},
		{"what helmet shade for welding", entity.RouteSafety, false},
		{"What are the lockout/tagout steps?", entity.RouteSafety, false},
		{"Do I need a permit for confined space entry", entity.RouteSafety, false},
		{"show me PPE for welding", entity.RouteSafety, true},
		{"Can you draw the arc flash boundary", entity.RouteSafety, true},
		{"thanks a lot mate", entity.RouteGeneral, false},
		{"how can you help me today", entity.RouteGeneral, false},
		{"lol nice", entity.RouteGeneral, false},
		{"is it hot?", entity.RouteSafety, false},
		{"what should I do if the alarm sounds twice", entity.RouteSafety, false},
		{"chipping hammer noise level outside", entity.RouteSafety, false},
		{"I need help with noise exposure limits", entity.RouteSafety, false},
		{"hi, who signs off the lifting plan for tomorrow", entity.RouteSafety, false},
		{"hi there, can you help", entity.RouteGeneral, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := c.Classify(tt.text)
			assert.Equal(t, tt.route, got.Route)
			assert.Equal(t, tt.image, got.ImageRequest)
		})
	}
}

func TestClassifier_KeywordsMatchWholeWords(t *testing.T) {
	c := NewClassifier(config.DefaultRules())

	// "hi" must not match inside "machine", "fire" must not match inside "hired"
	got := c.Classify("which machine was hired for the east wing")
	assert.Equal(t, entity.RouteSafety, got.Route)

	got = c.Classify("chimney")
	assert.Equal(t, entity.RouteGeneral, got.Route)
}

func TestClassifier_Idempotent(t *testing.T) {
	c := NewClassifier(config.DefaultRules())
	text := "show me how to inspect a harness"

	first := c.Classify(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(text))
	}
}

func TestClassifier_CachedReply(t *testing.T) {
	rules := config.DefaultRules()
	c := NewClassifier(rules)

	got := c.Classify("Hi")
	require.Equal(t, entity.RouteCached, got.Route)

	reply, ok := c.CachedReply(got.CachedKey)
	require.True(t, ok)
	assert.Contains(t, rules.CachedReplies["hi"], reply)

	_, ok = c.CachedReply("unknown")
	assert.False(t, ok)
}

func TestClassifier_CustomRules(t *testing.T) {
	rules, err := config.ParseRules([]byte(`
classifier:
  default: general
  rules:
    - name: machines
      route: safety
      contains: [forklift]
`))
	require.NoError(t, err)
	c := NewClassifier(rules)

	assert.Equal(t, entity.RouteSafety, c.Classify("forklift checks").Route)
	assert.Equal(t, entity.RouteGeneral, c.Classify("what is the weather like").Route)
}

func TestClassifier_ImageSubject(t *testing.T) {
	c := NewClassifier(config.DefaultRules())

	assert.Equal(t, "ppe for welding", c.ImageSubject("Show me PPE for welding!"))
	assert.Equal(t, "harness inspection", c.ImageSubject("photo of the harness inspection"))
	assert.Equal(t, "show me", c.ImageSubject("show me"))
	assert.Equal(t, "ladder safety", c.ImageSubject("ladder safety"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "good morning", Normalize("  Good\tMorning!!?"))
	assert.Equal(t, "", Normalize("..."))
}
