package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/integration/llm"
	"github.com/futig/safeguard-backend/internal/pkg/formatter"
	"github.com/futig/safeguard-backend/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLLM struct {
	research    *entity.ResearchResponse
	researchErr error
	format      string
	formatErr   error

	researchCalls int
	formatCalls   int
	lastFormat    *entity.FormatRequest
}

func (f *fakeLLM) ExtractFacts(_ context.Context, _ *entity.ResearchRequest) (*entity.ResearchResponse, error) {
	f.researchCalls++
	return f.research, f.researchErr
}

func (f *fakeLLM) FormatAnswer(_ context.Context, req *entity.FormatRequest) (string, error) {
	f.formatCalls++
	f.lastFormat = req
	return f.format, f.formatErr
}

type fakeImages struct {
	url         string
	err         error
	description string
	calls       int
}

func (f *fakeImages) GenerateImage(_ context.Context, description string) (string, error) {
	f.calls++
	f.description = description
	return f.url, f.err
}

func weldingPassages() *entity.PassageSet {
	return &entity.PassageSet{
		Query:    "what helmet shade for welding",
		Grounded: true,
		Passages: []entity.Passage{{
			DocumentID:  "weld",
			ChunkIndex:  0,
			Text:        "Welding requires shade 10-13 helmet, gloves, apron.",
			SourceTitle: "Welding Safety",
			Score:       0.61,
		}},
	}
}

func newPipeline(l LLM, images ImageGenerator, hints ...config.TopicHint) *Pipeline {
	return New(l, images, router.NewClassifier(config.DefaultRules()), formatter.NewWhatsAppFormatter(), Config{
		HardMaxChars:          1400,
		ImageDescriptionChars: 120,
		TopicHints:            hints,
	})
}

func TestRun_WeldingScenario(t *testing.T) {
	p := newPipeline(llm.NewMockConnector(zap.NewNop()), &fakeImages{})

	res := p.Run(context.Background(), &entity.PipelineRequest{
		Query:    "what helmet shade for welding",
		Passages: weldingPassages(),
	})

	assert.True(t, res.Grounded)
	assert.Contains(t, res.Text, "shade 10-13 helmet")
	assert.Less(t, utf8.RuneCountInString(res.Text), 1250)
	assert.True(t, strings.HasSuffix(res.Text, "*Sources:* Welding Safety"))
	assert.Equal(t, []string{"Welding Safety"}, res.Sources)
	assert.NotContains(t, res.Text, "**")
	assert.Equal(t, entity.ComplexitySimple, res.Complexity.Level)
}

func TestRun_NoGroundingSaysSoWithoutSources(t *testing.T) {
	fake := &fakeLLM{}
	images := &fakeImages{url: "https://img"}
	p := newPipeline(fake, images)

	res := p.Run(context.Background(), &entity.PipelineRequest{
		Query:        "show me the cafeteria menu",
		Passages:     &entity.PassageSet{Query: "cafeteria menu"},
		ImageRequest: true,
	})

	assert.Equal(t, NotInDocumentsMessage, res.Text)
	assert.False(t, res.Grounded)
	assert.Empty(t, res.Sources)
	assert.NotContains(t, res.Text, "Sources")
	assert.Equal(t, 0, fake.researchCalls)
	assert.Equal(t, 0, images.calls)
}

func TestRun_ModelSaysNotCovered(t *testing.T) {
	fake := &fakeLLM{research: &entity.ResearchResponse{Covered: false}}
	p := newPipeline(fake, &fakeImages{})

	res := p.Run(context.Background(), &entity.PipelineRequest{Query: "crane load charts", Passages: weldingPassages()})

	assert.Equal(t, NotInDocumentsMessage, res.Text)
	assert.Equal(t, 0, fake.formatCalls)
}

func TestResearch_PinsSourcesAndDropsUngroundedFacts(t *testing.T) {
	fake := &fakeLLM{research: &entity.ResearchResponse{
		Covered: true,
		Facts: []entity.Fact{
			{Statement: "Use a shade 10-13 helmet.", Source: "OSHA Handbook"},
			{Statement: "Cranes need daily inspection.", Source: "Welding Safety"},
		},
	}}
	p := newPipeline(fake, &fakeImages{})

	facts := p.Research(context.Background(), "what helmet shade for welding", weldingPassages())

	require.True(t, facts.Covered)
	require.Len(t, facts.Facts, 1)
	assert.Equal(t, "Welding Safety", facts.Facts[0].Source)
	assert.Equal(t, []string{"Welding Safety"}, facts.Sources)
}

func TestResearch_AllFactsUngrounded(t *testing.T) {
	fake := &fakeLLM{research: &entity.ResearchResponse{
		Covered: true,
		Facts:   []entity.Fact{{Statement: "Cranes need daily inspection.", Source: "Welding Safety"}},
	}}
	p := newPipeline(fake, &fakeImages{})

	facts := p.Research(context.Background(), "crane inspection", weldingPassages())
	assert.False(t, facts.Covered)
}

func TestRun_ResearchFailureFallsBackToPassages(t *testing.T) {
	fake := &fakeLLM{researchErr: entity.ErrGenerationFailed, formatErr: entity.ErrGenerationFailed}
	p := newPipeline(fake, &fakeImages{})

	res := p.Run(context.Background(), &entity.PipelineRequest{
		Query:    "what helmet shade for welding",
		Passages: weldingPassages(),
	})

	assert.True(t, res.Grounded)
	assert.Contains(t, res.Text, "Welding requires shade 10-13 helmet, gloves, apron.")
	assert.Contains(t, res.Text, "*Key points from our safety documents*")
	assert.True(t, strings.HasSuffix(res.Text, "*Sources:* Welding Safety"))
}

func TestRun_ImageFailureKeepsTextAnswer(t *testing.T) {
	images := &fakeImages{err: errors.New("content policy")}
	p := newPipeline(llm.NewMockConnector(zap.NewNop()), images)

	res := p.Run(context.Background(), &entity.PipelineRequest{
		Query:        "show me PPE for welding",
		Passages:     weldingPassages(),
		ImageRequest: true,
	})

	assert.Empty(t, res.ImageURL)
	assert.NotEmpty(t, res.Text)
	assert.Contains(t, res.Text, ImageFailedNote)
	assert.Contains(t, res.Text, "helmet")
	assert.Equal(t, 1, images.calls)
	assert.Equal(t, "ppe for welding", images.description)
}

func TestRun_ImageAttached(t *testing.T) {
	fake := &fakeLLM{
		research: &entity.ResearchResponse{Covered: true, Facts: []entity.Fact{{Statement: "Wear a shade 10-13 helmet.", Source: "Welding Safety"}}},
		format:   "**Welding PPE**\n- shade 10-13 helmet",
	}
	images := &fakeImages{url: "https://images.example/weld.png"}
	p := newPipeline(fake, images)

	res := p.Run(context.Background(), &entity.PipelineRequest{
		Query:        "show me PPE for welding",
		Passages:     weldingPassages(),
		ImageRequest: true,
	})

	assert.Equal(t, "https://images.example/weld.png", res.ImageURL)
	assert.True(t, fake.lastFormat.ImageAdded)
	assert.NotContains(t, res.Text, ImageFailedNote)
}

func TestRun_HardMaximumAtSentenceBoundary(t *testing.T) {
	long := strings.Repeat("Always wear the shade 10-13 helmet when welding. ", 60)
	fake := &fakeLLM{
		research: &entity.ResearchResponse{Covered: true, Facts: []entity.Fact{{Statement: "Wear a shade 10-13 helmet.", Source: "Welding Safety"}}},
		format:   long,
	}
	p := newPipeline(fake, &fakeImages{})

	res := p.Run(context.Background(), &entity.PipelineRequest{Query: "welding helmet", Passages: weldingPassages()})

	assert.LessOrEqual(t, utf8.RuneCountInString(res.Text), 1400)
	body := strings.TrimSuffix(res.Text, "\n\n*Sources:* Welding Safety")
	assert.True(t, strings.HasSuffix(body, "welding."))
}

func TestResearch_TopicHintWithoutMatchingSource(t *testing.T) {
	fake := &fakeLLM{research: &entity.ResearchResponse{Covered: true}}
	hint := config.TopicHint{Keywords: []string{"confined space"}, Sources: []string{"confined space"}}
	p := newPipeline(fake, &fakeImages{}, hint)

	facts := p.Research(context.Background(), "confined space welding helmet", weldingPassages())
	assert.False(t, facts.Covered)
	assert.Equal(t, 0, fake.researchCalls)
}

func TestRun_PassesComplexityBandToFormatter(t *testing.T) {
	fake := &fakeLLM{
		research: &entity.ResearchResponse{Covered: true, Facts: []entity.Fact{{Statement: "Welding requires a helmet.", Source: "Welding Safety"}}},
		format:   "ok.",
	}
	p := newPipeline(fake, &fakeImages{})

	p.Run(context.Background(), &entity.PipelineRequest{Query: "What are the steps and all PPE for welding", Passages: weldingPassages()})

	require.NotNil(t, fake.lastFormat)
	assert.Equal(t, 1000, fake.lastFormat.MinChars)
	assert.Equal(t, 1250, fake.lastFormat.MaxChars)
	assert.Equal(t, "whatsapp", fake.lastFormat.Channel)
}
