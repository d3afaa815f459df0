// Package pipeline turns retrieved passages into a channel-ready answer in two stages:
// research extracts facts from the passages, formatting renders them within a length band.
// Capability failures inside the pipeline are logged and replaced by fallbacks; Run never fails.
package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/formatter"
	"github.com/futig/safeguard-backend/internal/pkg/textutil"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	NotInDocumentsMessage = "This isn't in our safety documents. Please contact your HSE officer or check company communications."
	ImageFailedNote       = "(The illustration could not be generated right now.)"
	DefaultImageSubject   = "workplace safety equipment and procedures"
)

type LLM interface {
	ExtractFacts(ctx context.Context, req *entity.ResearchRequest) (*entity.ResearchResponse, error)
	FormatAnswer(ctx context.Context, req *entity.FormatRequest) (string, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, description string) (string, error)
}

// SubjectExtractor pulls the thing to draw out of an image request.
type SubjectExtractor interface {
	ImageSubject(text string) string
}

type Config struct {
	HardMaxChars          int
	ImageDescriptionChars int
	TopicHints            []config.TopicHint
}

type Pipeline struct {
	llm       LLM
	images    ImageGenerator
	subjects  SubjectExtractor
	formatter formatter.Formatter
	hints     []config.TopicHint
	cfg       Config
}

func New(llm LLM, images ImageGenerator, subjects SubjectExtractor, f formatter.Formatter, cfg Config) *Pipeline {
	if cfg.HardMaxChars <= 0 {
		cfg.HardMaxChars = 1400
	}
	if cfg.ImageDescriptionChars <= 0 {
		cfg.ImageDescriptionChars = 120
	}

	return &Pipeline{
		llm:       llm,
		images:    images,
		subjects:  subjects,
		formatter: f,
		hints:     cfg.TopicHints,
		cfg:       cfg,
	}
}

// Run produces the answer for one safety query.
func (p *Pipeline) Run(ctx context.Context, req *entity.PipelineRequest) *entity.GenerationResult {
	complexity := AnalyzeComplexity(req.Query)
	ctxzap.Info(ctx, "query complexity",
		zap.String("level", string(complexity.Level)),
		zap.Int("score", complexity.Score),
	)

	facts := p.Research(ctx, req.Query, req.Passages)
	if !facts.Covered {
		return &entity.GenerationResult{
			Text:       NotInDocumentsMessage,
			Complexity: complexity,
		}
	}

	result := &entity.GenerationResult{
		Sources:    facts.Sources,
		Grounded:   true,
		Complexity: complexity,
	}

	imageFailed := false
	if req.ImageRequest {
		result.ImageURL = p.generateImage(ctx, req.Query)
		imageFailed = result.ImageURL == ""
	}

	body := p.Format(ctx, facts, complexity, result.ImageURL != "")
	result.Text = p.assemble(body, facts.Sources, imageFailed)

	ctxzap.Info(ctx, "answer generated",
		zap.Int("length", utf8.RuneCountInString(result.Text)),
		zap.Strings("sources", result.Sources),
		zap.Bool("degraded", facts.Degraded),
		zap.Bool("image", result.ImageURL != ""),
	)
	return result
}

// Format renders the fact set as a message body within the complexity band.
// A model failure falls back to a plain bulleted rendering of the facts.
func (p *Pipeline) Format(ctx context.Context, facts *entity.FactSet, complexity entity.Complexity, imageAdded bool) string {
	text, err := p.llm.FormatAnswer(ctx, &entity.FormatRequest{
		Query:      facts.Query,
		Facts:      facts.Facts,
		MinChars:   complexity.MinChars,
		MaxChars:   complexity.MaxChars,
		Channel:    p.formatter.Channel(),
		ImageAdded: imageAdded,
	})
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}

	if err != nil {
		ctxzap.Error(ctx, "answer formatting failed, rendering facts directly", zap.Error(err))
	}
	return renderFacts(facts.Facts, complexity.MaxChars)
}

// assemble renders the body for the channel under the hard maximum, followed by the
// image note and the sources line.
func (p *Pipeline) assemble(body string, sources []string, imageFailed bool) string {
	var notes []string
	if imageFailed {
		notes = append(notes, ImageFailedNote)
	}
	return formatter.Compose(p.formatter, body, sources, p.cfg.HardMaxChars, notes...)
}

func (p *Pipeline) generateImage(ctx context.Context, query string) string {
	description := textutil.Truncate(p.subjects.ImageSubject(query), p.cfg.ImageDescriptionChars)
	if strings.TrimSpace(description) == "" {
		description = DefaultImageSubject
	}

	url, err := p.images.GenerateImage(ctx, description)
	if err != nil {
		ctxzap.Warn(ctx, "image generation failed, answering with text only", zap.Error(err))
		return ""
	}
	return url
}

// renderFacts lists facts as bullets, stopping before maxChars is exceeded.
func renderFacts(facts []entity.Fact, maxChars int) string {
	var b strings.Builder
	b.WriteString("**Key points from our safety documents**\n")

	for i, f := range facts {
		line := "\n- " + f.Statement
		if i > 0 && utf8.RuneCountInString(b.String())+utf8.RuneCountInString(line) > maxChars {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
