package pipeline

import (
	"context"
	"strings"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/textutil"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const maxFallbackFacts = 6

// Research extracts facts for query strictly from the passages.
// An ungrounded passage set, a topic hint mismatch or a model verdict of "not covered"
// all yield a fact set with Covered false.
func (p *Pipeline) Research(ctx context.Context, query string, passages *entity.PassageSet) *entity.FactSet {
	notCovered := &entity.FactSet{Query: query}

	if passages == nil || !passages.Grounded || len(passages.Passages) == 0 {
		ctxzap.Info(ctx, "research skipped: no grounding passages")
		return notCovered
	}

	if hint, ok := missingTopicSource(query, passages.Sources(), p.hints); ok {
		ctxzap.Info(ctx, "research stopped: query topic not in retrieved sources",
			zap.Strings("hint_keywords", hint.Keywords),
			zap.Strings("sources", passages.Sources()),
		)
		return notCovered
	}

	resp, err := p.llm.ExtractFacts(ctx, &entity.ResearchRequest{Query: query, Passages: passages.Passages})
	if err != nil {
		ctxzap.Error(ctx, "fact extraction failed, using extractive fallback", zap.Error(err))
		return extractiveFacts(query, passages)
	}
	if !resp.Covered {
		ctxzap.Info(ctx, "model reports query not covered by passages")
		return notCovered
	}

	facts := groundFacts(resp.Facts, passages.Passages)
	if len(facts) == 0 {
		ctxzap.Warn(ctx, "model facts failed grounding check", zap.Int("fact_count", len(resp.Facts)))
		return notCovered
	}

	return &entity.FactSet{
		Query:   query,
		Facts:   facts,
		Sources: factSources(facts, passages),
		Covered: true,
	}
}

// groundFacts keeps facts that share vocabulary with a passage and pins each one
// to the title of the best matching passage, so no source is ever invented.
func groundFacts(facts []entity.Fact, passages []entity.Passage) []entity.Fact {
	kept := make([]entity.Fact, 0, len(facts))
	for _, f := range facts {
		statement := strings.TrimSpace(f.Statement)
		if statement == "" {
			continue
		}

		best, bestOverlap := -1, 0
		for i, p := range passages {
			overlap := textutil.Overlap(statement, p.Text)
			if overlap == 0 {
				continue
			}
			// a matching claimed source wins ties
			if overlap > bestOverlap || (overlap == bestOverlap && sameTitle(p.SourceTitle, f.Source)) {
				best, bestOverlap = i, overlap
			}
		}
		if best < 0 {
			continue
		}

		kept = append(kept, entity.Fact{Statement: statement, Source: passages[best].SourceTitle})
	}
	return kept
}

// extractiveFacts builds facts from passage sentences without a model.
func extractiveFacts(query string, passages *entity.PassageSet) *entity.FactSet {
	var facts []entity.Fact
	seen := make(map[string]bool)

	for _, p := range passages.Passages {
		for _, s := range textutil.Sentences(p.Text) {
			if len(facts) == maxFallbackFacts {
				break
			}
			if seen[s] || textutil.Overlap(query, s) == 0 {
				continue
			}
			seen[s] = true
			facts = append(facts, entity.Fact{Statement: s, Source: p.SourceTitle})
		}
	}

	// the passages cleared the similarity floor, so the best one is still relevant
	if len(facts) == 0 {
		top := passages.Passages[0]
		for _, s := range textutil.Sentences(top.Text) {
			if len(facts) == 2 {
				break
			}
			facts = append(facts, entity.Fact{Statement: s, Source: top.SourceTitle})
		}
	}

	return &entity.FactSet{
		Query:    query,
		Facts:    facts,
		Sources:  factSources(facts, passages),
		Covered:  len(facts) > 0,
		Degraded: true,
	}
}

// factSources lists the titles used by facts, in passage order.
func factSources(facts []entity.Fact, passages *entity.PassageSet) []string {
	used := make(map[string]bool, len(facts))
	for _, f := range facts {
		used[f.Source] = true
	}

	var sources []string
	for _, title := range passages.Sources() {
		if used[title] {
			sources = append(sources, title)
		}
	}
	return sources
}

// missingTopicSource reports the first hint whose keywords appear in query while none of
// its required sources is among the retrieved titles.
func missingTopicSource(query string, sources []string, hints []config.TopicHint) (config.TopicHint, bool) {
	q := strings.ToLower(query)
	titles := strings.ToLower(strings.Join(sources, " "))

	for _, h := range hints {
		mentioned := false
		for _, kw := range h.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			continue
		}

		found := false
		for _, src := range h.Sources {
			if strings.Contains(titles, strings.ToLower(src)) {
				found = true
				break
			}
		}
		if !found {
			return h, true
		}
	}
	return config.TopicHint{}, false
}

func sameTitle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
