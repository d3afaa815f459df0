package pipeline

import (
	"strings"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/textutil"
)

const (
	complexThreshold = 5
	mediumThreshold  = 2
)

var (
	procedureTerms = []string{"steps", "procedure", "process", "how to"}
	emergencyTerms = []string{"emergency", "accident", "injury", "occurs", "if"}
	multiPartTerms = []string{"and", "also", "plus", "as well as"}
	allTerms       = []string{"all", "every", "complete", "full list"}
	listTerms      = []string{"ppe", "equipment", "tools", "requirements", "need", "required"}
	yesNoPrefixes  = []string{"can i", "should i", "is it", "do i", "may i", "am i"}
)

// AnalyzeComplexity scores a query and picks the target length band for its answer.
func AnalyzeComplexity(query string) entity.Complexity {
	words := textutil.Words(query)
	joined := " " + strings.Join(words, " ") + " "

	has := func(terms []string) bool {
		for _, t := range terms {
			if strings.Contains(joined, " "+t+" ") {
				return true
			}
		}
		return false
	}

	score := 0
	if has(procedureTerms) {
		score += 3
	}
	if has(emergencyTerms) {
		score += 2
	}
	if has(multiPartTerms) {
		score += 2
	}
	if has(allTerms) {
		score += 2
	}
	if has(listTerms) {
		score += 2
	}
	if len(words) > 12 {
		score++
	}
	if score == 0 {
		for _, p := range yesNoPrefixes {
			if strings.HasPrefix(joined, " "+p+" ") {
				score = -1
				break
			}
		}
	}

	switch {
	case score >= complexThreshold:
		return entity.Complexity{Level: entity.ComplexityComplex, Score: score, MinChars: 1000, MaxChars: 1250}
	case score >= mediumThreshold:
		return entity.Complexity{Level: entity.ComplexityMedium, Score: score, MinChars: 700, MaxChars: 900}
	default:
		return entity.Complexity{Level: entity.ComplexitySimple, Score: score, MinChars: 400, MaxChars: 600}
	}
}
