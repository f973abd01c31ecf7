package analysis

import (
	"math"
	"strings"
)

// Coverage blend weights. When a presentation has key points, the base score
// keeps 70% of its weight and content coverage contributes the remaining 30%.
const (
	baseWeight     = 0.7
	coverageWeight = 0.3
)

// OverallScore combines pacing and clarity into the base overall score.
func OverallScore(pacingScore, clarityScore float64) float64 {
	return (pacingScore + clarityScore) / 2
}

// BlendCoverage folds a content-coverage score into the base overall score.
// The blend is applied exactly once, after coverage is computed — callers must
// not re-blend an already blended score.
func BlendCoverage(overall, coverageScore float64) float64 {
	return overall*baseWeight + coverageScore*coverageWeight
}

// PriorAttempt is a completed earlier recording of the same presentation,
// reduced to the two fields improvement tracking needs.
type PriorAttempt struct {
	// Iteration is the attempt's iteration number within the presentation.
	Iteration int

	// Score is the attempt's overall score.
	Score float64
}

// Improvement computes the score delta between the current attempt and the
// most recent completed attempt before it.
//
// The comparison baseline is the prior attempt with the highest iteration
// number strictly below currentIteration — not necessarily currentIteration−1,
// since failed attempts consume iteration numbers without completing. When no
// prior completed attempt exists the result is 0. The delta is rounded to one
// decimal place and may be negative.
func Improvement(currentScore float64, currentIteration int, prior []PriorAttempt) float64 {
	var (
		baseline PriorAttempt
		found    bool
	)
	for _, p := range prior {
		if p.Iteration >= currentIteration {
			continue
		}
		if !found || p.Iteration > baseline.Iteration {
			baseline = p
			found = true
		}
	}
	if !found {
		return 0
	}
	return math.Round((currentScore-baseline.Score)*10) / 10
}

// TotalWords counts the whitespace-separated words in text.
func TotalWords(text string) int {
	return len(strings.Fields(text))
}
