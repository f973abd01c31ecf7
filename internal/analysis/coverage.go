package analysis

import (
	"math"
	"strings"
)

// coverageThreshold is the fraction of a key point's significant words that
// must appear in the transcript for the point to count as covered.
const coverageThreshold = 0.5

// stopWords are excluded from key-point words before coverage matching.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {},
}

// CoverageResult reports how well a transcript covers a set of key points.
type CoverageResult struct {
	// Score is the percentage of key points judged covered, rounded to one
	// decimal place. An empty key-point list yields 100 — a presentation
	// without a reference document is not penalised.
	Score float64 `json:"coverage_score"`

	// MissedPoints lists the uncovered key points in their original order.
	MissedPoints []string `json:"missed_points"`
}

// ContentCoverage measures how many of the given key points the transcript
// touches on.
//
// For each point the significant words (lowercased, stop words removed) are
// tested for containment anywhere in the lowercased transcript; the point is
// covered when at least half of them appear. Points reduced to an empty word
// set by stop-word removal are treated as automatically covered and never
// reported as missed.
func ContentCoverage(transcript string, keyPoints []string) CoverageResult {
	if len(keyPoints) == 0 {
		return CoverageResult{Score: 100, MissedPoints: []string{}}
	}

	transcriptLower := strings.ToLower(transcript)
	covered := 0
	missed := []string{}

	for _, point := range keyPoints {
		words := significantWords(point)
		if len(words) == 0 {
			covered++
			continue
		}

		matches := 0
		for word := range words {
			if strings.Contains(transcriptLower, word) {
				matches++
			}
		}
		if float64(matches)/float64(len(words)) >= coverageThreshold {
			covered++
		} else {
			missed = append(missed, point)
		}
	}

	score := float64(covered) / float64(len(keyPoints)) * 100
	return CoverageResult{
		Score:        math.Round(score*10) / 10,
		MissedPoints: missed,
	}
}

// significantWords returns the lowercased word set of point with stop words
// removed.
func significantWords(point string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(point)) {
		if _, stop := stopWords[w]; !stop {
			words[w] = struct{}{}
		}
	}
	return words
}
