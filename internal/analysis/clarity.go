package analysis

import "math"

// ClarityScore maps filler-word density to a score in [0, 100].
//
// Density is the filler count as a percentage of total words. Under 2% is
// excellent (100), 2–5% good (90 down to ~80), 5–10% acceptable (70 down to
// 50), and above 10% degrades toward a floor of 40. A recording with no words
// scores 0.
func ClarityScore(fillerCount, totalWords int) float64 {
	if totalWords == 0 {
		return 0
	}

	density := float64(fillerCount) / float64(totalWords) * 100

	switch {
	case density < 2:
		return 100
	case density < 5:
		return 90 - (density-2)*3.33
	case density < 10:
		return 70 - (density-5)*4
	default:
		return math.Max(40, 70-(density-10)*3)
	}
}
