package analysis

import "math"

// The ideal presentation pace. Speakers inside this band score a full 100.
const (
	idealPaceLow  = 120.0
	idealPaceHigh = 150.0
)

// WordsPerMinute computes the speaking rate for a recording, rounded to two
// decimal places. A zero duration yields 0 rather than dividing by zero.
func WordsPerMinute(totalWords int, durationSeconds float64) float64 {
	if durationSeconds == 0 {
		return 0
	}
	minutes := durationSeconds / 60
	return math.Round(float64(totalWords)/minutes*100) / 100
}

// PacingScore maps a words-per-minute value to a score in [0, 100].
//
// The mapping is piecewise: 120–150 WPM is the ideal band (100), the
// 100–120 and 150–180 shoulders degrade linearly, and rates outside those
// bands degrade faster with floors of 50 (too slow) and 40 (too fast).
func PacingScore(wpm float64) float64 {
	switch {
	case wpm == 0:
		return 0
	case wpm >= idealPaceLow && wpm <= idealPaceHigh:
		return 100
	case wpm >= 100 && wpm < idealPaceLow:
		// Slightly slow: 80–100.
		return 80 + (wpm-100)*1.0
	case wpm > idealPaceHigh && wpm <= 180:
		// Slightly fast: ~80–100.
		return 100 - (wpm-idealPaceHigh)*0.67
	case wpm < 100:
		// Too slow.
		return math.Max(50, wpm*0.8)
	default:
		// Too fast (>180).
		return math.Max(40, 100-(wpm-idealPaceHigh)*0.5)
	}
}
