// Package coach turns a recording's analysis metrics into narrative coaching
// feedback.
//
// Feedback generation is best-effort: the coach asks the configured LLM for a
// structured review of the speaker's performance, and when that fails (the
// provider errors, times out, or returns nothing) it degrades to
// [FallbackFeedback], deterministic text derived from the same metrics. A
// recording therefore always ends up with feedback and the pipeline never
// fails on this stage.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/podiumlabs/podium/pkg/provider/llm"
	"github.com/podiumlabs/podium/pkg/types"
)

const (
	// excerptLimit caps the transcript excerpt embedded in the prompt.
	excerptLimit = 500

	// topFillers caps the filler frequency table embedded in the prompt.
	topFillers = 10

	temperature = 0.7
)

const systemPrompt = "You are an expert presentation coach with 20+ years of experience. " +
	"You provide constructive, actionable, and encouraging feedback. " +
	"Focus on specific improvements while highlighting strengths. " +
	"Keep your feedback structured and easy to follow."

// Analysis carries the metrics the coach reasons about.
type Analysis struct {
	DurationSeconds float64
	TotalWords      int
	WordsPerMinute  float64
	FillerCount     int
	FillerWords     []types.FillerOccurrence
	PacingScore     float64
	ClarityScore    float64
	OverallScore    float64
	Transcript      string
}

// Coach generates narrative feedback through an LLM provider.
type Coach struct {
	provider llm.Provider
	log      *slog.Logger
}

// Option configures a [Coach].
type Option func(*Coach)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Coach) {
		c.log = log
	}
}

// New creates a [Coach] backed by the given LLM provider. provider may be nil,
// in which case every Feedback call returns the deterministic fallback.
func New(provider llm.Provider, opts ...Option) *Coach {
	c := &Coach{
		provider: provider,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feedback produces coaching feedback for one analysed recording. It never
// fails: LLM errors are logged and answered with [FallbackFeedback].
func (c *Coach) Feedback(ctx context.Context, a Analysis) string {
	if c.provider == nil {
		return FallbackFeedback(a)
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: buildPrompt(a)},
		},
		Temperature: temperature,
	})
	if err != nil {
		c.log.Warn("llm feedback failed, using fallback", "error", err)
		return FallbackFeedback(a)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		c.log.Warn("llm returned empty feedback, using fallback")
		return FallbackFeedback(a)
	}
	return text
}

// buildPrompt assembles the coaching prompt: recording details, scores, a
// filler frequency table, and a transcript excerpt, followed by the sections
// the response should contain.
func buildPrompt(a Analysis) string {
	var b strings.Builder

	b.WriteString("Please analyze this presentation recording and provide detailed coaching feedback:\n\n")

	b.WriteString("**RECORDING DETAILS:**\n")
	fmt.Fprintf(&b, "- Duration: %.1f seconds\n", a.DurationSeconds)
	fmt.Fprintf(&b, "- Total Words: %d\n", a.TotalWords)
	fmt.Fprintf(&b, "- Words Per Minute: %.1f WPM\n", a.WordsPerMinute)
	fmt.Fprintf(&b, "- Filler Words Detected: %d\n\n", a.FillerCount)

	b.WriteString("**SCORES:**\n")
	fmt.Fprintf(&b, "- Pacing Score: %.1f/100\n", a.PacingScore)
	fmt.Fprintf(&b, "- Clarity Score: %.1f/100\n", a.ClarityScore)
	fmt.Fprintf(&b, "- Overall Score: %.1f/100\n\n", a.OverallScore)

	b.WriteString("**COMMON FILLER WORDS USED:**\n")
	b.WriteString(fillerTable(a.FillerWords))
	b.WriteString("\n\n**TRANSCRIPTION EXCERPT:**\n")
	b.WriteString(excerpt(a.Transcript))

	b.WriteString("\n\nBased on this data, please provide:\n\n")
	b.WriteString("1. **Overall Assessment** (2-3 sentences about their performance)\n\n")
	b.WriteString("2. **Strengths** (What they did well)\n\n")
	b.WriteString("3. **Areas for Improvement** (Specific issues to address)\n\n")
	b.WriteString("4. **Actionable Tips** (3-5 concrete steps they can take to improve)\n\n")
	b.WriteString("5. **Next Practice Focus** (What to focus on in their next recording)\n\n")
	b.WriteString("Format your response in clear sections with bullet points where appropriate.\n")
	b.WriteString("Be encouraging but honest. Focus on growth and improvement.")

	return b.String()
}

// fillerTable renders the top filler words by frequency, most frequent first.
// Ties keep first-occurrence order.
func fillerTable(fillers []types.FillerOccurrence) string {
	if len(fillers) == 0 {
		return "None detected - Excellent!"
	}

	counts := map[string]int{}
	var order []string
	for _, f := range fillers {
		if _, seen := counts[f.Word]; !seen {
			order = append(order, f.Word)
		}
		counts[f.Word]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topFillers {
		order = order[:topFillers]
	}

	lines := make([]string, 0, len(order))
	for _, word := range order {
		lines = append(lines, fmt.Sprintf("  - '%s': %d times", word, counts[word]))
	}
	return strings.Join(lines, "\n")
}

// excerpt truncates the transcript for prompt context.
func excerpt(transcript string) string {
	if transcript == "" {
		return "No transcription available"
	}
	if len(transcript) <= excerptLimit {
		return transcript
	}
	return transcript[:excerptLimit] + "... [truncated]"
}

// FallbackFeedback produces deterministic feedback from the metrics alone.
// Used whenever LLM generation is unavailable or fails.
func FallbackFeedback(a Analysis) string {
	var b strings.Builder

	b.WriteString("## Overall Assessment\n\n")
	fmt.Fprintf(&b, "Your presentation scored %.1f/100. Here's a breakdown of your performance:\n\n", a.OverallScore)

	b.WriteString("## Pacing Analysis\n\n")
	fmt.Fprintf(&b, "You spoke at %.1f words per minute. ", a.WordsPerMinute)
	switch {
	case a.WordsPerMinute >= 120 && a.WordsPerMinute <= 150:
		b.WriteString("This is an excellent pace - clear and easy to follow!")
	case a.WordsPerMinute < 120:
		b.WriteString("Consider speaking a bit faster to maintain audience engagement.")
	default:
		b.WriteString("Try slowing down slightly to ensure clarity and comprehension.")
	}

	b.WriteString("\n\n## Clarity Analysis\n\n")
	fmt.Fprintf(&b, "You used %d filler words in your presentation. ", a.FillerCount)
	switch {
	case a.FillerCount < 5:
		b.WriteString("Excellent control of filler words! Your speech is very clear.")
	case a.FillerCount < 15:
		b.WriteString("Good job! A few filler words are normal, but try to reduce them further.")
	default:
		b.WriteString("Focus on reducing filler words. Practice pausing instead of using fillers.")
	}

	b.WriteString("\n\n## Action Steps\n\n")
	b.WriteString("1. Record yourself practicing and review the playback\n")
	b.WriteString("2. Practice pausing briefly instead of using filler words\n")
	b.WriteString("3. Focus on maintaining consistent pacing throughout\n")
	b.WriteString("4. Work on confidence through repeated practice\n\n")
	b.WriteString("Keep practicing - you're making progress!")

	return b.String()
}
