// Package qa generates anticipated audience questions for a presentation.
//
// The generator asks the configured LLM for a JSON array of question items
// and runs the reply through a schema-validating parser: markdown code fences
// are stripped, items without a question are dropped, and difficulties are
// normalised to the closed easy/medium/hard set. Free-form model output is
// never trusted to be well formed, so a parse failure yields an empty list
// and a failed LLM call yields [FallbackQuestions]; neither surfaces an error
// to the caller.
package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/podiumlabs/podium/pkg/provider/llm"
	"github.com/podiumlabs/podium/pkg/types"
)

const (
	// documentLimit caps the document text embedded in the prompt.
	documentLimit = 2000

	temperature = 0.8
)

const systemPrompt = "You are an expert at anticipating audience questions for presentations. " +
	"Generate thoughtful, realistic questions that an audience might ask, along with " +
	"suggested answer frameworks. Focus on clarity, relevance, and helping the presenter " +
	"prepare thoroughly."

// Difficulty levels accepted from the model; anything else normalises to medium.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Input describes the presentation the questions are generated for.
type Input struct {
	Title        string
	Description  string
	DocumentText string
}

// Generator produces audience questions through an LLM provider.
type Generator struct {
	provider llm.Provider
	log      *slog.Logger
}

// Option configures a [Generator].
type Option func(*Generator)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

// New creates a [Generator] backed by the given LLM provider. provider may be
// nil, in which case every Generate call returns the fallback list.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider: provider,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the question list for a presentation. It never fails: LLM
// errors are logged and answered with [FallbackQuestions], and unparseable
// model output yields an empty list.
func (g *Generator) Generate(ctx context.Context, in Input) []types.QAItem {
	if g.provider == nil {
		return FallbackQuestions(in.Title)
	}

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: buildPrompt(in)},
		},
		Temperature: temperature,
	})
	if err != nil {
		g.log.Warn("llm question generation failed, using fallback", "error", err)
		return FallbackQuestions(in.Title)
	}

	items, err := ParseResponse(resp.Content)
	if err != nil {
		g.log.Warn("unparseable question response, returning none", "error", err)
		return []types.QAItem{}
	}
	return items
}

// buildPrompt assembles the generation prompt from the presentation metadata
// and a bounded document excerpt.
func buildPrompt(in Input) string {
	content := in.DocumentText
	if len(content) > documentLimit {
		content = content[:documentLimit] + "..."
	}
	if content == "" {
		content = "No document provided - generate general questions based on the title and description."
	}

	var b strings.Builder
	b.WriteString("Generate 8-10 realistic questions that an audience might ask after this presentation:\n\n")
	fmt.Fprintf(&b, "PRESENTATION TITLE: %s\n\n", in.Title)
	fmt.Fprintf(&b, "DESCRIPTION: %s\n\n", in.Description)
	fmt.Fprintf(&b, "CONTENT OVERVIEW:\n%s\n\n", content)
	b.WriteString("For each question, provide:\n")
	b.WriteString("1. The question itself\n")
	b.WriteString("2. A brief answer framework (2-3 sentences on how to approach answering it)\n")
	b.WriteString("3. Difficulty level (easy, medium, hard)\n\n")
	b.WriteString("Format your response as a JSON array. Return ONLY the JSON array, no additional text.\n\n")
	b.WriteString("Example format:\n")
	b.WriteString(`[` + "\n")
	b.WriteString(`  {"question": "What is the main goal?", "answer_framework": "Explain the objective clearly.", "difficulty": "easy"},` + "\n")
	b.WriteString(`  {"question": "How will you measure success?", "answer_framework": "Define metrics and KPIs.", "difficulty": "medium"}` + "\n")
	b.WriteString(`]` + "\n\n")
	b.WriteString("Focus on questions about clarifications, implementation details, challenges, impact, timeline, and resources.")
	return b.String()
}

// ParseResponse validates free-form model output into a question list.
// Markdown code fences are stripped, items missing a question are dropped,
// and unknown difficulties become medium.
func ParseResponse(text string) ([]types.QAItem, error) {
	text = stripCodeFence(strings.TrimSpace(text))

	var raw []types.QAItem
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("qa: parse response: %w", err)
	}

	items := []types.QAItem{}
	for _, item := range raw {
		if strings.TrimSpace(item.Question) == "" {
			continue
		}
		item.Difficulty = normalizeDifficulty(item.Difficulty)
		items = append(items, item)
	}
	return items, nil
}

// stripCodeFence removes a surrounding markdown code fence (```json ... ```)
// when present.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= 2 {
		return text
	}
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines[1:], "\n")
}

func normalizeDifficulty(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// FallbackQuestions is the fixed question list used when generation fails.
// The first question embeds the presentation title.
func FallbackQuestions(title string) []types.QAItem {
	if title == "" {
		title = "this topic"
	}
	return []types.QAItem{
		{
			Question:        fmt.Sprintf("What is the main objective of %s?", title),
			AnswerFramework: "Clearly state the primary goal and its importance. Explain why this matters to the audience and what success looks like.",
			Difficulty:      DifficultyEasy,
		},
		{
			Question:        "What are the key challenges you anticipate?",
			AnswerFramework: "List 2-3 main challenges and explain your mitigation strategies. Be honest about risks while showing you have thought through solutions.",
			Difficulty:      DifficultyMedium,
		},
		{
			Question:        "What timeline are you working with?",
			AnswerFramework: "Provide a high-level timeline with key milestones. Break it down into phases if applicable and mention any dependencies.",
			Difficulty:      DifficultyEasy,
		},
		{
			Question:        "How will you measure success?",
			AnswerFramework: "Define specific metrics and success criteria. Explain how you will track progress and when results will be evaluated.",
			Difficulty:      DifficultyMedium,
		},
		{
			Question:        "What resources will be required?",
			AnswerFramework: "Break down human, financial, and technical resources needed. Explain how resources will be allocated and any budget considerations.",
			Difficulty:      DifficultyMedium,
		},
		{
			Question:        "How does this align with broader organizational goals?",
			AnswerFramework: "Connect your presentation to larger strategic objectives. Show how this work supports the bigger picture and creates value.",
			Difficulty:      DifficultyMedium,
		},
		{
			Question:        "What are the potential risks and how will you address them?",
			AnswerFramework: "Identify top 3-5 risks with their likelihood and impact. Explain your risk mitigation plan and contingency strategies.",
			Difficulty:      DifficultyHard,
		},
		{
			Question:        "Who are the key stakeholders and how will they be involved?",
			AnswerFramework: "List primary stakeholders and their roles. Explain your communication and engagement plan throughout the project.",
			Difficulty:      DifficultyMedium,
		},
	}
}
