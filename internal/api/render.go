package api

import (
	"time"

	"github.com/podiumlabs/podium/internal/store"
	"github.com/podiumlabs/podium/pkg/types"
)

// presentationJSON is the wire shape of a presentation.
type presentationJSON struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	TotalXP        int       `json:"total_xp"`
	CurrentLevel   int       `json:"current_level"`
	LevelName      string    `json:"level_name"`
	KeyPoints      []string  `json:"key_points,omitempty"`
	HasDocument    bool      `json:"has_document"`
	RecordingCount int       `json:"recording_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func renderPresentation(p *store.Presentation, recordingCount int) presentationJSON {
	return presentationJSON{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		TotalXP:        p.TotalXP,
		CurrentLevel:   p.CurrentLevel,
		LevelName:      store.LevelName(p.CurrentLevel),
		KeyPoints:      p.KeyPoints,
		HasDocument:    p.DocumentText != "",
		RecordingCount: recordingCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// recordingJSON is the wire shape of a recording, metrics included. Pointer
// fields stay null until the pipeline has produced them.
type recordingJSON struct {
	ID              string                   `json:"id"`
	PresentationID  string                   `json:"presentation_id"`
	IterationNumber int                      `json:"iteration_number"`
	Status          store.Status             `json:"status"`
	AudioFormat     string                   `json:"audio_format,omitempty"`
	Transcript      string                   `json:"transcript,omitempty"`
	DurationSeconds *float64                 `json:"duration_seconds,omitempty"`
	TotalWords      int                      `json:"total_words,omitempty"`
	FillerWords     []types.FillerOccurrence `json:"filler_words,omitempty"`
	FillerCount     int                      `json:"filler_count,omitempty"`
	WordsPerMinute  *float64                 `json:"words_per_minute,omitempty"`
	PacingScore     *float64                 `json:"pacing_score,omitempty"`
	ClarityScore    *float64                 `json:"clarity_score,omitempty"`
	CoverageScore   *float64                 `json:"coverage_score,omitempty"`
	MissedPoints    []string                 `json:"missed_points,omitempty"`
	OverallScore    *float64                 `json:"overall_score,omitempty"`
	Improvement     *float64                 `json:"improvement,omitempty"`
	Feedback        string                   `json:"feedback,omitempty"`
	ErrorMessage    string                   `json:"error_message,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func renderRecording(r *store.Recording) recordingJSON {
	return recordingJSON{
		ID:              r.ID,
		PresentationID:  r.PresentationID,
		IterationNumber: r.IterationNumber,
		Status:          r.Status,
		AudioFormat:     r.AudioFormat,
		Transcript:      r.Transcript,
		DurationSeconds: r.DurationSeconds,
		TotalWords:      r.TotalWords,
		FillerWords:     r.FillerWords,
		FillerCount:     r.FillerCount,
		WordsPerMinute:  r.WordsPerMinute,
		PacingScore:     r.PacingScore,
		ClarityScore:    r.ClarityScore,
		CoverageScore:   r.CoverageScore,
		MissedPoints:    r.MissedPoints,
		OverallScore:    r.OverallScore,
		Improvement:     r.Improvement,
		Feedback:        r.Feedback,
		ErrorMessage:    r.ErrorMessage,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// badgeJSON is the wire shape of an earned badge.
type badgeJSON struct {
	Type     store.BadgeType `json:"type"`
	EarnedAt time.Time       `json:"earned_at"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

func renderBadges(badges []store.Badge) []badgeJSON {
	out := make([]badgeJSON, len(badges))
	for i, b := range badges {
		out[i] = badgeJSON{Type: b.Type, EarnedAt: b.EarnedAt, Metadata: b.Metadata}
	}
	return out
}
