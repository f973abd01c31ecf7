// Package gamify implements the XP and badge engine layered on top of the
// store.
//
// XP is awarded for a closed set of [Event] values, each with a fixed amount.
// Levels are derived from the XP total by the store in the same mutation, so
// the engine only reports the transition. Badges are one-time achievements
// evaluated after every XP award; persistence idempotence (at most one badge
// per type per presentation) is delegated to [Ledger.EnsureBadge].
package gamify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/podiumlabs/podium/internal/store"
)

// Event is a gamifiable action. Unknown events award nothing.
type Event string

const (
	// EventFirstRecording fires once when a presentation receives its very
	// first recording.
	EventFirstRecording Event = "first_recording"

	// EventRecordingUpload fires for every uploaded recording.
	EventRecordingUpload Event = "recording_upload"

	// EventCompletion fires when a recording finishes analysis successfully.
	EventCompletion Event = "completion"

	// EventHighScore90 fires when a completed recording scores 90 or above.
	EventHighScore90 Event = "high_score_90"

	// EventHighScore95 fires when a completed recording scores 95 or above,
	// in addition to [EventHighScore90].
	EventHighScore95 Event = "high_score_95"

	// EventImprovement fires when a completed recording beats the previous
	// best-iteration baseline.
	EventImprovement Event = "improvement"

	// EventDocumentUpload fires when a reference document is processed.
	EventDocumentUpload Event = "document_upload"
)

// xpAmounts maps each event to its fixed XP award.
var xpAmounts = map[Event]int{
	EventFirstRecording:  50,
	EventRecordingUpload: 20,
	EventCompletion:      30,
	EventHighScore90:     50,
	EventHighScore95:     75,
	EventImprovement:     25,
	EventDocumentUpload:  30,
}

// XPFor returns the XP amount awarded for an event, or 0 for unknown events.
func XPFor(event Event) int {
	return xpAmounts[event]
}

// Ledger is the store subset the engine needs. *store.MemStore and
// *store.PostgresStore both satisfy it.
type Ledger interface {
	GetPresentation(ctx context.Context, id string) (*store.Presentation, error)
	AddXP(ctx context.Context, presentationID string, amount int) (totalXP, level int, err error)
	EnsureBadge(ctx context.Context, presentationID string, badgeType store.BadgeType, metadata map[string]any) (bool, error)
	CountRecordings(ctx context.Context, presentationID string) (int, error)
	CountCompleted(ctx context.Context, presentationID string) (int, error)
}

// Award summarises the outcome of one XP event.
type Award struct {
	Event        Event             `json:"event"`
	XPAwarded    int               `json:"xp_awarded"`
	TotalXP      int               `json:"total_xp"`
	OldLevel     int               `json:"old_level"`
	NewLevel     int               `json:"new_level"`
	LeveledUp    bool              `json:"leveled_up"`
	LevelName    string            `json:"level_name"`
	BadgesEarned []store.BadgeType `json:"badges_earned"`
}

// Engine awards XP and evaluates badge rules.
type Engine struct {
	ledger Ledger
	log    *slog.Logger
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates an [Engine] backed by the given ledger.
func NewEngine(ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: ledger,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AwardXP applies one event to a presentation: it adds the event's XP, reports
// any level transition, and evaluates all badge rules against the new state.
// Unknown events award nothing and report the presentation's current totals
// without mutating anything.
//
// fctx carries the facts badge predicates need beyond the store counts, such
// as the overall score of the recording that triggered the event.
func (e *Engine) AwardXP(ctx context.Context, presentationID string, event Event, fctx FactContext) (*Award, error) {
	amount, ok := xpAmounts[event]
	if !ok {
		e.log.Warn("ignoring unknown xp event", "event", string(event), "presentation_id", presentationID)
		p, err := e.ledger.GetPresentation(ctx, presentationID)
		if err != nil {
			return nil, fmt.Errorf("gamify: award %q: %w", event, err)
		}
		return &Award{
			Event:        event,
			TotalXP:      p.TotalXP,
			OldLevel:     p.CurrentLevel,
			NewLevel:     p.CurrentLevel,
			LevelName:    store.LevelName(p.CurrentLevel),
			BadgesEarned: []store.BadgeType{},
		}, nil
	}

	before, err := e.ledger.GetPresentation(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("gamify: award %q: %w", event, err)
	}
	oldLevel := before.CurrentLevel

	totalXP, newLevel, err := e.ledger.AddXP(ctx, presentationID, amount)
	if err != nil {
		return nil, fmt.Errorf("gamify: award %q: %w", event, err)
	}

	award := &Award{
		Event:     event,
		XPAwarded: amount,
		TotalXP:   totalXP,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LeveledUp: newLevel > oldLevel,
		LevelName: store.LevelName(newLevel),
	}

	badges, err := e.evaluateBadges(ctx, presentationID, award, fctx)
	if err != nil {
		return nil, err
	}
	award.BadgesEarned = badges

	e.log.Info("xp awarded",
		"presentation_id", presentationID,
		"event", string(event),
		"xp", amount,
		"total_xp", totalXP,
		"level", newLevel,
		"badges", len(badges))
	return award, nil
}
