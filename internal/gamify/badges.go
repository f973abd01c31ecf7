package gamify

import (
	"context"
	"fmt"

	"github.com/podiumlabs/podium/internal/store"
)

// FactContext carries the per-event facts badge predicates evaluate against,
// alongside the counts read from the ledger.
type FactContext struct {
	// OverallScore is the blended overall score of the recording that
	// triggered the event. Nil when the event is not score-bearing (e.g.
	// document uploads).
	OverallScore *float64
}

// facts is the assembled state a badge rule sees.
type facts struct {
	FactContext
	award      *Award
	recordings int
	completed  int
}

// badgeRule pairs a badge with its predicate. Rules are evaluated in order on
// every successful XP award; the store makes repeated grants a no-op. Some
// predicates additionally gate on the triggering event, matching the rule set
// exactly: first_recording fires only on its own event, first_completion on a
// completion event with exactly one completed recording, and perfectionist on
// score-bearing events at 90 or above.
type badgeRule struct {
	badge store.BadgeType
	holds func(f facts) bool
}

// scoreBearing reports whether the event carries a recording's overall score.
func scoreBearing(e Event) bool {
	switch e {
	case EventCompletion, EventHighScore90, EventHighScore95:
		return true
	}
	return false
}

var badgeRules = []badgeRule{
	{store.BadgeFirstRecording, func(f facts) bool {
		return f.award.Event == EventFirstRecording
	}},
	{store.BadgeFirstCompletion, func(f facts) bool {
		return f.award.Event == EventCompletion && f.completed == 1
	}},
	{store.BadgePerfectionist, func(f facts) bool {
		return scoreBearing(f.award.Event) && f.OverallScore != nil && *f.OverallScore >= 90
	}},
	{store.BadgeFiveRecordings, func(f facts) bool {
		return f.recordings >= 5
	}},
	{store.BadgeTenRecordings, func(f facts) bool {
		return f.recordings >= 10
	}},
	{store.BadgeLevelUp, func(f facts) bool {
		return f.award.NewLevel >= 2
	}},
	{store.BadgeMaxLevel, func(f facts) bool {
		return f.award.NewLevel >= store.MaxLevel
	}},
}

// evaluateBadges runs every rule against the post-award state and records the
// badges whose predicates hold. Only badges newly created by this call are
// returned.
func (e *Engine) evaluateBadges(ctx context.Context, presentationID string, award *Award, fctx FactContext) ([]store.BadgeType, error) {
	recordings, err := e.ledger.CountRecordings(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("gamify: evaluate badges: %w", err)
	}
	completed, err := e.ledger.CountCompleted(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("gamify: evaluate badges: %w", err)
	}

	f := facts{
		FactContext: fctx,
		award:       award,
		recordings:  recordings,
		completed:   completed,
	}

	earned := []store.BadgeType{}
	for _, rule := range badgeRules {
		if !rule.holds(f) {
			continue
		}
		created, err := e.ledger.EnsureBadge(ctx, presentationID, rule.badge, badgeMetadata(rule.badge, f))
		if err != nil {
			return nil, fmt.Errorf("gamify: grant badge %q: %w", rule.badge, err)
		}
		if created {
			earned = append(earned, rule.badge)
		}
	}
	return earned, nil
}

// badgeMetadata captures the triggering state worth keeping on the badge row.
func badgeMetadata(badge store.BadgeType, f facts) map[string]any {
	meta := map[string]any{"event": string(f.award.Event)}
	switch badge {
	case store.BadgePerfectionist:
		if f.OverallScore != nil {
			meta["score"] = *f.OverallScore
		}
	case store.BadgeLevelUp, store.BadgeMaxLevel:
		meta["level"] = f.award.NewLevel
	case store.BadgeFiveRecordings, store.BadgeTenRecordings:
		meta["recordings"] = f.recordings
	}
	return meta
}
