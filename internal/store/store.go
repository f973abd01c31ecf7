// Package store defines the Podium domain model and the persistence contract
// for presentations, recordings, and badges.
//
// Two implementations are provided: [MemStore], a thread-safe in-memory store
// suitable for tests and single-node development, and [PostgresStore], backed
// by a PostgreSQL database via pgx.
//
// The store is the serialisation point for the two operations that must not
// race: iteration-number assignment ([Store.CreateRecording]) and badge
// creation ([Store.EnsureBadge]). Implementations guarantee that concurrent
// recording creation for one presentation yields gap-free, duplicate-free
// iteration numbers, and that at most one badge row ever exists per
// (presentation, badge type) pair.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/podiumlabs/podium/pkg/types"
)

// ErrNotFound is returned when the requested presentation or recording does
// not exist.
var ErrNotFound = errors.New("not found")

// Status is the lifecycle state of a recording.
type Status string

const (
	// StatusPending is the initial state assigned at creation time.
	StatusPending Status = "pending"

	// StatusProcessing means the analysis pipeline is running.
	StatusProcessing Status = "processing"

	// StatusCompleted means all pipeline stages succeeded.
	StatusCompleted Status = "completed"

	// StatusFailed means a fatal pipeline stage raised; the error message is
	// captured on the recording.
	StatusFailed Status = "failed"
)

// IsValid reports whether s is a recognised recording status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// BadgeType identifies a one-time achievement. The set is closed; unknown
// values are never persisted.
type BadgeType string

const (
	BadgeFirstRecording  BadgeType = "first_recording"
	BadgeFirstCompletion BadgeType = "first_completion"
	BadgePerfectionist   BadgeType = "perfectionist"
	BadgeFiveRecordings  BadgeType = "five_recordings"
	BadgeTenRecordings   BadgeType = "ten_recordings"
	BadgeLevelUp         BadgeType = "level_up"
	BadgeMaxLevel        BadgeType = "max_level"
)

// Level bounds and the XP cost of one level.
const (
	MinLevel   = 1
	MaxLevel   = 5
	xpPerLevel = 100
)

// LevelForXP derives the level for a cumulative XP total:
// clamp(xp/100 + 1, 1, 5). Every XP mutation recomputes the stored level with
// this formula so the two fields never drift apart.
func LevelForXP(totalXP int) int {
	level := totalXP/xpPerLevel + 1
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// LevelName returns the display name for a level.
func LevelName(level int) string {
	switch level {
	case 1:
		return "Novice"
	case 2:
		return "Apprentice"
	case 3:
		return "Speaker"
	case 4:
		return "Orator"
	case 5:
		return "Master"
	default:
		return "Unknown"
	}
}

// Presentation is the aggregate root owning recordings, XP, and badges.
type Presentation struct {
	ID          string
	Title       string
	Description string

	// TotalXP is the accumulated XP ledger total. Never negative. Mutated
	// only through [Store.AddXP].
	TotalXP int

	// CurrentLevel is derived from TotalXP via [LevelForXP] and updated in
	// the same mutation.
	CurrentLevel int

	// KeyPoints is the ordered key-point list extracted from the optional
	// reference document. Empty when no document has been processed.
	KeyPoints []string

	// DocumentText is the full extracted text of the reference document.
	DocumentText string

	// GeneratedQuestions caches the Q&A list produced by the text-generation
	// collaborator.
	GeneratedQuestions []types.QAItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recording is a single attempt at a presentation. Metric fields are nil
// until the pipeline stage that produces them has run; a failed run preserves
// whatever was computed before the failing stage.
type Recording struct {
	ID             string
	PresentationID string

	// IterationNumber is the attempt sequence number within the
	// presentation: positive, gap-free, assigned at creation, immutable.
	IterationNumber int

	Status Status

	// AudioPath is where the uploaded audio lives on disk.
	AudioPath string

	// AudioFormat is the declared container format of the upload (e.g. "wav").
	AudioFormat string

	Transcript      string
	DurationSeconds *float64
	TotalWords      int
	FillerWords     []types.FillerOccurrence
	FillerCount     int
	WordsPerMinute  *float64
	PacingScore     *float64
	ClarityScore    *float64
	CoverageScore   *float64
	MissedPoints    []string
	OverallScore    *float64
	Improvement     *float64
	Feedback        string
	ErrorMessage    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Badge is a one-time achievement earned by a presentation.
type Badge struct {
	PresentationID string
	Type           BadgeType
	EarnedAt       time.Time
	Metadata       map[string]any
}

// Store is the persistence contract consumed by the pipeline, the
// gamification engine, and the HTTP surface.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// CreatePresentation inserts p, assigning an ID when empty and
	// initialising XP/level to their zero-attempt values.
	CreatePresentation(ctx context.Context, p *Presentation) error

	// GetPresentation retrieves a presentation by ID.
	// Returns [ErrNotFound] when it does not exist.
	GetPresentation(ctx context.Context, id string) (*Presentation, error)

	// ListPresentations returns all presentations, newest first.
	ListPresentations(ctx context.Context) ([]Presentation, error)

	// SetDocument stores the extracted reference-document text and key
	// points on a presentation.
	SetDocument(ctx context.Context, presentationID, fullText string, keyPoints []string) error

	// SetQuestions caches the generated Q&A list on a presentation.
	SetQuestions(ctx context.Context, presentationID string, questions []types.QAItem) error

	// CreateRecording inserts r with status pending, assigning an ID when
	// empty and the next iteration number for its presentation. The
	// iteration assignment is atomic: concurrent calls for one presentation
	// never produce duplicates or gaps.
	CreateRecording(ctx context.Context, r *Recording) error

	// GetRecording retrieves a recording by ID.
	// Returns [ErrNotFound] when it does not exist.
	GetRecording(ctx context.Context, id string) (*Recording, error)

	// ListRecordings returns all recordings of a presentation ordered by
	// iteration number.
	ListRecordings(ctx context.Context, presentationID string) ([]Recording, error)

	// UpdateRecording persists r's status and metric fields.
	// Returns [ErrNotFound] when the recording does not exist.
	UpdateRecording(ctx context.Context, r *Recording) error

	// ListCompletedBefore returns the completed recordings of a presentation
	// with iteration numbers strictly below iteration, ordered by iteration
	// number.
	ListCompletedBefore(ctx context.Context, presentationID string, iteration int) ([]Recording, error)

	// CountRecordings returns the number of recordings (any status) for a
	// presentation.
	CountRecordings(ctx context.Context, presentationID string) (int, error)

	// CountCompleted returns the number of completed recordings for a
	// presentation.
	CountCompleted(ctx context.Context, presentationID string) (int, error)

	// AddXP atomically adds amount to a presentation's XP total and
	// recomputes its level, returning the new totals. amount must be
	// positive.
	AddXP(ctx context.Context, presentationID string, amount int) (totalXP, level int, err error)

	// EnsureBadge records a badge if it has not been earned yet. Returns
	// true when the badge was newly created and false when it already
	// existed; concurrent calls for the same (presentation, badge type) pair
	// report true exactly once.
	EnsureBadge(ctx context.Context, presentationID string, badgeType BadgeType, metadata map[string]any) (created bool, err error)

	// ListBadges returns all badges earned by a presentation, oldest first.
	ListBadges(ctx context.Context, presentationID string) ([]Badge, error)
}
