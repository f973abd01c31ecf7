package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/podiumlabs/podium/pkg/types"
)

// Schema is the SQL DDL for the Podium tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
//
// The composite primary key on badges is what makes [Store.EnsureBadge]
// idempotent under concurrency, and the foreign keys keep recordings and
// badges attached to a live presentation.
const Schema = `
CREATE TABLE IF NOT EXISTS presentations (
    id                  TEXT PRIMARY KEY,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    total_xp            INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
    current_level       INTEGER NOT NULL DEFAULT 1,
    key_points          JSONB NOT NULL DEFAULT '[]',
    document_text       TEXT NOT NULL DEFAULT '',
    generated_questions JSONB NOT NULL DEFAULT '[]',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recordings (
    id               TEXT PRIMARY KEY,
    presentation_id  TEXT NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
    iteration_number INTEGER NOT NULL CHECK (iteration_number > 0),
    status           TEXT NOT NULL DEFAULT 'pending',
    audio_path       TEXT NOT NULL DEFAULT '',
    audio_format     TEXT NOT NULL DEFAULT '',
    transcript       TEXT NOT NULL DEFAULT '',
    duration_seconds DOUBLE PRECISION,
    total_words      INTEGER NOT NULL DEFAULT 0,
    filler_words     JSONB NOT NULL DEFAULT '[]',
    filler_count     INTEGER NOT NULL DEFAULT 0,
    words_per_minute DOUBLE PRECISION,
    pacing_score     DOUBLE PRECISION,
    clarity_score    DOUBLE PRECISION,
    coverage_score   DOUBLE PRECISION,
    missed_points    JSONB NOT NULL DEFAULT '[]',
    overall_score    DOUBLE PRECISION,
    improvement      DOUBLE PRECISION,
    feedback         TEXT NOT NULL DEFAULT '',
    error_message    TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (presentation_id, iteration_number)
);
CREATE INDEX IF NOT EXISTS idx_recordings_presentation ON recordings(presentation_id);

CREATE TABLE IF NOT EXISTS badges (
    presentation_id TEXT NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
    badge_type      TEXT NOT NULL,
    earned_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    metadata        JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (presentation_id, badge_type)
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Structured
// sub-fields (key points, filler occurrences, questions) are serialised as
// JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreatePresentation implements [Store.CreatePresentation].
func (s *PostgresStore) CreatePresentation(ctx context.Context, p *Presentation) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO presentations (id, title, description)
		VALUES ($1, $2, $3)
		RETURNING total_xp, current_level, created_at, updated_at`

	err := s.db.QueryRow(ctx, query, p.ID, p.Title, p.Description).
		Scan(&p.TotalXP, &p.CurrentLevel, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create presentation: %w", err)
	}
	return nil
}

const presentationColumns = `id, title, description, total_xp, current_level,
       key_points, document_text, generated_questions, created_at, updated_at`

// GetPresentation implements [Store.GetPresentation].
func (s *PostgresStore) GetPresentation(ctx context.Context, id string) (*Presentation, error) {
	query := `SELECT ` + presentationColumns + ` FROM presentations WHERE id = $1`

	p, err := scanPresentation(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get presentation %q: %w", id, err)
	}
	return p, nil
}

// ListPresentations implements [Store.ListPresentations].
func (s *PostgresStore) ListPresentations(ctx context.Context) ([]Presentation, error) {
	query := `SELECT ` + presentationColumns + ` FROM presentations ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list presentations: %w", err)
	}
	defer rows.Close()

	var result []Presentation
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list presentations: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list presentations: %w", err)
	}
	return result, nil
}

// SetDocument implements [Store.SetDocument].
func (s *PostgresStore) SetDocument(ctx context.Context, presentationID, fullText string, keyPoints []string) error {
	kpJSON, err := json.Marshal(emptySlice(keyPoints))
	if err != nil {
		return fmt.Errorf("store: marshal key_points: %w", err)
	}

	const query = `
		UPDATE presentations
		SET document_text = $2, key_points = $3, updated_at = now()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, presentationID, fullText, kpJSON)
	if err != nil {
		return fmt.Errorf("store: set document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetQuestions implements [Store.SetQuestions].
func (s *PostgresStore) SetQuestions(ctx context.Context, presentationID string, questions []types.QAItem) error {
	qJSON, err := json.Marshal(emptySlice(questions))
	if err != nil {
		return fmt.Errorf("store: marshal questions: %w", err)
	}

	const query = `
		UPDATE presentations
		SET generated_questions = $2, updated_at = now()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, presentationID, qJSON)
	if err != nil {
		return fmt.Errorf("store: set questions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRecording implements [Store.CreateRecording]. The presentation row is
// locked for the duration of the transaction, so concurrent inserts for the
// same presentation serialise and each observes the true current maximum
// iteration number.
func (s *PostgresStore) CreateRecording(ctx context.Context, r *Recording) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: create recording: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT true FROM presentations WHERE id = $1 FOR UPDATE`,
		r.PresentationID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("store: create recording: lock presentation: %w", err)
	}

	const query = `
		INSERT INTO recordings (id, presentation_id, iteration_number, status, audio_path, audio_format)
		SELECT $1, $2, COALESCE(MAX(iteration_number), 0) + 1, $3, $4, $5
		FROM recordings WHERE presentation_id = $2
		RETURNING iteration_number, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		r.ID, r.PresentationID, StatusPending, r.AudioPath, r.AudioFormat,
	).Scan(&r.IterationNumber, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create recording: %w", err)
	}
	r.Status = StatusPending

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: create recording: commit: %w", err)
	}
	return nil
}

const recordingColumns = `id, presentation_id, iteration_number, status, audio_path, audio_format,
       transcript, duration_seconds, total_words, filler_words, filler_count,
       words_per_minute, pacing_score, clarity_score, coverage_score, missed_points,
       overall_score, improvement, feedback, error_message, created_at, updated_at`

// GetRecording implements [Store.GetRecording].
func (s *PostgresStore) GetRecording(ctx context.Context, id string) (*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`

	r, err := scanRecording(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get recording %q: %w", id, err)
	}
	return r, nil
}

// ListRecordings implements [Store.ListRecordings].
func (s *PostgresStore) ListRecordings(ctx context.Context, presentationID string) ([]Recording, error) {
	query := `SELECT ` + recordingColumns + `
		FROM recordings WHERE presentation_id = $1 ORDER BY iteration_number`

	return s.queryRecordings(ctx, query, presentationID)
}

// ListCompletedBefore implements [Store.ListCompletedBefore].
func (s *PostgresStore) ListCompletedBefore(ctx context.Context, presentationID string, iteration int) ([]Recording, error) {
	query := `SELECT ` + recordingColumns + `
		FROM recordings
		WHERE presentation_id = $1 AND status = $2 AND iteration_number < $3
		ORDER BY iteration_number`

	return s.queryRecordings(ctx, query, presentationID, StatusCompleted, iteration)
}

func (s *PostgresStore) queryRecordings(ctx context.Context, query string, args ...any) ([]Recording, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query recordings: %w", err)
	}
	defer rows.Close()

	var result []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("store: query recordings: %w", err)
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query recordings: %w", err)
	}
	return result, nil
}

// UpdateRecording implements [Store.UpdateRecording]. The iteration number is
// never touched after creation.
func (s *PostgresStore) UpdateRecording(ctx context.Context, r *Recording) error {
	if !r.Status.IsValid() {
		return fmt.Errorf("store: invalid recording status %q", r.Status)
	}

	fwJSON, err := json.Marshal(emptySlice(r.FillerWords))
	if err != nil {
		return fmt.Errorf("store: marshal filler_words: %w", err)
	}
	mpJSON, err := json.Marshal(emptySlice(r.MissedPoints))
	if err != nil {
		return fmt.Errorf("store: marshal missed_points: %w", err)
	}

	const query = `
		UPDATE recordings SET
			status = $2, transcript = $3, duration_seconds = $4, total_words = $5,
			filler_words = $6, filler_count = $7, words_per_minute = $8,
			pacing_score = $9, clarity_score = $10, coverage_score = $11,
			missed_points = $12, overall_score = $13, improvement = $14,
			feedback = $15, error_message = $16, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		r.ID, r.Status, r.Transcript, r.DurationSeconds, r.TotalWords,
		fwJSON, r.FillerCount, r.WordsPerMinute,
		r.PacingScore, r.ClarityScore, r.CoverageScore,
		mpJSON, r.OverallScore, r.Improvement,
		r.Feedback, r.ErrorMessage,
	).Scan(&r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("store: update recording: %w", err)
	}
	return nil
}

// CountRecordings implements [Store.CountRecordings].
func (s *PostgresStore) CountRecordings(ctx context.Context, presentationID string) (int, error) {
	return s.countRecordings(ctx,
		`SELECT count(*) FROM recordings WHERE presentation_id = $1`,
		presentationID)
}

// CountCompleted implements [Store.CountCompleted].
func (s *PostgresStore) CountCompleted(ctx context.Context, presentationID string) (int, error) {
	return s.countRecordings(ctx,
		`SELECT count(*) FROM recordings WHERE presentation_id = $1 AND status = $2`,
		presentationID, StatusCompleted)
}

func (s *PostgresStore) countRecordings(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count recordings: %w", err)
	}
	return count, nil
}

// AddXP implements [Store.AddXP]. The XP total and the derived level are
// updated in one statement so no reader ever sees them out of sync.
func (s *PostgresStore) AddXP(ctx context.Context, presentationID string, amount int) (int, int, error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("store: xp amount must be positive, got %d", amount)
	}

	const query = `
		UPDATE presentations
		SET total_xp = total_xp + $2,
		    current_level = LEAST(GREATEST((total_xp + $2) / 100 + 1, 1), 5),
		    updated_at = now()
		WHERE id = $1
		RETURNING total_xp, current_level`

	var totalXP, level int
	err := s.db.QueryRow(ctx, query, presentationID, amount).Scan(&totalXP, &level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("store: add xp: %w", err)
	}
	return totalXP, level, nil
}

// EnsureBadge implements [Store.EnsureBadge]. The insert relies on the
// composite primary key: a concurrent duplicate hits ON CONFLICT DO NOTHING
// and reports zero affected rows.
func (s *PostgresStore) EnsureBadge(ctx context.Context, presentationID string, badgeType BadgeType, metadata map[string]any) (bool, error) {
	metaJSON, err := json.Marshal(emptyMap(metadata))
	if err != nil {
		return false, fmt.Errorf("store: marshal badge metadata: %w", err)
	}

	const query = `
		INSERT INTO badges (presentation_id, badge_type, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (presentation_id, badge_type) DO NOTHING`

	tag, err := s.db.Exec(ctx, query, presentationID, badgeType, metaJSON)
	if err != nil {
		return false, fmt.Errorf("store: ensure badge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBadges implements [Store.ListBadges].
func (s *PostgresStore) ListBadges(ctx context.Context, presentationID string) ([]Badge, error) {
	const query = `
		SELECT presentation_id, badge_type, earned_at, metadata
		FROM badges
		WHERE presentation_id = $1
		ORDER BY earned_at, badge_type`

	rows, err := s.db.Query(ctx, query, presentationID)
	if err != nil {
		return nil, fmt.Errorf("store: list badges: %w", err)
	}
	defer rows.Close()

	var result []Badge
	for rows.Next() {
		var b Badge
		var metaJSON []byte
		if err := rows.Scan(&b.PresentationID, &b.Type, &b.EarnedAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("store: list badges: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &b.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal badge metadata: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list badges: %w", err)
	}
	return result, nil
}

func scanPresentation(row pgx.Row) (*Presentation, error) {
	var p Presentation
	var kpJSON, qJSON []byte

	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.TotalXP, &p.CurrentLevel,
		&kpJSON, &p.DocumentText, &qJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(kpJSON, &p.KeyPoints); err != nil {
		return nil, fmt.Errorf("unmarshal key_points: %w", err)
	}
	if err := json.Unmarshal(qJSON, &p.GeneratedQuestions); err != nil {
		return nil, fmt.Errorf("unmarshal generated_questions: %w", err)
	}
	return &p, nil
}

func scanRecording(row pgx.Row) (*Recording, error) {
	var r Recording
	var fwJSON, mpJSON []byte

	err := row.Scan(
		&r.ID, &r.PresentationID, &r.IterationNumber, &r.Status, &r.AudioPath, &r.AudioFormat,
		&r.Transcript, &r.DurationSeconds, &r.TotalWords, &fwJSON, &r.FillerCount,
		&r.WordsPerMinute, &r.PacingScore, &r.ClarityScore, &r.CoverageScore, &mpJSON,
		&r.OverallScore, &r.Improvement, &r.Feedback, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fwJSON, &r.FillerWords); err != nil {
		return nil, fmt.Errorf("unmarshal filler_words: %w", err)
	}
	if err := json.Unmarshal(mpJSON, &r.MissedPoints); err != nil {
		return nil, fmt.Errorf("unmarshal missed_points: %w", err)
	}
	return &r, nil
}

// emptySlice substitutes an empty slice for nil so JSONB columns always hold
// a JSON array.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// emptyMap substitutes an empty map for nil so JSONB columns always hold a
// JSON object.
func emptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
