package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podiumlabs/podium/pkg/types"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

type badgeKey struct {
	presentationID string
	badgeType      BadgeType
}

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-node development and testing.
type MemStore struct {
	mu            sync.RWMutex
	presentations map[string]Presentation
	recordings    map[string]Recording
	badges        map[badgeKey]Badge
	now           func() time.Time
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		presentations: make(map[string]Presentation),
		recordings:    make(map[string]Recording),
		badges:        make(map[badgeKey]Badge),
		now:           time.Now,
	}
}

// CreatePresentation implements [Store.CreatePresentation].
func (s *MemStore) CreatePresentation(ctx context.Context, p *Presentation) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.presentations[p.ID]; exists {
		return fmt.Errorf("store: presentation %q already exists", p.ID)
	}

	now := s.now()
	p.TotalXP = 0
	p.CurrentLevel = LevelForXP(0)
	p.CreatedAt = now
	p.UpdatedAt = now
	s.presentations[p.ID] = clonePresentation(*p)
	return nil
}

// GetPresentation implements [Store.GetPresentation].
func (s *MemStore) GetPresentation(ctx context.Context, id string) (*Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presentations[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = clonePresentation(p)
	return &p, nil
}

// ListPresentations implements [Store.ListPresentations].
func (s *MemStore) ListPresentations(ctx context.Context) ([]Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Presentation, 0, len(s.presentations))
	for _, p := range s.presentations {
		result = append(result, clonePresentation(p))
	}
	slices.SortFunc(result, func(a, b Presentation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

// SetDocument implements [Store.SetDocument].
func (s *MemStore) SetDocument(ctx context.Context, presentationID, fullText string, keyPoints []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presentations[presentationID]
	if !ok {
		return ErrNotFound
	}
	p.DocumentText = fullText
	p.KeyPoints = slices.Clone(keyPoints)
	p.UpdatedAt = s.now()
	s.presentations[presentationID] = p
	return nil
}

// SetQuestions implements [Store.SetQuestions].
func (s *MemStore) SetQuestions(ctx context.Context, presentationID string, questions []types.QAItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presentations[presentationID]
	if !ok {
		return ErrNotFound
	}
	p.GeneratedQuestions = slices.Clone(questions)
	p.UpdatedAt = s.now()
	s.presentations[presentationID] = p
	return nil
}

// CreateRecording implements [Store.CreateRecording]. The iteration number is
// assigned under the store lock, so concurrent callers observe a strict
// sequence.
func (s *MemStore) CreateRecording(ctx context.Context, r *Recording) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presentations[r.PresentationID]; !ok {
		return ErrNotFound
	}
	if _, exists := s.recordings[r.ID]; exists {
		return fmt.Errorf("store: recording %q already exists", r.ID)
	}

	max := 0
	for _, existing := range s.recordings {
		if existing.PresentationID == r.PresentationID && existing.IterationNumber > max {
			max = existing.IterationNumber
		}
	}

	now := s.now()
	r.IterationNumber = max + 1
	r.Status = StatusPending
	r.CreatedAt = now
	r.UpdatedAt = now
	s.recordings[r.ID] = cloneRecording(*r)
	return nil
}

// GetRecording implements [Store.GetRecording].
func (s *MemStore) GetRecording(ctx context.Context, id string) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recordings[id]
	if !ok {
		return nil, ErrNotFound
	}
	r = cloneRecording(r)
	return &r, nil
}

// ListRecordings implements [Store.ListRecordings].
func (s *MemStore) ListRecordings(ctx context.Context, presentationID string) ([]Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Recording
	for _, r := range s.recordings {
		if r.PresentationID == presentationID {
			result = append(result, cloneRecording(r))
		}
	}
	slices.SortFunc(result, func(a, b Recording) int {
		return a.IterationNumber - b.IterationNumber
	})
	return result, nil
}

// UpdateRecording implements [Store.UpdateRecording]. The iteration number
// and creation time of the stored row are preserved.
func (s *MemStore) UpdateRecording(ctx context.Context, r *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recordings[r.ID]
	if !ok {
		return ErrNotFound
	}

	updated := cloneRecording(*r)
	updated.PresentationID = existing.PresentationID
	updated.IterationNumber = existing.IterationNumber
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.recordings[r.ID] = updated
	return nil
}

// ListCompletedBefore implements [Store.ListCompletedBefore].
func (s *MemStore) ListCompletedBefore(ctx context.Context, presentationID string, iteration int) ([]Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Recording
	for _, r := range s.recordings {
		if r.PresentationID == presentationID && r.Status == StatusCompleted && r.IterationNumber < iteration {
			result = append(result, cloneRecording(r))
		}
	}
	slices.SortFunc(result, func(a, b Recording) int {
		return a.IterationNumber - b.IterationNumber
	})
	return result, nil
}

// CountRecordings implements [Store.CountRecordings].
func (s *MemStore) CountRecordings(ctx context.Context, presentationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.recordings {
		if r.PresentationID == presentationID {
			count++
		}
	}
	return count, nil
}

// CountCompleted implements [Store.CountCompleted].
func (s *MemStore) CountCompleted(ctx context.Context, presentationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.recordings {
		if r.PresentationID == presentationID && r.Status == StatusCompleted {
			count++
		}
	}
	return count, nil
}

// AddXP implements [Store.AddXP].
func (s *MemStore) AddXP(ctx context.Context, presentationID string, amount int) (int, int, error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("store: xp amount must be positive, got %d", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presentations[presentationID]
	if !ok {
		return 0, 0, ErrNotFound
	}
	p.TotalXP += amount
	p.CurrentLevel = LevelForXP(p.TotalXP)
	p.UpdatedAt = s.now()
	s.presentations[presentationID] = p
	return p.TotalXP, p.CurrentLevel, nil
}

// EnsureBadge implements [Store.EnsureBadge].
func (s *MemStore) EnsureBadge(ctx context.Context, presentationID string, badgeType BadgeType, metadata map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presentations[presentationID]; !ok {
		return false, ErrNotFound
	}

	key := badgeKey{presentationID: presentationID, badgeType: badgeType}
	if _, exists := s.badges[key]; exists {
		return false, nil
	}
	s.badges[key] = Badge{
		PresentationID: presentationID,
		Type:           badgeType,
		EarnedAt:       s.now(),
		Metadata:       maps.Clone(metadata),
	}
	return true, nil
}

// ListBadges implements [Store.ListBadges].
func (s *MemStore) ListBadges(ctx context.Context, presentationID string) ([]Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Badge
	for key, b := range s.badges {
		if key.presentationID == presentationID {
			b.Metadata = maps.Clone(b.Metadata)
			result = append(result, b)
		}
	}
	slices.SortFunc(result, func(a, b Badge) int {
		if c := a.EarnedAt.Compare(b.EarnedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return result, nil
}

func clonePresentation(p Presentation) Presentation {
	p.KeyPoints = slices.Clone(p.KeyPoints)
	p.GeneratedQuestions = slices.Clone(p.GeneratedQuestions)
	return p
}

func cloneRecording(r Recording) Recording {
	r.FillerWords = slices.Clone(r.FillerWords)
	r.MissedPoints = slices.Clone(r.MissedPoints)
	r.DurationSeconds = clonePtr(r.DurationSeconds)
	r.WordsPerMinute = clonePtr(r.WordsPerMinute)
	r.PacingScore = clonePtr(r.PacingScore)
	r.ClarityScore = clonePtr(r.ClarityScore)
	r.CoverageScore = clonePtr(r.CoverageScore)
	r.OverallScore = clonePtr(r.OverallScore)
	r.Improvement = clonePtr(r.Improvement)
	return r
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
