package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/podiumlabs/podium/internal/store"
)

func newPresentation(t *testing.T, s *store.MemStore) *store.Presentation {
	t.Helper()
	p := &store.Presentation{Title: "Quarterly review"}
	if err := s.CreatePresentation(context.Background(), p); err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	return p
}

func TestLevelForXP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{250, 3},
		{400, 5},
		{1000, 5},
	}
	for _, tt := range tests {
		if got := store.LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestMemStore_CreatePresentationDefaults(t *testing.T) {
	t.Parallel()

	s := store.NewMemStore()
	p := newPresentation(t, s)

	if p.ID == "" {
		t.Error("expected generated ID")
	}
	if p.TotalXP != 0 || p.CurrentLevel != 1 {
		t.Errorf("TotalXP=%d CurrentLevel=%d, want 0 and 1", p.TotalXP, p.CurrentLevel)
	}
}

func TestMemStore_GetPresentationNotFound(t *testing.T) {
	t.Parallel()

	s := store.NewMemStore()
	if _, err := s.GetPresentation(context.Background(), "nope"); err != store.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemStore_IterationNumbersAreSequential(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	p := newPresentation(t, s)

	for want := 1; want <= 3; want++ {
		r := &store.Recording{PresentationID: p.ID}
		if err := s.CreateRecording(ctx, r); err != nil {
			t.Fatalf("CreateRecording: %v", err)
		}
		if r.IterationNumber != want {
			t.Errorf("IterationNumber = %d, want %d", r.IterationNumber, want)
		}
		if r.Status != store.StatusPending {
			t.Errorf("Status = %q, want pending", r.Status)
		}
	}
}

func TestMemStore_ConcurrentIterationAssignment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	p := newPresentation(t, s)

	const n = 50
	results := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := &store.Recording{PresentationID: p.ID}
			if err := s.CreateRecording(ctx, r); err != nil {
				t.Errorf("CreateRecording: %v", err)
				return
			}
			results[i] = r.IterationNumber
		}()
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for _, it := range results {
		if it < 1 || it > n {
			t.Errorf("iteration %d out of range [1, %d]", it, n)
		}
		if seen[it] {
			t.Errorf("duplicate iteration number %d", it)
		}
		seen[it] = true
	}
}

func TestMemStore_IterationsIndependentAcrossPresentations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	a := newPresentation(t, s)
	b := newPresentation(t, s)

	ra := &store.Recording{PresentationID: a.ID}
	rb := &store.Recording{PresentationID: b.ID}
	if err := s.CreateRecording(ctx, ra); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	if err := s.CreateRecording(ctx, rb); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	if ra.IterationNumber != 1 || rb.IterationNumber != 1 {
		t.Errorf("iterations = %d, %d; want 1, 1", ra.IterationNumber, rb.IterationNumber)
	}
}

func TestMemStore_UpdateRecordingPreservesIteration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	p := newPresentation(t, s)

	r := &store.Recording{PresentationID: p.ID}
	if err := s.CreateRecording(ctx, r); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	score := 87.5
	r.Status = store.StatusCompleted
	r.OverallScore = &score
	r.IterationNumber = 99 // must not stick
	if err := s.UpdateRecording(ctx, r); err != nil {
		t.Fatalf("UpdateRecording: %v", err)
	}

	got, err := s.GetRecording(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.IterationNumber != 1 {
		t.Errorf("IterationNumber = %d, want 1", got.IterationNumber)
	}
	if got.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.OverallScore == nil || *got.OverallScore != 87.5 {
		t.Errorf("OverallScore = %v, want 87.5", got.OverallScore)
	}
}

func TestMemStore_ListCompletedBefore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	p := newPresentation(t, s)

	statuses := []store.Status{
		store.StatusCompleted,  // iteration 1
		store.StatusFailed,     // iteration 2
		store.StatusCompleted,  // iteration 3
		store.StatusCompleted,  // iteration 4
	}
	for _, st := range statuses {
		r := &store.Recording{PresentationID: p.ID}
		if err := s.CreateRecording(ctx, r); err != nil {
			t.Fatalf("CreateRecording: %v", err)
		}
		r.Status = st
		if err := s.UpdateRecording(ctx, r); err != nil {
			t.Fatalf("UpdateRecording: %v", err)
		}
	}

	got, err := s.ListCompletedBefore(ctx, p.ID, 4)
	if err != nil {
		t.Fatalf("ListCompletedBefore: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (iterations 1 and 3)", len(got))
	}
	if got[0].IterationNumber != 1 || got[1].IterationNumber != 3 {
		t.Errorf("iterations = %d, %d; want 1, 3", got[0].IterationNumber, got[1].IterationNumber)
	}
}

func TestMemStore_AddXPUpdatesLevel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	p := newPresentation(t, s)

	total, level, err := s.AddXP(ctx, p.ID, 50)
	if err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	if total != 50 || level != 1 {
		t.Errorf("total=%d level=%d, want 50 and 1", total, level)
	}

	total, level, err = s.AddXP(ctx, p.ID, 75)
	if err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	if total != 125 || level != 2 {
		t.Errorf("total=%d level=%d, want 125 and 2", total, level)
	}

	if _, _, err := s.AddXP(ctx, p.ID, 0); err == nil {
		t.Error("expected error for non-positive amount")
	}
}

func TestMemStore_EnsureBadgeIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	p := newPresentation(t, s)

	created, err := s.EnsureBadge(ctx, p.ID, store.BadgeFirstRecording, nil)
	if err != nil {
		t.Fatalf("EnsureBadge: %v", err)
	}
	if !created {
		t.Error("first EnsureBadge should report created")
	}

	created, err = s.EnsureBadge(ctx, p.ID, store.BadgeFirstRecording, nil)
	if err != nil {
		t.Fatalf("EnsureBadge: %v", err)
	}
	if created {
		t.Error("second EnsureBadge should report already present")
	}

	badges, err := s.ListBadges(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListBadges: %v", err)
	}
	if len(badges) != 1 {
		t.Errorf("len(badges) = %d, want 1", len(badges))
	}
}

func TestMemStore_EnsureBadgeConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemStore()
	p := newPresentation(t, s)

	const n = 20
	createdCount := make(chan bool, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.EnsureBadge(ctx, p.ID, store.BadgePerfectionist, nil)
			if err != nil {
				t.Errorf("EnsureBadge: %v", err)
				return
			}
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	total := 0
	for created := range createdCount {
		if created {
			total++
		}
	}
	if total != 1 {
		t.Errorf("created reported %d times, want exactly once", total)
	}
}
