package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/podiumlabs/podium/internal/coach"
	"github.com/podiumlabs/podium/internal/gamify"
	"github.com/podiumlabs/podium/internal/pipeline"
	"github.com/podiumlabs/podium/internal/store"
	asrmock "github.com/podiumlabs/podium/pkg/provider/asr/mock"
	"github.com/podiumlabs/podium/pkg/types"
)

// perfectTranscript has no filler words and, at 30 seconds, lands at 130 WPM:
// pacing 100, clarity 100, overall 100.
var perfectTranscript = strings.TrimSpace(strings.Repeat("speech ", 65))

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryAudio(content string) func(path string) (io.ReadCloser, error) {
	return func(path string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

// newFixture builds a pipeline over an in-memory store with one presentation
// and one pending recording.
func newFixture(t *testing.T, asrP *asrmock.Provider, keyPoints []string) (*pipeline.Pipeline, *store.MemStore, *store.Recording) {
	t.Helper()

	st := store.NewMemStore()
	pres := &store.Presentation{Title: "Quarterly review", KeyPoints: keyPoints}
	if err := st.CreatePresentation(context.Background(), pres); err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	rec := &store.Recording{
		PresentationID: pres.ID,
		AudioPath:      "/data/audio/rec.wav",
		AudioFormat:    "wav",
	}
	if err := st.CreateRecording(context.Background(), rec); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	p := pipeline.New(st, asrP, coach.New(nil, coach.WithLogger(discardLogger())), gamify.NewEngine(st, gamify.WithLogger(discardLogger())),
		pipeline.WithLogger(discardLogger()),
		pipeline.WithAudioOpener(memoryAudio("fake-wav-bytes")),
	)
	return p, st, rec
}

func TestProcess_Success(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{
		Result: &types.TranscriptionResult{Text: perfectTranscript, DurationSeconds: 30},
	}
	p, st, rec := newFixture(t, asrP, nil)

	if err := p.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := st.GetRecording(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Fatalf("Status = %q, want completed", got.Status)
	}
	if got.Transcript != perfectTranscript {
		t.Error("transcript was not stored")
	}
	if got.TotalWords != 65 {
		t.Errorf("TotalWords = %d, want 65", got.TotalWords)
	}
	if got.FillerCount != 0 {
		t.Errorf("FillerCount = %d, want 0", got.FillerCount)
	}
	if got.WordsPerMinute == nil || *got.WordsPerMinute != 130 {
		t.Errorf("WordsPerMinute = %v, want 130", got.WordsPerMinute)
	}
	if got.PacingScore == nil || *got.PacingScore != 100 {
		t.Errorf("PacingScore = %v, want 100", got.PacingScore)
	}
	if got.ClarityScore == nil || *got.ClarityScore != 100 {
		t.Errorf("ClarityScore = %v, want 100", got.ClarityScore)
	}
	if got.OverallScore == nil || *got.OverallScore != 100 {
		t.Errorf("OverallScore = %v, want 100", got.OverallScore)
	}
	if got.CoverageScore != nil {
		t.Errorf("CoverageScore = %v, want nil without key points", *got.CoverageScore)
	}
	if got.Improvement == nil || *got.Improvement != 0 {
		t.Errorf("Improvement = %v, want 0 on first attempt", got.Improvement)
	}
	if got.Feedback == "" {
		t.Error("Feedback is empty")
	}
	if got.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", got.ErrorMessage)
	}
	if asrP.CallCount() != 1 {
		t.Errorf("ASR calls = %d, want 1", asrP.CallCount())
	}
	if asrP.TranscribeCalls[0].Format != "wav" {
		t.Errorf("ASR format = %q, want wav", asrP.TranscribeCalls[0].Format)
	}
}

func TestProcess_AwardsScoreXP(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{
		Result: &types.TranscriptionResult{Text: perfectTranscript, DurationSeconds: 30},
	}
	p, st, rec := newFixture(t, asrP, nil)

	if err := p.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// completion 30 + high_score_90 50 + high_score_95 75 = 155. No
	// improvement event on a first attempt.
	pres, err := st.GetPresentation(context.Background(), rec.PresentationID)
	if err != nil {
		t.Fatalf("GetPresentation: %v", err)
	}
	if pres.TotalXP != 155 {
		t.Errorf("TotalXP = %d, want 155", pres.TotalXP)
	}
}

func TestProcess_TranscriptionFailure(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{Err: errors.New("whisper unavailable")}
	p, st, rec := newFixture(t, asrP, nil)

	err := p.Process(context.Background(), rec.ID)
	if err == nil {
		t.Fatal("Process returned nil, want error")
	}

	got, gerr := st.GetRecording(context.Background(), rec.ID)
	if gerr != nil {
		t.Fatalf("GetRecording: %v", gerr)
	}
	if got.Status != store.StatusFailed {
		t.Fatalf("Status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "whisper unavailable") {
		t.Errorf("ErrorMessage = %q, want transcription cause", got.ErrorMessage)
	}
	if got.OverallScore != nil {
		t.Error("OverallScore must stay unset after transcription failure")
	}

	// A failed run awards nothing.
	pres, gerr := st.GetPresentation(context.Background(), rec.PresentationID)
	if gerr != nil {
		t.Fatalf("GetPresentation: %v", gerr)
	}
	if pres.TotalXP != 0 {
		t.Errorf("TotalXP = %d, want 0 after failure", pres.TotalXP)
	}
}

func TestProcess_CoverageBlending(t *testing.T) {
	t.Parallel()

	transcript := perfectTranscript + " quarterly revenue growth"
	asrP := &asrmock.Provider{
		Result: &types.TranscriptionResult{Text: transcript, DurationSeconds: 30},
	}
	keyPoints := []string{"quarterly revenue growth", "customer retention rates"}
	p, st, rec := newFixture(t, asrP, keyPoints)

	if err := p.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := st.GetRecording(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.CoverageScore == nil || *got.CoverageScore != 50 {
		t.Fatalf("CoverageScore = %v, want 50", got.CoverageScore)
	}
	if len(got.MissedPoints) != 1 || got.MissedPoints[0] != "customer retention rates" {
		t.Errorf("MissedPoints = %v, want the retention point", got.MissedPoints)
	}

	// 68 words at 30s is 136 WPM, still in the ideal band, so the base score
	// stays 100. Blended: 100*0.7 + 50*0.3 = 85.
	if got.OverallScore == nil || *got.OverallScore != 85 {
		t.Errorf("OverallScore = %v, want 85", got.OverallScore)
	}
}

func TestProcess_Improvement(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{
		Result: &types.TranscriptionResult{Text: perfectTranscript, DurationSeconds: 30},
	}
	p, st, first := newFixture(t, asrP, nil)

	// Backfill the first attempt as completed with a mediocre score.
	first.Status = store.StatusCompleted
	score := 50.0
	first.OverallScore = &score
	if err := st.UpdateRecording(context.Background(), first); err != nil {
		t.Fatalf("UpdateRecording: %v", err)
	}

	second := &store.Recording{
		PresentationID: first.PresentationID,
		AudioPath:      "/data/audio/rec2.wav",
		AudioFormat:    "wav",
	}
	if err := st.CreateRecording(context.Background(), second); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	if err := p.Process(context.Background(), second.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := st.GetRecording(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.IterationNumber != 2 {
		t.Fatalf("IterationNumber = %d, want 2", got.IterationNumber)
	}
	if got.Improvement == nil || *got.Improvement != 50 {
		t.Errorf("Improvement = %v, want 50 over the prior attempt", got.Improvement)
	}

	// completion 30 + high_score_90 50 + high_score_95 75 + improvement 25.
	pres, err := st.GetPresentation(context.Background(), first.PresentationID)
	if err != nil {
		t.Fatalf("GetPresentation: %v", err)
	}
	if pres.TotalXP != 180 {
		t.Errorf("TotalXP = %d, want 180", pres.TotalXP)
	}
}

func TestProcess_ReprocessAfterFailure(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{Err: errors.New("transient outage")}
	p, st, rec := newFixture(t, asrP, nil)

	if err := p.Process(context.Background(), rec.ID); err == nil {
		t.Fatal("first run should fail")
	}

	asrP.Err = nil
	asrP.Result = &types.TranscriptionResult{Text: perfectTranscript, DurationSeconds: 30}

	if err := p.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("reprocess: %v", err)
	}

	got, err := st.GetRecording(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want completed after reprocess", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared after reprocess", got.ErrorMessage)
	}
	if got.IterationNumber != rec.IterationNumber {
		t.Errorf("IterationNumber changed on reprocess: %d -> %d", rec.IterationNumber, got.IterationNumber)
	}
}

func TestProcess_UnknownRecording(t *testing.T) {
	t.Parallel()

	p, _, _ := newFixture(t, &asrmock.Provider{}, nil)
	err := p.Process(context.Background(), "no-such-recording")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProcess_TranscribeTimeout(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	pres := &store.Presentation{Title: "Timeout"}
	if err := st.CreatePresentation(context.Background(), pres); err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	rec := &store.Recording{PresentationID: pres.ID, AudioPath: "/data/a.wav", AudioFormat: "wav"}
	if err := st.CreateRecording(context.Background(), rec); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	p := pipeline.New(st, &slowASR{}, coach.New(nil, coach.WithLogger(discardLogger())), gamify.NewEngine(st, gamify.WithLogger(discardLogger())),
		pipeline.WithLogger(discardLogger()),
		pipeline.WithAudioOpener(memoryAudio("fake")),
		pipeline.WithTranscribeTimeout(20*time.Millisecond),
	)

	err := p.Process(context.Background(), rec.ID)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	got, gerr := st.GetRecording(context.Background(), rec.ID)
	if gerr != nil {
		t.Fatalf("GetRecording: %v", gerr)
	}
	if got.Status != store.StatusFailed {
		t.Errorf("Status = %q, want failed after timeout", got.Status)
	}
}

func TestSetTimeouts_AppliesToNextRun(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	pres := &store.Presentation{Title: "Reload"}
	if err := st.CreatePresentation(context.Background(), pres); err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	rec := &store.Recording{PresentationID: pres.ID, AudioPath: "/data/a.wav", AudioFormat: "wav"}
	if err := st.CreateRecording(context.Background(), rec); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	p := pipeline.New(st, &slowASR{}, coach.New(nil, coach.WithLogger(discardLogger())), gamify.NewEngine(st, gamify.WithLogger(discardLogger())),
		pipeline.WithLogger(discardLogger()),
		pipeline.WithAudioOpener(memoryAudio("fake")),
	)
	p.SetTimeouts(20*time.Millisecond, 0)

	if err := p.Process(context.Background(), rec.ID); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded under reloaded timeout, got %v", err)
	}
}

// slowASR blocks until the context is cancelled.
type slowASR struct{}

func (s *slowASR) Transcribe(ctx context.Context, audio io.Reader, format string) (*types.TranscriptionResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
