// Package pipeline runs the analysis of an uploaded recording from pending to
// its terminal status.
//
// A [Pipeline] executes the stages in order: transcription, filler detection,
// pacing and clarity scoring, content coverage against the presentation's key
// points, improvement tracking against the best prior completed attempt, and
// coaching feedback. Transcription failure (including timeout) is fatal and
// moves the recording to failed with every metric computed so far preserved.
// Feedback generation is best-effort and never fails the run.
//
// After a recording completes, the pipeline fires the score-dependent XP
// events (completion, high-score thresholds, improvement) through the
// gamification engine. Award errors are logged, not propagated: the recording
// is already completed at that point.
//
// [Runner] wraps a Pipeline with a bounded-concurrency asynchronous executor.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/podiumlabs/podium/internal/analysis"
	"github.com/podiumlabs/podium/internal/coach"
	"github.com/podiumlabs/podium/internal/gamify"
	"github.com/podiumlabs/podium/internal/observe"
	"github.com/podiumlabs/podium/internal/store"
	"github.com/podiumlabs/podium/pkg/provider/asr"
)

const (
	// defaultTranscribeTimeout bounds the transcription stage.
	defaultTranscribeTimeout = 5 * time.Minute

	// defaultGenerateTimeout bounds the feedback generation stage.
	defaultGenerateTimeout = 60 * time.Second
)

// Pipeline executes the full analysis of one recording. It is safe for
// concurrent use; every Process call operates on its own recording.
type Pipeline struct {
	store    store.Store
	asrP     asr.Provider
	coach    *coach.Coach
	engine   *gamify.Engine
	detector *analysis.Detector
	metrics  *observe.Metrics
	log      *slog.Logger

	// tmu guards the stage timeouts, which config hot reload may change
	// while runs are in flight.
	tmu               sync.RWMutex
	transcribeTimeout time.Duration
	generateTimeout   time.Duration

	// openAudio opens the recording's stored audio for transcription.
	// Replaceable in tests.
	openAudio func(path string) (io.ReadCloser, error)
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTranscribeTimeout bounds the transcription stage. Expiry fails the
// recording. Default: 5m.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.transcribeTimeout = d
		}
	}
}

// WithGenerateTimeout bounds the feedback generation stage. Expiry falls back
// to deterministic feedback. Default: 60s.
func WithGenerateTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.generateTimeout = d
		}
	}
}

// WithDetector replaces the default filler detector.
func WithDetector(d *analysis.Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithAudioOpener replaces how stored audio is opened. Used in tests to feed
// audio from memory instead of disk.
func WithAudioOpener(open func(path string) (io.ReadCloser, error)) Option {
	return func(p *Pipeline) { p.openAudio = open }
}

// New creates a [Pipeline]. asrP transcribes uploaded audio, c generates
// coaching feedback (a nil-provider coach degrades to deterministic output),
// and engine awards post-completion XP.
func New(st store.Store, asrP asr.Provider, c *coach.Coach, engine *gamify.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:             st,
		asrP:              asrP,
		coach:             c,
		engine:            engine,
		detector:          analysis.NewDetector(),
		log:               slog.Default(),
		transcribeTimeout: defaultTranscribeTimeout,
		generateTimeout:   defaultGenerateTimeout,
		openAudio: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// SetTimeouts updates the stage timeouts for subsequent runs. Non-positive
// values leave the current setting unchanged. Called on config hot reload.
func (p *Pipeline) SetTimeouts(transcribe, generate time.Duration) {
	p.tmu.Lock()
	defer p.tmu.Unlock()
	if transcribe > 0 {
		p.transcribeTimeout = transcribe
	}
	if generate > 0 {
		p.generateTimeout = generate
	}
}

func (p *Pipeline) timeouts() (transcribe, generate time.Duration) {
	p.tmu.RLock()
	defer p.tmu.RUnlock()
	return p.transcribeTimeout, p.generateTimeout
}

// Process runs the full analysis of the recording with the given ID. It moves
// the recording to processing, executes every stage, and leaves it completed
// or failed. Reprocessing an already-analysed recording is allowed and
// recomputes everything from the stored audio.
func (p *Pipeline) Process(ctx context.Context, recordingID string) error {
	start := time.Now()
	p.metrics.ActivePipelines.Add(ctx, 1)
	defer p.metrics.ActivePipelines.Add(ctx, -1)

	rec, err := p.store.GetRecording(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("pipeline: load recording %s: %w", recordingID, err)
	}
	pres, err := p.store.GetPresentation(ctx, rec.PresentationID)
	if err != nil {
		return fmt.Errorf("pipeline: load presentation %s: %w", rec.PresentationID, err)
	}

	log := p.log.With(
		"recording_id", rec.ID,
		"presentation_id", rec.PresentationID,
		"iteration", rec.IterationNumber,
	)

	rec.Status = store.StatusProcessing
	rec.ErrorMessage = ""
	if err := p.store.UpdateRecording(ctx, rec); err != nil {
		return fmt.Errorf("pipeline: mark processing: %w", err)
	}
	log.Info("recording analysis started")

	// Transcription. Failure here is fatal for the run.
	result, err := p.transcribe(ctx, rec)
	if err != nil {
		return p.fail(ctx, rec, log, err)
	}
	rec.Transcript = result.Text
	rec.DurationSeconds = ptr(result.DurationSeconds)

	// Deterministic metric stages.
	analysisStart := time.Now()

	rec.TotalWords = analysis.TotalWords(result.Text)
	rec.FillerWords = p.detector.Detect(result.Text)
	rec.FillerCount = len(rec.FillerWords)

	wpm := analysis.WordsPerMinute(rec.TotalWords, result.DurationSeconds)
	rec.WordsPerMinute = ptr(wpm)
	rec.PacingScore = ptr(analysis.PacingScore(wpm))
	rec.ClarityScore = ptr(analysis.ClarityScore(rec.FillerCount, rec.TotalWords))

	overall := analysis.OverallScore(*rec.PacingScore, *rec.ClarityScore)
	if len(pres.KeyPoints) > 0 {
		cov := analysis.ContentCoverage(result.Text, pres.KeyPoints)
		rec.CoverageScore = ptr(cov.Score)
		rec.MissedPoints = cov.MissedPoints
		overall = analysis.BlendCoverage(overall, cov.Score)
	}
	rec.OverallScore = ptr(overall)

	improvement := analysis.Improvement(overall, rec.IterationNumber, p.priorAttempts(ctx, rec))
	rec.Improvement = ptr(improvement)

	p.metrics.AnalysisDuration.Record(ctx, time.Since(analysisStart).Seconds())

	// Coaching feedback. Never fatal: the coach falls back internally.
	_, generateTimeout := p.timeouts()
	feedbackStart := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	rec.Feedback = p.coach.Feedback(genCtx, coach.Analysis{
		DurationSeconds: result.DurationSeconds,
		TotalWords:      rec.TotalWords,
		WordsPerMinute:  wpm,
		FillerCount:     rec.FillerCount,
		FillerWords:     rec.FillerWords,
		PacingScore:     *rec.PacingScore,
		ClarityScore:    *rec.ClarityScore,
		OverallScore:    overall,
		Transcript:      result.Text,
	})
	cancel()
	p.metrics.FeedbackDuration.Record(ctx, time.Since(feedbackStart).Seconds())

	rec.Status = store.StatusCompleted
	if err := p.store.UpdateRecording(ctx, rec); err != nil {
		return fmt.Errorf("pipeline: mark completed: %w", err)
	}

	p.metrics.RecordRecordingProcessed(ctx, string(store.StatusCompleted))
	p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	log.Info("recording analysis completed",
		"overall_score", overall,
		"improvement", improvement,
		"duration", time.Since(start),
	)

	p.awardCompletionXP(ctx, rec, overall, improvement, log)
	return nil
}

// transcribe opens the stored audio and runs the ASR provider against it
// under the transcription timeout.
func (p *Pipeline) transcribe(ctx context.Context, rec *store.Recording) (*transcription, error) {
	audio, err := p.openAudio(rec.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio %q: %w", rec.AudioPath, err)
	}
	defer audio.Close()

	transcribeTimeout, _ := p.timeouts()
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.asrP.Transcribe(ctx, audio, rec.AudioFormat)
	p.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "asr", "transcribe")
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return &transcription{Text: result.Text, DurationSeconds: result.DurationSeconds}, nil
}

type transcription struct {
	Text            string
	DurationSeconds float64
}

// fail moves the recording to failed, preserving every metric computed before
// the failing stage.
func (p *Pipeline) fail(ctx context.Context, rec *store.Recording, log *slog.Logger, cause error) error {
	rec.Status = store.StatusFailed
	rec.ErrorMessage = cause.Error()
	if err := p.store.UpdateRecording(ctx, rec); err != nil {
		log.Error("failed to persist failure state", "error", err, "cause", cause)
	}
	p.metrics.RecordRecordingProcessed(ctx, string(store.StatusFailed))
	log.Warn("recording analysis failed", "error", cause)
	return fmt.Errorf("pipeline: %w", cause)
}

// priorAttempts loads the completed attempts before rec's iteration, reduced
// to the fields improvement tracking needs. Attempts without a stored overall
// score are skipped.
func (p *Pipeline) priorAttempts(ctx context.Context, rec *store.Recording) []analysis.PriorAttempt {
	completed, err := p.store.ListCompletedBefore(ctx, rec.PresentationID, rec.IterationNumber)
	if err != nil {
		p.log.Warn("could not load prior attempts, treating as first",
			"recording_id", rec.ID, "error", err)
		return nil
	}
	prior := make([]analysis.PriorAttempt, 0, len(completed))
	for _, c := range completed {
		if c.OverallScore == nil {
			continue
		}
		prior = append(prior, analysis.PriorAttempt{
			Iteration: c.IterationNumber,
			Score:     *c.OverallScore,
		})
	}
	return prior
}

// awardCompletionXP fires the score-dependent XP events for a completed run.
// The recording is already completed, so award failures are logged only.
func (p *Pipeline) awardCompletionXP(ctx context.Context, rec *store.Recording, overall, improvement float64, log *slog.Logger) {
	events := []gamify.Event{gamify.EventCompletion}
	if overall >= 90 {
		events = append(events, gamify.EventHighScore90)
	}
	if overall >= 95 {
		events = append(events, gamify.EventHighScore95)
	}
	if improvement > 0 {
		events = append(events, gamify.EventImprovement)
	}

	fctx := gamify.FactContext{OverallScore: &overall}
	for _, event := range events {
		award, err := p.engine.AwardXP(ctx, rec.PresentationID, event, fctx)
		if err != nil {
			log.Error("xp award failed", "event", event, "error", err)
			continue
		}
		p.metrics.RecordXPAwarded(ctx, string(event), award.XPAwarded)
		for _, badge := range award.BadgesEarned {
			p.metrics.RecordBadgeEarned(ctx, string(badge))
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
