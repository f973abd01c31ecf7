package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/podiumlabs/podium/pkg/provider/asr"
	"github.com/podiumlabs/podium/pkg/types"
)

// ASRFallback implements [asr.Provider] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker.
//
// Transcribe buffers the full audio stream once so that every attempted backend
// reads the recording from the start.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

// Compile-time interface assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred backend.
func NewASRFallback(primary asr.Provider, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *ASRFallback) AddFallback(name string, provider asr.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the recording through the first healthy provider. If the
// primary fails, subsequent fallbacks receive the same audio from the start.
func (f *ASRFallback) Transcribe(ctx context.Context, audio io.Reader, format string) (*types.TranscriptionResult, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("resilience: read audio: %w", err)
	}
	return ExecuteWithResult(f.group, func(p asr.Provider) (*types.TranscriptionResult, error) {
		return p.Transcribe(ctx, bytes.NewReader(data), format)
	})
}
