// Package mock provides a test double for the asr package interfaces.
//
// Use Provider to feed controlled transcription results to the analysis
// pipeline and inspect the audio that was delivered.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: &types.TranscriptionResult{Text: "hello", DurationSeconds: 3},
//	}
//	result, _ := p.Transcribe(ctx, bytes.NewReader(audio), "wav")
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/podiumlabs/podium/pkg/provider/asr"
	"github.com/podiumlabs/podium/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is a copy of the bytes read from the audio stream.
	Audio []byte
	// Format is the declared audio format.
	Format string
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Transcribe when Err is nil. If nil, an empty
	// TranscriptionResult is returned.
	Result *types.TranscriptionResult

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, format string) (*types.TranscriptionResult, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: data, Format: format})

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result == nil {
		return &types.TranscriptionResult{}, nil
	}
	result := *p.Result
	return &result, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements asr.Provider at compile time.
var _ asr.Provider = (*Provider)(nil)
