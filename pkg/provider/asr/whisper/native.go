// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/podiumlabs/podium/pkg/provider/asr"
	"github.com/podiumlabs/podium/pkg/types"
)

// Compile-time assertion that NativeProvider satisfies asr.Provider.
var _ asr.Provider = (*NativeProvider)(nil)

// NativeProvider implements asr.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all Transcribe calls.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	// Each whisper context is single-threaded; contexts are created per call
	// from the shared model.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements [asr.Provider.Transcribe]. Only 16-bit PCM WAV input
// is supported; the audio is down-mixed to mono and resampling is left to the
// caller (whisper.cpp expects 16 kHz input for best results).
func (p *NativeProvider) Transcribe(ctx context.Context, audio io.Reader, format string) (*types.TranscriptionResult, error) {
	if format != "wav" {
		return nil, fmt.Errorf("whisper: native provider supports wav input only, got %q", format)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("whisper: read audio: %w", err)
	}
	info, err := parseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("whisper: parse wav: %w", err)
	}
	if info.bitsPerSample != 16 {
		return nil, fmt.Errorf("whisper: expected 16-bit PCM, got %d-bit", info.bitsPerSample)
	}

	samples := pcmToFloat32Mono(info.pcm, info.channels)

	// Contexts are not thread-safe; serialise inference on the shared model.
	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", p.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return &types.TranscriptionResult{
		Text:            strings.Join(parts, " "),
		DurationSeconds: info.durationSeconds(),
	}, nil
}
