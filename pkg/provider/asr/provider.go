// Package asr defines the Provider interface for batch speech transcription.
//
// Unlike a live captioning pipeline, recording analysis works on complete
// uploaded audio files, so the interface is a single blocking call: feed the
// provider a whole recording, get the full transcript and its measured
// duration back. Implementations wrap a local whisper.cpp server, the
// whisper.cpp CGO bindings, or a test double.
//
// Implementations must be safe for concurrent use; the analysis pipeline may
// transcribe several recordings at once.
package asr

import (
	"context"
	"io"

	"github.com/podiumlabs/podium/pkg/types"
)

// Provider is the abstraction over any batch transcription backend.
type Provider interface {
	// Transcribe converts a complete audio recording to text. format is the
	// container format of the audio stream (e.g. "wav", "mp3"); providers
	// that only understand a subset return an error for anything else.
	//
	// The returned result carries the transcript text and the audio duration
	// in seconds. Duration may be zero when the container does not declare
	// it and the provider cannot measure it.
	//
	// Transcription honours ctx: cancellation or deadline expiry aborts the
	// call with ctx's error.
	Transcribe(ctx context.Context, audio io.Reader, format string) (*types.TranscriptionResult, error)
}
