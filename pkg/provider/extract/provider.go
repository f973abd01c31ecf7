// Package extract defines the Provider interface for reference-document text
// extraction.
//
// A presentation may carry a reference document (speaker notes, an outline, a
// script) whose key points drive content-coverage scoring. An extract
// provider turns an uploaded document into plain text plus a bounded list of
// key points.
package extract

import (
	"context"
	"io"

	"github.com/podiumlabs/podium/pkg/types"
)

// Provider is the abstraction over any document extraction backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Extract reads a complete document and returns its full text, derived
	// key points, and page/word counts. filename is used to pick a decoder
	// by extension; unsupported types return an error.
	Extract(ctx context.Context, doc io.Reader, filename string) (*types.DocumentContent, error)
}
