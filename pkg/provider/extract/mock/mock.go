// Package mock provides a test double for the extract.Provider interface.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/podiumlabs/podium/pkg/provider/extract"
	"github.com/podiumlabs/podium/pkg/types"
)

// ExtractCall records a single invocation of Provider.Extract.
type ExtractCall struct {
	// Ctx is the context passed to Extract.
	Ctx context.Context
	// Doc is a copy of the bytes read from the document stream.
	Doc []byte
	// Filename is the filename passed to Extract.
	Filename string
}

// Provider is a mock implementation of extract.Provider.
type Provider struct {
	mu sync.Mutex

	// Content is returned from Extract when Err is nil. If nil, an empty
	// DocumentContent is returned.
	Content *types.DocumentContent

	// Err, if non-nil, is returned as the error from Extract.
	Err error

	// ExtractCalls records every call to Extract.
	ExtractCalls []ExtractCall
}

// Extract records the call and returns Content, Err.
func (p *Provider) Extract(ctx context.Context, doc io.Reader, filename string) (*types.DocumentContent, error) {
	data, err := io.ReadAll(doc)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = append(p.ExtractCalls, ExtractCall{Ctx: ctx, Doc: data, Filename: filename})

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Content == nil {
		return &types.DocumentContent{}, nil
	}
	content := *p.Content
	return &content, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = nil
}

// Ensure Provider implements extract.Provider at compile time.
var _ extract.Provider = (*Provider)(nil)
