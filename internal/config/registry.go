package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/podiumlabs/podium/pkg/provider/asr"
	"github.com/podiumlabs/podium/pkg/provider/extract"
	"github.com/podiumlabs/podium/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	asr     map[string]func(ProviderEntry) (asr.Provider, error)
	llm     map[string]func(ProviderEntry) (llm.Provider, error)
	extract map[string]func(ProviderEntry) (extract.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:     make(map[string]func(ProviderEntry) (asr.Provider, error)),
		llm:     make(map[string]func(ProviderEntry) (llm.Provider, error)),
		extract: make(map[string]func(ProviderEntry) (extract.Provider, error)),
	}
}

// RegisterASR registers a transcription provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (asr.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterExtract registers a document extraction provider factory under name.
func (r *Registry) RegisterExtract(name string, factory func(ProviderEntry) (extract.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extract[name] = factory
}

// CreateASR instantiates a transcription provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Provider, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateExtract instantiates a document extraction provider using the factory
// registered under entry.Name.
func (r *Registry) CreateExtract(entry ProviderEntry) (extract.Provider, error) {
	r.mu.RLock()
	factory, ok := r.extract[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: extract/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
