package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// RecognizerFactory builds a recognizer from its configuration block and the
// hot words to bias it toward.
type RecognizerFactory func(entry ProviderEntry, keywords []stt.KeywordBoost) (stt.Recognizer, error)

// SourceFactory builds a capture source.
type SourceFactory func(capture CaptureConfig) (audio.Source, error)

// Registry maps implementation names to constructors. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[string]RecognizerFactory
	sources     map[string]SourceFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizers: make(map[string]RecognizerFactory),
		sources:     make(map[string]SourceFactory),
	}
}

// RegisterRecognizer registers a recognizer factory under name. A later
// registration under the same name replaces the earlier one.
func (r *Registry) RegisterRecognizer(name string, factory RecognizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = factory
}

// RegisterSource registers a capture source factory under name.
func (r *Registry) RegisterSource(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// CreateRecognizer instantiates the recognizer registered under entry.Name.
func (r *Registry) CreateRecognizer(entry ProviderEntry, keywords []stt.KeywordBoost) (stt.Recognizer, error) {
	r.mu.RLock()
	factory, ok := r.recognizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	rec, err := factory(entry, keywords)
	if err != nil {
		return nil, fmt.Errorf("config: create stt/%q: %w", entry.Name, err)
	}
	return rec, nil
}

// CreateSource instantiates the capture source registered under
// capture.Source.
func (r *Registry) CreateSource(capture CaptureConfig) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[capture.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrProviderNotRegistered, capture.Source)
	}
	src, err := factory(capture)
	if err != nil {
		return nil, fmt.Errorf("config: create capture/%q: %w", capture.Source, err)
	}
	return src, nil
}

// RecognizerNames returns the registered recognizer names, sorted.
func (r *Registry) RecognizerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.recognizers))
}

// SourceNames returns the registered source names, sorted.
func (r *Registry) SourceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sources))
}
