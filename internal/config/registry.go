package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxline/voxline/pkg/provider/generator"
	"github.com/voxline/voxline/pkg/provider/synth"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// GeneratorFactory builds a text generator from its config block.
type GeneratorFactory func(GeneratorConfig) (generator.Provider, error)

// SynthFactory builds one voice of a synthesizer backend. It is called once
// per configured voice, so a backend serving two languages yields two
// independent instances.
type SynthFactory func(TTSConfig, VoiceConfig) (synth.Synthesizer, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	generator map[string]GeneratorFactory
	synth     map[string]SynthFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		generator: make(map[string]GeneratorFactory),
		synth:     make(map[string]SynthFactory),
	}
}

// RegisterGenerator registers a generator factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterGenerator(name string, factory GeneratorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generator[name] = factory
}

// RegisterSynth registers a synthesizer factory under name.
func (r *Registry) RegisterSynth(name string, factory SynthFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synth[name] = factory
}

// CreateGenerator instantiates a generator using the factory registered
// under cfg.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateGenerator(cfg GeneratorConfig) (generator.Provider, error) {
	r.mu.RLock()
	factory, ok := r.generator[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: generator/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateSynth instantiates one synthesizer voice using the factory
// registered under cfg.Name.
func (r *Registry) CreateSynth(cfg TTSConfig, voice VoiceConfig) (synth.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.synth[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg, voice)
}
