package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry maintains the active set of named pipelines and provides lookup
// for the server and CLI layers. Updates swap the whole set atomically so a
// reload never exposes a half-built configuration.
type Registry struct {
	mu         sync.RWMutex
	pipelines  map[string]*Pipeline
	defaultID  string
	generation int64
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pipelines: make(map[string]*Pipeline),
		logger:    logger,
	}
}

// Register builds and adds a single pipeline. An existing pipeline with the
// same id is replaced.
func (r *Registry) Register(p *Pipeline) error {
	if p == nil {
		return fmt.Errorf("pipeline must not be nil")
	}
	if err := p.Build(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.ID()] = p
	r.generation++
	if r.defaultID == "" {
		r.defaultID = p.ID()
	}
	return nil
}

// Update atomically replaces the full pipeline set. Every pipeline is built
// before the swap; a single build failure rejects the whole update and the
// previous set stays live.
func (r *Registry) Update(pipelines []*Pipeline, defaultID string) error {
	next := make(map[string]*Pipeline, len(pipelines))
	for _, p := range pipelines {
		if err := p.Build(); err != nil {
			return fmt.Errorf("rejecting pipeline update: %w", err)
		}
		if _, dup := next[p.ID()]; dup {
			return fmt.Errorf("rejecting pipeline update: duplicate pipeline id %q", p.ID())
		}
		next[p.ID()] = p
	}
	if defaultID != "" {
		if _, ok := next[defaultID]; !ok {
			return fmt.Errorf("rejecting pipeline update: default pipeline %q not in set", defaultID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines = next
	r.defaultID = defaultID
	r.generation++
	r.logger.Info("pipeline registry updated",
		"pipelines", len(next),
		"default", defaultID,
		"generation", r.generation,
	)
	return nil
}

// Get returns the pipeline registered under the given id.
func (r *Registry) Get(id string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[id]
	return p, ok
}

// Default returns the pipeline external callers hit when they do not name
// one, typically the top-level router pipeline.
func (r *Registry) Default() (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultID == "" {
		return nil, fmt.Errorf("no default pipeline configured")
	}
	p, ok := r.pipelines[r.defaultID]
	if !ok {
		return nil, fmt.Errorf("default pipeline %q not found", r.defaultID)
	}
	return p, nil
}

// List returns the registered pipeline ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.pipelines))
	for id := range r.pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Generation returns the update counter, incremented on every change.
func (r *Registry) Generation() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}
