// Package registry tracks the plugins known to the engine. The execution
// engine consumes it read-only: one Get per request, nothing else.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle state of a registered plugin.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusLoaded     Status = "loaded"
	StatusActive     Status = "active"
	StatusDisabled   Status = "disabled"
	StatusError      Status = "error"
)

// Executable reports whether a plugin in this status may be executed.
func (s Status) Executable() bool {
	switch s {
	case StatusRegistered, StatusLoaded, StatusActive:
		return true
	}
	return false
}

// PluginMetadata is everything the engine needs to know about one plugin.
type PluginMetadata struct {
	Manifest     Manifest  `json:"manifest"`
	Path         string    `json:"path,omitempty"`
	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

var ErrNotFound = errors.New("plugin not found")

// Store is the read surface the engine depends on.
type Store interface {
	Get(name string) (*PluginMetadata, error)
}

// MemoryStore is the in-memory registry implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	plugins map[string]*PluginMetadata
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plugins: make(map[string]*PluginMetadata)}
}

// Register validates the manifest and adds the plugin. Re-registering an
// existing name replaces it.
func (s *MemoryStore) Register(manifest Manifest, path string) (*PluginMetadata, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	meta := &PluginMetadata{
		Manifest:     manifest,
		Path:         path,
		Status:       StatusRegistered,
		RegisteredAt: time.Now(),
	}

	s.mu.Lock()
	s.plugins[manifest.Name] = meta
	s.mu.Unlock()
	return meta, nil
}

// Get returns a copy of the metadata so callers cannot mutate registry state.
func (s *MemoryStore) Get(name string) (*PluginMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	copied := *meta
	return &copied, nil
}

// SetStatus updates a plugin's lifecycle status.
func (s *MemoryStore) SetStatus(name string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.plugins[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	meta.Status = status
	return nil
}

// List returns all registered plugins sorted by name.
func (s *MemoryStore) List() []*PluginMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		copied := *meta
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Manifest.Name < out[j].Manifest.Name
	})
	return out
}
