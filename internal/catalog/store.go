// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"sort"
	"sync"
	"time"
)

// Model is one catalogue entry. Only Name is guaranteed to be set; entries
// added after a pull carry nothing else until the next refresh.
type Model struct {
	Name          string
	Digest        string
	Size          int64
	ModifiedAt    time.Time
	Family        string
	ParameterSize string
	Quantization  string
}

// Store is a model list keyed by exact name.
type Store struct {
	mu          sync.RWMutex
	models      map[string]Model
	initialized bool
	updatedAt   time.Time
}

// NewStore returns an empty, uninitialized store.
func NewStore() *Store {
	return &Store{models: make(map[string]Model)}
}

// Replace swaps in a complete list and marks the store initialized.
func (s *Store) Replace(models []Model) {
	next := make(map[string]Model, len(models))
	for _, m := range models {
		if m.Name == "" {
			continue
		}
		next[m.Name] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = next
	s.initialized = true
	s.updatedAt = time.Now()
}

// Add records a newly available model by name. Before the first Replace the
// store tracks nothing, so Add is a no-op. Returns true if the entry is new.
func (s *Store) Add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || name == "" {
		return false
	}
	if _, ok := s.models[name]; ok {
		return false
	}
	s.models[name] = Model{Name: name}
	s.updatedAt = time.Now()
	return true
}

// Remove drops a model. Returns true if it was present.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[name]; !ok {
		return false
	}
	delete(s.models, name)
	s.updatedAt = time.Now()
	return true
}

// Has reports whether name is in the store.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[name]
	return ok
}

// Available reports whether name may be used. An uninitialized store cannot
// say no, so it answers true and leaves validation to the server.
func (s *Store) Available(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return true
	}
	_, ok := s.models[name]
	return ok
}

// Get returns the entry for name.
func (s *Store) Get(name string) (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	return m, ok
}

// List returns a copy of all entries sorted by name.
func (s *Store) List() []Model {
	s.mu.RLock()
	out := make([]Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted model names.
func (s *Store) Names() []string {
	models := s.List()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// Initialized reports whether a full list has been loaded at least once.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// UpdatedAt returns the time of the last mutation.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
