package persona

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a persona id does not resolve.
var ErrNotFound = errors.New("persona not found")

// Store is the in-memory versioned persona registry. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	personas map[string]*Persona // current version by id
	versions map[string]*Persona // every version by content hash, for cache validity
}

// NewStore creates an empty persona store.
func NewStore() *Store {
	return &Store{
		personas: make(map[string]*Persona),
		versions: make(map[string]*Persona),
	}
}

// Register validates and stores a persona, returning its id. The stored copy
// is version 1 unless the persona already carries a version (loader replay).
func (s *Store) Register(p *Persona) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.ID == "" {
		return "", &ValidationError{Field: "id", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.personas[p.ID]; exists {
		return "", &ValidationError{Field: "id", Reason: fmt.Sprintf("persona %q already registered", p.ID)}
	}

	stored := p.clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	stored.ContentHash = stored.Hash()
	s.personas[stored.ID] = stored
	s.versions[stored.ContentHash] = stored
	return stored.ID, nil
}

// Get returns the current version of a persona.
func (s *Store) Get(id string) (*Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.clone(), nil
}

// GetByHash resolves any persona version by its content hash. Cached results
// reference versions this way, so archived versions remain resolvable.
func (s *Store) GetByHash(hash string) (*Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.versions[hash]
	if !ok {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	return p.clone(), nil
}

// List returns the current, non-archived personas. When focus tags are given,
// only personas carrying at least one of them are returned.
func (s *Store) List(focus ...string) []*Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Persona
	for _, p := range s.personas {
		if p.Archived {
			continue
		}
		if len(focus) > 0 && !hasAnyFocus(p, focus) {
			continue
		}
		out = append(out, p.clone())
	}
	return out
}

// UpdatePrompt creates a new immutable version of the persona with the given
// strategy text. The previous version is archived but stays resolvable by
// content hash, so results cached against it remain valid.
func (s *Store) UpdatePrompt(id, strategyPrompt string) (*Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := current.clone()
	next.StrategyPrompt = strategyPrompt
	next.Version = current.Version + 1
	next.Archived = false
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.ContentHash = next.Hash()

	current.Archived = true
	s.personas[id] = next
	s.versions[next.ContentHash] = next
	return next.clone(), nil
}

// Archive marks a persona as retired. Archived personas are excluded from
// List but still resolvable by Get and GetByHash; nothing is ever deleted
// while cache entries or jobs may reference it.
func (s *Store) Archive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.personas[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.Archived = true
	return nil
}

// Count returns the number of registered personas (current versions).
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.personas)
}

func hasAnyFocus(p *Persona, focus []string) bool {
	for _, want := range focus {
		for _, have := range p.AnalysisFocus {
			if have == want {
				return true
			}
		}
	}
	return false
}
