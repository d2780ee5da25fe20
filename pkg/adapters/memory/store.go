// Package memory provides in-process implementations of the ports.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/stepbnb/pkg/domain"
)

// Store implements ports.TraceStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]domain.Step
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]domain.Step),
	}
}

// Append adds a step to the episode trace.
func (s *Store) Append(ctx context.Context, episodeID string, step domain.Step) error {
	// Copy slices so later mutation by the caller cannot reach the store
	step = cloneStep(step)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[episodeID] = append(s.data[episodeID], step)
	return nil
}

// Load returns a copy of the episode trace.
func (s *Store) Load(ctx context.Context, episodeID string) ([]domain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.data[episodeID]
	if !ok {
		return nil, domain.ErrEpisodeNotFound
	}
	out := make([]domain.Step, len(steps))
	for i, st := range steps {
		out[i] = cloneStep(st)
	}
	return out, nil
}

// Delete removes the episode trace.
func (s *Store) Delete(ctx context.Context, episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, episodeID)
	return nil
}

// List returns the stored episode ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	episodes := make([]string, 0, len(s.data))
	for id := range s.data {
		episodes = append(episodes, id)
	}
	return episodes, nil
}

func cloneStep(st domain.Step) domain.Step {
	st.ActionSet = domain.ActionSet{
		Leaves:   slices.Clone(st.ActionSet.Leaves),
		Children: slices.Clone(st.ActionSet.Children),
		Siblings: slices.Clone(st.ActionSet.Siblings),
	}
	if st.Choice != nil {
		id := *st.Choice
		st.Choice = &id
	}
	return st
}
