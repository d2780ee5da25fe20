// Package file provides a ports.TraceStore on the local filesystem.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
)

const ext = ".jsonl"

// ErrInvalidEpisodeID is returned for ids that cannot name a file in the store directory.
var ErrInvalidEpisodeID = errors.New("invalid episode id")

// Store implements ports.TraceStore with one JSON Lines file per episode.
// Safe for concurrent use within one process.
type Store struct {
	BasePath string
	mu       sync.Mutex
}

var _ ports.TraceStore = (*Store)(nil)

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".stepbnb/traces".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".stepbnb", "traces")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(episodeID string) (string, error) {
	if episodeID == "" || episodeID != filepath.Base(episodeID) || strings.HasPrefix(episodeID, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEpisodeID, episodeID)
	}
	return filepath.Join(s.BasePath, episodeID+ext), nil
}

// Append writes the step as one line at the end of the episode file.
func (s *Store) Append(ctx context.Context, episodeID string, step domain.Step) error {
	path, err := s.path(episodeID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("failed to marshal step: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	// One write per line.
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write trace file: %w", err)
	}
	return f.Close()
}

// Load reads the steps of an episode in file order.
func (s *Store) Load(ctx context.Context, episodeID string) ([]domain.Step, error) {
	path, err := s.path(episodeID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	defer f.Close()

	var steps []domain.Step
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var step domain.Step
		if err := dec.Decode(&step); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode step %d of %s: %w", len(steps), episodeID, err)
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, domain.ErrEpisodeNotFound
	}
	return steps, nil
}

// Delete removes the episode file.
func (s *Store) Delete(ctx context.Context, episodeID string) error {
	path, err := s.path(episodeID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}

// List returns the ids of all stored episodes, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ext))
		}
	}
	slices.Sort(ids)
	return ids, nil
}
