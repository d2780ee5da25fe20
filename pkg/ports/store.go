package ports

import (
	"context"

	"github.com/aretw0/stepbnb/pkg/domain"
)

// TraceStore persists the decisions taken during an episode.
// This allows replaying or auditing a controller's choices after the run.
type TraceStore interface {
	// Append adds a step to the end of the episode trace.
	Append(ctx context.Context, episodeID string, step domain.Step) error

	// Load returns the steps of an episode in the order they were appended.
	// Returns domain.ErrEpisodeNotFound if the episode has no trace.
	Load(ctx context.Context, episodeID string) ([]domain.Step, error)

	// Delete removes the trace of an episode.
	Delete(ctx context.Context, episodeID string) error

	// List returns the ids of all stored episodes.
	List(ctx context.Context) ([]string, error)
}
