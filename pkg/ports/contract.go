package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTraceStoreContract runs a suite of tests to verify that a TraceStore implementation
// adheres to the defined interface contract.
func RunTraceStoreContract(t *testing.T, store TraceStore) {
	ctx := context.Background()
	episodeID := "contract-test-episode-" + time.Now().Format("20060102150405")
	choice := domain.NodeID(2)

	t.Run("Append and Load", func(t *testing.T) {
		first := domain.Step{
			Index:     0,
			ActionSet: domain.ActionSet{Children: []domain.NodeID{2, 3}},
			Choice:    &choice,
			At:        time.Now().UTC(),
		}
		second := domain.Step{Index: 1, Done: true, At: time.Now().UTC()}

		require.NoError(t, store.Append(ctx, episodeID, first), "Append should not return error")
		require.NoError(t, store.Append(ctx, episodeID, second))

		steps, err := store.Load(ctx, episodeID)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, steps, 2)
		assert.Equal(t, []domain.NodeID{2, 3}, steps[0].ActionSet.Children)
		require.NotNil(t, steps[0].Choice)
		assert.Equal(t, choice, *steps[0].Choice)
		assert.Nil(t, steps[1].Choice)
		assert.True(t, steps[1].Done)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+episodeID)
		assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, episodeID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, episodeID)
		assert.ErrorIs(t, err, domain.ErrEpisodeNotFound, "Load after Delete should return ErrEpisodeNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := episodeID + "-1"
		id2 := episodeID + "-2"
		_ = store.Append(ctx, id1, domain.Step{Index: 0})
		_ = store.Append(ctx, id2, domain.Step{Index: 0})

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		episodes, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, episodes, id1)
		assert.Contains(t, episodes, id2)
	})
}
