package persistence

import (
	"context"
	"testing"

	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	repo := NewInMemoryStateRepository()
	ctx := context.Background()

	state := domain.NewInactiveState("u1")
	state.Status = domain.StatusActive
	state.CurrentPlan = domain.PlanByID(domain.PlanFamily)
	require.NoError(t, repo.Save(ctx, state))

	loaded, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, loaded.Status)

	// Loads decode fresh copies; mutating one must not leak into the store.
	loaded.Status = domain.StatusCancelled
	again, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, again.Status)
}

func TestInMemoryLoadUnknownUser(t *testing.T) {
	repo := NewInMemoryStateRepository()

	_, err := repo.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInMemoryCorruptRecord(t *testing.T) {
	repo := NewInMemoryStateRepository()
	repo.Corrupt("u1", []byte("not json at all"))

	_, err := repo.Load(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, domain.KindCorruptData, domain.KindOf(err))
}

func TestInMemoryPendingUserIDsSorted(t *testing.T) {
	repo := NewInMemoryStateRepository()
	ctx := context.Background()

	for _, userID := range []string{"u3", "u1", "u2"} {
		state := domain.NewInactiveState(userID)
		state.MarkPending(domain.KindNetwork, "device is offline")
		require.NoError(t, repo.Save(ctx, state))
	}

	userIDs, err := repo.PendingUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, userIDs)
}
