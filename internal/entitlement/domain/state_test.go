package domain_test

import (
	"testing"
	"time"

	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInactiveState(t *testing.T) {
	state := domain.NewInactiveState("u1")

	assert.Equal(t, "u1", state.UserID)
	assert.Equal(t, domain.StatusInactive, state.Status)
	assert.Nil(t, state.CurrentPlan)
	assert.Nil(t, state.LastSyncedAt)
	assert.False(t, state.HasUnsyncedLocalChanges)
	assert.False(t, state.IsEntitled())
}

func TestStateClone(t *testing.T) {
	now := time.Now()
	billing := now.AddDate(0, 1, 0)
	state := &domain.State{
		UserID:          "u1",
		CurrentPlan:     domain.PlanByID(domain.PlanPremiumMonthly),
		Status:          domain.StatusActive,
		NextBillingDate: &billing,
		LastSyncedAt:    &now,
		LastError:       &domain.ErrorDescriptor{Kind: domain.KindNetwork, Message: "offline"},
	}

	clone := state.Clone()
	require.NotSame(t, state, clone)
	assert.Equal(t, state.UserID, clone.UserID)

	// Mutating the clone must not reach the original.
	clone.CurrentPlan.Name = "changed"
	*clone.NextBillingDate = clone.NextBillingDate.AddDate(1, 0, 0)
	clone.LastError.Message = "changed"

	assert.Equal(t, "Medfolio Premium", state.CurrentPlan.Name)
	assert.True(t, state.NextBillingDate.Equal(billing))
	assert.Equal(t, "offline", state.LastError.Message)
}

func TestStateCloneNil(t *testing.T) {
	var state *domain.State
	assert.Nil(t, state.Clone())
}

func TestStateValidate(t *testing.T) {
	plan := domain.PlanByID(domain.PlanPremiumMonthly)

	tests := []struct {
		name    string
		state   domain.State
		wantErr bool
	}{
		{
			name:  "inactive without plan",
			state: domain.State{UserID: "u1", Status: domain.StatusInactive},
		},
		{
			name:    "inactive with plan",
			state:   domain.State{UserID: "u1", Status: domain.StatusInactive, CurrentPlan: plan},
			wantErr: true,
		},
		{
			name:  "active with plan",
			state: domain.State{UserID: "u1", Status: domain.StatusActive, CurrentPlan: plan},
		},
		{
			name:    "active without plan",
			state:   domain.State{UserID: "u1", Status: domain.StatusActive},
			wantErr: true,
		},
		{
			name:  "cancelled keeps plan for display",
			state: domain.State{UserID: "u1", Status: domain.StatusCancelled, CurrentPlan: plan},
		},
		{
			name:  "expired without plan",
			state: domain.State{UserID: "u1", Status: domain.StatusExpired},
		},
		{
			name:    "unknown status",
			state:   domain.State{UserID: "u1", Status: domain.Status("paused")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsEntitledFailsClosed(t *testing.T) {
	plan := domain.PlanByID(domain.PlanPremiumMonthly)

	entitled := map[domain.Status]bool{
		domain.StatusActive:    true,
		domain.StatusInactive:  false,
		domain.StatusCancelled: false,
		domain.StatusExpired:   false,
		domain.StatusError:     false,
	}
	for status, want := range entitled {
		state := &domain.State{UserID: "u1", Status: status, CurrentPlan: plan}
		assert.Equal(t, want, state.IsEntitled(), "status %s", status)
	}

	var nilState *domain.State
	assert.False(t, nilState.IsEntitled())
}

func TestExpireIfDue(t *testing.T) {
	now := time.Now()
	plan := domain.PlanByID(domain.PlanPremiumMonthly)

	t.Run("active past billing date expires", func(t *testing.T) {
		past := now.Add(-time.Hour)
		state := &domain.State{UserID: "u1", Status: domain.StatusActive, CurrentPlan: plan, NextBillingDate: &past}

		require.True(t, state.ExpireIfDue(now))
		assert.Equal(t, domain.StatusExpired, state.Status)
		assert.False(t, state.IsEntitled())
	})

	t.Run("active before billing date stays active", func(t *testing.T) {
		future := now.Add(time.Hour)
		state := &domain.State{UserID: "u1", Status: domain.StatusActive, CurrentPlan: plan, NextBillingDate: &future}

		assert.False(t, state.ExpireIfDue(now))
		assert.Equal(t, domain.StatusActive, state.Status)
	})

	t.Run("billing date exactly now expires", func(t *testing.T) {
		at := now
		state := &domain.State{UserID: "u1", Status: domain.StatusActive, CurrentPlan: plan, NextBillingDate: &at}

		assert.True(t, state.ExpireIfDue(now))
	})

	t.Run("no billing date never expires", func(t *testing.T) {
		state := &domain.State{UserID: "u1", Status: domain.StatusActive, CurrentPlan: plan}

		assert.False(t, state.ExpireIfDue(now))
		assert.Equal(t, domain.StatusActive, state.Status)
	})

	t.Run("non-active statuses are untouched", func(t *testing.T) {
		past := now.Add(-time.Hour)
		for _, status := range []domain.Status{domain.StatusInactive, domain.StatusCancelled, domain.StatusExpired, domain.StatusError} {
			state := &domain.State{UserID: "u1", Status: status, NextBillingDate: &past}
			assert.False(t, state.ExpireIfDue(now), "status %s", status)
			assert.Equal(t, status, state.Status)
		}
	})
}

func TestMarkSyncedMonotonic(t *testing.T) {
	state := domain.NewInactiveState("u1")
	first := time.Now()
	state.MarkSynced(first)
	require.NotNil(t, state.LastSyncedAt)
	assert.True(t, state.LastSyncedAt.Equal(first))

	// An earlier timestamp never rolls LastSyncedAt back.
	state.MarkSynced(first.Add(-time.Minute))
	assert.True(t, state.LastSyncedAt.Equal(first))

	later := first.Add(time.Minute)
	state.MarkSynced(later)
	assert.True(t, state.LastSyncedAt.Equal(later))
}

func TestMarkSyncedClearsPendingAndError(t *testing.T) {
	state := domain.NewInactiveState("u1")
	state.MarkPending(domain.KindNetwork, "device is offline")
	require.True(t, state.HasUnsyncedLocalChanges)
	require.NotNil(t, state.LastError)

	state.MarkSynced(time.Now())
	assert.False(t, state.HasUnsyncedLocalChanges)
	assert.Nil(t, state.LastError)
}

func TestMarkPending(t *testing.T) {
	state := domain.NewInactiveState("u1")
	state.MarkPending(domain.KindNetwork, "device is offline")

	assert.True(t, state.HasUnsyncedLocalChanges)
	require.NotNil(t, state.LastError)
	assert.Equal(t, domain.KindNetwork, state.LastError.Kind)
	assert.Equal(t, "device is offline", state.LastError.Message)
}
