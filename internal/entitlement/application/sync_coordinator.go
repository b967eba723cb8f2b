package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/medfolio/medfolio/internal/shared/infrastructure/eventbus"
	"github.com/sony/gobreaker/v2"
)

// SyncCoordinatorConfig bounds the I/O performed per operation. Callers must
// never block indefinitely on a connectivity check or a local write.
type SyncCoordinatorConfig struct {
	// ConnectivityTimeout bounds the reachability probe.
	ConnectivityTimeout time.Duration
	// StorageTimeout bounds each durable store read/write.
	StorageTimeout time.Duration
	// RemoteTimeout bounds the round trip to the billing backend.
	RemoteTimeout time.Duration
	// BreakerFailureThreshold trips the remote-source circuit breaker after
	// this many consecutive failures.
	BreakerFailureThreshold uint32
}

// DefaultSyncCoordinatorConfig returns the recommended bounds.
func DefaultSyncCoordinatorConfig() SyncCoordinatorConfig {
	return SyncCoordinatorConfig{
		ConnectivityTimeout:     time.Second,
		StorageTimeout:          100 * time.Millisecond,
		RemoteTimeout:           3 * time.Second,
		BreakerFailureThreshold: 5,
	}
}

// SyncCoordinator reconciles the in-memory state against the durable store
// and the remote billing source, consulting the connectivity probe to decide
// whether a round trip is attempted. Remote round trips run behind a circuit
// breaker so a flapping backend degrades to the offline path instead of
// stalling every call.
type SyncCoordinator struct {
	store   domain.StateRepository
	probe   domain.ConnectivityProbe
	remote  domain.RemoteSource
	events  eventbus.Publisher
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
	config  SyncCoordinatorConfig
}

// NewSyncCoordinator creates a sync coordinator. The remote source and event
// publisher may be nil; the coordinator then operates local-only.
func NewSyncCoordinator(
	store domain.StateRepository,
	probe domain.ConnectivityProbe,
	remote domain.RemoteSource,
	events eventbus.Publisher,
	config SyncCoordinatorConfig,
	logger *slog.Logger,
) *SyncCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &SyncCoordinator{
		store:  store,
		probe:  probe,
		remote: remote,
		events: events,
		logger: logger,
		config: config,
	}
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "billing-remote",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// LoadOrInit reads the persisted state for a user. A never-seen user starts
// inactive. A corrupt record fails closed: the returned state carries status
// error and no plan, never a best-effort partial entitlement.
func (c *SyncCoordinator) LoadOrInit(ctx context.Context, userID string) (*domain.State, error) {
	loadCtx, cancel := context.WithTimeout(ctx, c.config.StorageTimeout)
	defer cancel()

	state, err := c.store.Load(loadCtx, userID)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewInactiveState(userID), nil
	}
	if domain.KindOf(err) == domain.KindCorruptData {
		c.logger.Warn("persisted entitlement record is corrupt, failing closed",
			"user_id", userID,
			"error", err,
		)
		state = domain.NewInactiveState(userID)
		state.Status = domain.StatusError
		state.RecordError(domain.KindCorruptData, "persisted record could not be read")
		return state, nil
	}
	return nil, domain.NewError(domain.KindStorage, "entitlement.load", "durable store read failed", err)
}

// IsConnected probes reachability within the configured bound.
func (c *SyncCoordinator) IsConnected(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, c.config.ConnectivityTimeout)
	defer cancel()
	return c.probe.IsConnected(probeCtx)
}

// Commit applies the full persist-and-sync sequence for an already-mutated
// candidate state. On success the synced candidate is returned. When offline
// or when the remote round trip fails, the candidate is persisted locally as
// pending and the call fails with a network error, surfacing the mutation as
// pending rather than silently dropping it. Any durable store failure
// returns a storage error and the caller keeps its previous state.
func (c *SyncCoordinator) Commit(ctx context.Context, op string, state *domain.State) (*domain.State, error) {
	if !c.IsConnected(ctx) {
		return c.commitOffline(ctx, op, state, "device is offline")
	}

	if err := c.pushRemote(ctx, state); err != nil {
		c.logger.Warn("remote sync failed, keeping mutation pending",
			"user_id", state.UserID,
			"operation", op,
			"error", err,
		)
		return c.commitOffline(ctx, op, state, "billing backend unreachable")
	}

	state.MarkSynced(time.Now())
	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	c.publish(ctx, op, state)
	return state, nil
}

// commitOffline persists the mutation locally as pending and fails the call
// with a network error.
func (c *SyncCoordinator) commitOffline(ctx context.Context, op string, state *domain.State, reason string) (*domain.State, error) {
	state.MarkPending(domain.KindNetwork, reason)
	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	c.publish(ctx, op, state)
	return state, domain.NewError(domain.KindNetwork, "entitlement."+op, reason, nil)
}

// Persist writes the state to the durable store without a remote round trip.
// Used by check-time transitions that do not constitute user mutations.
func (c *SyncCoordinator) Persist(ctx context.Context, state *domain.State) error {
	return c.save(ctx, state)
}

// Reconcile pulls the remote record and adopts it if and only if it is
// strictly newer by LastSyncedAt: the last writer to successfully sync wins.
// Returns the winning state and whether the remote copy was adopted.
func (c *SyncCoordinator) Reconcile(ctx context.Context, local *domain.State) (*domain.State, bool, error) {
	if c.remote == nil {
		return local, false, nil
	}
	pullCtx, cancel := context.WithTimeout(ctx, c.config.RemoteTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.remote.Pull(pullCtx, local.UserID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return local, false, nil
		}
		return local, false, domain.NewError(domain.KindNetwork, "entitlement.reconcile", "remote pull failed", err)
	}
	remote, ok := result.(*domain.State)
	if !ok || remote == nil {
		return local, false, nil
	}
	if remote.LastSyncedAt == nil {
		return local, false, nil
	}
	if local.LastSyncedAt != nil && !remote.LastSyncedAt.After(*local.LastSyncedAt) {
		return local, false, nil
	}
	if err := c.save(ctx, remote); err != nil {
		return local, false, err
	}
	return remote, true, nil
}

func (c *SyncCoordinator) pushRemote(ctx context.Context, state *domain.State) error {
	if c.remote == nil {
		return nil
	}
	pushCtx, cancel := context.WithTimeout(ctx, c.config.RemoteTimeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.remote.Push(pushCtx, state)
	})
	return err
}

func (c *SyncCoordinator) save(ctx context.Context, state *domain.State) error {
	saveCtx, cancel := context.WithTimeout(ctx, c.config.StorageTimeout)
	defer cancel()

	if err := c.store.Save(saveCtx, state); err != nil {
		return domain.NewError(domain.KindStorage, "entitlement.save", "durable store write failed", err)
	}
	return nil
}

// publish emits a lifecycle event. Publish failures are logged, never
// propagated: the entitlement operation itself already completed.
func (c *SyncCoordinator) publish(ctx context.Context, op string, state *domain.State) {
	if c.events == nil {
		return
	}
	event := domain.Event{
		ID:         uuid.NewString(),
		UserID:     state.UserID,
		Operation:  op,
		Status:     state.Status,
		Synced:     !state.HasUnsyncedLocalChanges,
		OccurredAt: time.Now(),
	}
	if state.CurrentPlan != nil {
		event.PlanID = state.CurrentPlan.ID
	}
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("failed to encode entitlement event", "error", err)
		return
	}
	if err := c.events.Publish(ctx, "entitlement."+op, payload); err != nil {
		c.logger.Warn("failed to publish entitlement event",
			"routing_key", "entitlement."+op,
			"error", err,
		)
	}
}
