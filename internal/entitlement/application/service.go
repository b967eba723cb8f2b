package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"golang.org/x/sync/errgroup"
)

// Operation names carried on errors and event routing keys.
const (
	opCheck  = "check"
	opUpdate = "update"
	opCancel = "cancel"
	opRenew  = "renew"
	opFlush  = "flush"
)

// flushConcurrency bounds parallel per-user flushes.
const flushConcurrency = 4

// Service is the public entitlement API consumed by UI collaborators. It is
// the sole mutator of in-memory entitlement state: operations for the same
// user identifier are admitted FIFO behind a per-user lock held for the full
// validate-mutate-persist sequence, while operations for different users
// proceed concurrently. Instantiated once at process start and passed by
// reference; there is no package-level singleton.
type Service struct {
	coordinator *SyncCoordinator
	validate    *validator.Validate
	logger      *slog.Logger

	mu     sync.Mutex
	states map[string]*domain.State
	locks  map[string]*userLock
}

// userLock serializes operations for one user. The buffered channel admits
// waiters in arrival order; refs tracks outstanding holders and waiters so
// idle entries can be dropped from the map.
type userLock struct {
	ch   chan struct{}
	refs int
}

// NewService creates the entitlement service.
func NewService(coordinator *SyncCoordinator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		coordinator: coordinator,
		validate:    validator.New(),
		logger:      logger,
		states:      make(map[string]*domain.State),
		locks:       make(map[string]*userLock),
	}
}

// CheckResult is the snapshot returned by CheckSubscriptionStatus.
type CheckResult struct {
	// IsActive reports entitlement to paid features. Anything other than an
	// active subscription, including the error status, is non-entitled.
	IsActive bool
	State    *domain.State
}

// CheckSubscriptionStatus returns the current entitlement snapshot. Expiry
// is evaluated lazily here: an active subscription whose billing date has
// elapsed transitions to expired as part of this call, against ambient time,
// before returning. When connected, a pending local mutation is flushed
// opportunistically.
func (s *Service) CheckSubscriptionStatus(ctx context.Context, userID string) (CheckResult, error) {
	if userID == "" {
		return CheckResult{}, domain.NewError(domain.KindInvalidUserID, "entitlement.check", "empty user identifier", nil)
	}
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	defer unlock()

	state, err := s.current(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}

	next := state.Clone()

	// An error-status record (a corrupt load fails closed into it) is not
	// terminal: the next connected check pulls the remote copy so the user
	// recovers without a manual sync. Pulling, not pushing, so the broken
	// local record never overwrites a healthy remote one.
	if next.Status == domain.StatusError && s.coordinator.IsConnected(ctx) {
		if winner, adopted, rerr := s.coordinator.Reconcile(ctx, next); rerr == nil && adopted {
			next = winner.Clone()
		}
	}

	expired := next.ExpireIfDue(time.Now())
	needsSync := next.HasUnsyncedLocalChanges || expired

	if needsSync && s.coordinator.IsConnected(ctx) {
		committed, err := s.coordinator.Commit(ctx, opCheck, next)
		if committed == nil {
			// Storage failure: keep the previous snapshot; expiry will
			// re-evaluate on the next call anyway.
			return CheckResult{IsActive: state.IsEntitled(), State: state.Clone()}, err
		}
		// A remote flake after the probe reported connected leaves the
		// mutation pending on the snapshot; the check itself still
		// succeeds because only mutating calls fail offline.
		s.setState(userID, committed)
		return CheckResult{IsActive: committed.IsEntitled(), State: committed.Clone()}, nil
	}

	if expired {
		next.MarkPending(domain.KindNetwork, "expiry recorded while offline")
	}
	if err := s.coordinator.Persist(ctx, next); err != nil {
		return CheckResult{IsActive: state.IsEntitled(), State: state.Clone()}, err
	}
	s.setState(userID, next)
	return CheckResult{IsActive: next.IsEntitled(), State: next.Clone()}, nil
}

// UpdateSubscription merges the provided fields into the current state. The
// payload is validated against its schema and the merged state against the
// domain invariants; an inconsistent partial (such as an active status with
// no plan) is rejected before any mutation occurs.
func (s *Service) UpdateSubscription(ctx context.Context, userID string, payload UpdatePayload) (*domain.State, error) {
	if userID == "" {
		return nil, domain.NewError(domain.KindInvalidUserID, "entitlement.update", "empty user identifier", nil)
	}
	if err := validatePayload(s.validate, payload); err != nil {
		return nil, err
	}
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := state.Clone()
	payload.applyTo(next)
	if err := next.Validate(); err != nil {
		return nil, domain.NewError(domain.KindInvalidSubscriptionData, "entitlement.update", err.Error(), err)
	}
	next.ClearError()

	return s.commit(ctx, opUpdate, userID, next)
}

// CancelSubscription forces the subscription into the cancelled status.
// Cancelling an already-cancelled subscription is a no-op success.
func (s *Service) CancelSubscription(ctx context.Context, userID string) (*domain.State, error) {
	if userID == "" {
		return nil, domain.NewError(domain.KindInvalidUserID, "entitlement.cancel", "empty user identifier", nil)
	}
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.Status == domain.StatusCancelled {
		return state.Clone(), nil
	}

	next := state.Clone()
	next.Status = domain.StatusCancelled
	next.ClearError()
	next.UpdatedAt = time.Now()

	return s.commit(ctx, opCancel, userID, next)
}

// RenewSubscription reactivates a subscription and clears any prior error.
// The billing date advances by one plan interval when it has elapsed.
func (s *Service) RenewSubscription(ctx context.Context, userID string) (*domain.State, error) {
	if userID == "" {
		return nil, domain.NewError(domain.KindInvalidUserID, "entitlement.renew", "empty user identifier", nil)
	}
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.CurrentPlan == nil {
		return nil, domain.NewError(domain.KindInvalidSubscriptionData, "entitlement.renew", "no plan to renew", nil)
	}

	now := time.Now()
	next := state.Clone()
	next.Status = domain.StatusActive
	next.ClearError()
	next.UpdatedAt = now
	if next.NextBillingDate == nil || !next.NextBillingDate.After(now) {
		renewed := advanceBillingDate(now, next.CurrentPlan.Interval)
		next.NextBillingDate = &renewed
	}

	return s.commit(ctx, opRenew, userID, next)
}

// FlushPendingChanges re-syncs every user whose state carries unsynced local
// changes. Intended to be invoked from a connectivity-regained callback
// rather than relying on incidental re-invocation of the check path.
func (s *Service) FlushPendingChanges(ctx context.Context) error {
	userIDs, err := s.pendingUsers(ctx)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flushConcurrency)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if err := s.flushUser(gctx, userID); err != nil {
				s.logger.Warn("flush failed for user", "user_id", userID, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// SyncNow reconciles one user against the remote source: a strictly newer
// remote record wins, otherwise pending local changes are pushed.
func (s *Service) SyncNow(ctx context.Context, userID string) (*domain.State, error) {
	if userID == "" {
		return nil, domain.NewError(domain.KindInvalidUserID, "entitlement.sync", "empty user identifier", nil)
	}
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	winner, adopted, err := s.coordinator.Reconcile(ctx, state.Clone())
	if err != nil {
		return state.Clone(), err
	}
	if adopted {
		s.setState(userID, winner)
		return winner.Clone(), nil
	}
	if !state.HasUnsyncedLocalChanges {
		return state.Clone(), nil
	}
	return s.commit(ctx, opFlush, userID, state.Clone())
}

func (s *Service) flushUser(ctx context.Context, userID string) error {
	unlock, err := s.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := s.current(ctx, userID)
	if err != nil {
		return err
	}
	if !state.HasUnsyncedLocalChanges {
		return nil
	}
	_, err = s.commit(ctx, opFlush, userID, state.Clone())
	return err
}

// commit runs the coordinator sequence and installs the committed state. On
// a storage failure the previous in-memory state is kept unchanged and the
// attempted mutation is discarded.
func (s *Service) commit(ctx context.Context, op, userID string, next *domain.State) (*domain.State, error) {
	committed, err := s.coordinator.Commit(ctx, op, next)
	if committed == nil {
		return nil, err
	}
	s.setState(userID, committed)
	return committed.Clone(), err
}

// current returns the in-memory state for a user, loading it from the
// durable store on first access. Callers must hold the user's lock.
func (s *Service) current(ctx context.Context, userID string) (*domain.State, error) {
	s.mu.Lock()
	state, ok := s.states[userID]
	s.mu.Unlock()
	if ok {
		return state, nil
	}

	state, err := s.coordinator.LoadOrInit(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.setState(userID, state)
	return state, nil
}

func (s *Service) setState(userID string, state *domain.State) {
	s.mu.Lock()
	s.states[userID] = state
	s.mu.Unlock()
}

// pendingUsers merges in-memory and persisted pending markers.
func (s *Service) pendingUsers(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	s.mu.Lock()
	for userID, state := range s.states {
		if state.HasUnsyncedLocalChanges {
			seen[userID] = struct{}{}
		}
	}
	s.mu.Unlock()

	persisted, err := s.coordinator.store.PendingUserIDs(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindStorage, "entitlement.flush", "pending scan failed", err)
	}
	for _, userID := range persisted {
		seen[userID] = struct{}{}
	}

	userIDs := make([]string, 0, len(seen))
	for userID := range seen {
		userIDs = append(userIDs, userID)
	}
	return userIDs, nil
}

// acquire takes the per-user lock. Waiters blocked on the channel send are
// admitted in arrival order, which gives the FIFO serialization the state
// machine requires.
func (s *Service) acquire(ctx context.Context, userID string) (func(), error) {
	s.mu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &userLock{ch: make(chan struct{}, 1)}
		s.locks[userID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		s.release(userID, lock, false)
		return nil, ctx.Err()
	}

	return func() { s.release(userID, lock, true) }, nil
}

func (s *Service) release(userID string, lock *userLock, held bool) {
	if held {
		<-lock.ch
	}
	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, userID)
	}
	s.mu.Unlock()
}

func advanceBillingDate(from time.Time, interval domain.BillingInterval) time.Time {
	if interval == domain.IntervalAnnual {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
