package domain

import (
	"context"
	"time"
)

// StateRepository defines access for entitlement state persistence. Save is
// atomic with respect to a single key: a reader after a completed Save never
// observes a partially written record. Load returns ErrNotFound for a
// never-seen user and a KindCorruptData error when the persisted record
// fails to deserialize.
type StateRepository interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, userID string) error
	// PendingUserIDs lists users whose persisted state carries unsynced
	// local changes, for opportunistic flush on connectivity regain.
	PendingUserIDs(ctx context.Context) ([]string, error)
}

// ConnectivityProbe reports current network reachability on demand. It must
// return false conservatively if the check itself fails or times out, and
// holds no state of its own.
type ConnectivityProbe interface {
	IsConnected(ctx context.Context) bool
}

// RemoteSource is the billing backend, treated as an opaque success/failure
// signal. Push publishes the local state (last writer wins); Pull retrieves
// the most recently synced state for a user, ErrNotFound if none.
type RemoteSource interface {
	Push(ctx context.Context, state *State) error
	Pull(ctx context.Context, userID string) (*State, error)
}

// Event is emitted after every completed entitlement operation.
type Event struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Operation  string    `json:"operation"`
	Status     Status    `json:"status"`
	PlanID     string    `json:"plan_id,omitempty"`
	Synced     bool      `json:"synced"`
	OccurredAt time.Time `json:"occurred_at"`
}
