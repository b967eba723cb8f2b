package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/medfolio/medfolio/internal/entitlement/domain"
)

// InMemoryStateRepository is a map-backed store for local development and
// tests. It serializes through JSON like the durable stores do, so corrupt
// payloads and deep-copy semantics behave the same way.
type InMemoryStateRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewInMemoryStateRepository creates an empty in-memory store.
func NewInMemoryStateRepository() *InMemoryStateRepository {
	return &InMemoryStateRepository{records: make(map[string][]byte)}
}

// Load reads one user's state.
func (r *InMemoryStateRepository) Load(ctx context.Context, userID string) (*domain.State, error) {
	r.mu.RLock()
	payload, ok := r.records[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	var state domain.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, domain.NewError(domain.KindCorruptData, "memory.load", "malformed persisted record", err)
	}
	if state.UserID == "" {
		return nil, domain.NewError(domain.KindCorruptData, "memory.load", "persisted record missing user identifier", nil)
	}
	return &state, nil
}

// Save replaces the serialized record for one user atomically.
func (r *InMemoryStateRepository) Save(ctx context.Context, state *domain.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.records[state.UserID] = payload
	r.mu.Unlock()
	return nil
}

// Delete removes a user's record.
func (r *InMemoryStateRepository) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	delete(r.records, userID)
	r.mu.Unlock()
	return nil
}

// PendingUserIDs lists users whose stored state awaits a remote sync.
func (r *InMemoryStateRepository) PendingUserIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userIDs := make([]string, 0)
	for userID, payload := range r.records {
		var state domain.State
		if err := json.Unmarshal(payload, &state); err != nil {
			continue
		}
		if state.HasUnsyncedLocalChanges {
			userIDs = append(userIDs, userID)
		}
	}
	sort.Strings(userIDs)
	return userIDs, nil
}

// Corrupt overwrites a user's record with raw bytes. Test hook for the
// fail-closed corrupt-data path.
func (r *InMemoryStateRepository) Corrupt(userID string, payload []byte) {
	r.mu.Lock()
	r.records[userID] = payload
	r.mu.Unlock()
}

var _ domain.StateRepository = (*InMemoryStateRepository)(nil)
