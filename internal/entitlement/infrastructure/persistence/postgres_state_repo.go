package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
)

// PostgresStateRepository implements domain.StateRepository with PostgreSQL,
// for server-side deployments where device state is mirrored centrally. Same
// contract as the SQLite store: whole-row JSON upserts, corrupt payloads
// surface as corrupt-data errors.
type PostgresStateRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStateRepository creates a new repository.
func NewPostgresStateRepository(pool *pgxpool.Pool) *PostgresStateRepository {
	return &PostgresStateRepository{pool: pool}
}

// Migrate ensures the subscription_states table exists.
func (r *PostgresStateRepository) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS subscription_states (
			user_id    TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			pending    BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// Load reads one user's state.
func (r *PostgresStateRepository) Load(ctx context.Context, userID string) (*domain.State, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM subscription_states WHERE user_id = $1`, userID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var state domain.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, domain.NewError(domain.KindCorruptData, "postgres.load", "malformed persisted record", err)
	}
	if state.UserID == "" {
		return nil, domain.NewError(domain.KindCorruptData, "postgres.load", "persisted record missing user identifier", nil)
	}
	return &state, nil
}

// Save upserts the full serialized state for one user.
func (r *PostgresStateRepository) Save(ctx context.Context, state *domain.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	query := `
		INSERT INTO subscription_states (user_id, payload, pending, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			payload    = EXCLUDED.payload,
			pending    = EXCLUDED.pending,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		state.UserID, payload, state.HasUnsyncedLocalChanges, time.Now().UTC())
	return err
}

// Delete removes a user's record.
func (r *PostgresStateRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM subscription_states WHERE user_id = $1`, userID)
	return err
}

// PendingUserIDs lists users whose persisted state awaits a remote sync.
func (r *PostgresStateRepository) PendingUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM subscription_states WHERE pending ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return userIDs, nil
}

var _ domain.StateRepository = (*PostgresStateRepository)(nil)
