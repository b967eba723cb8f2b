package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/medfolio/medfolio/internal/entitlement/domain"
)

// SQLiteStateRepository implements domain.StateRepository on SQLite. Each
// user's state is a single JSON payload row; the upsert replaces the whole
// row in one statement, which gives the per-key atomicity the store
// contract requires.
type SQLiteStateRepository struct {
	db *sql.DB
}

// OpenSQLite opens the on-device database with pragmas for safe concurrent
// use:
// - journal_mode=WAL: readers don't block the single writer
// - busy_timeout=5000: wait on lock instead of failing immediately
// - synchronous=NORMAL: good balance of safety and speed
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite doesn't support multiple writers, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

// NewSQLiteStateRepository creates the repository and ensures its schema.
func NewSQLiteStateRepository(ctx context.Context, db *sql.DB) (*SQLiteStateRepository, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS subscription_states (
			user_id    TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			pending    INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create subscription_states table: %w", err)
	}
	return &SQLiteStateRepository{db: db}, nil
}

// Load reads one user's state. A missing row is ErrNotFound; a row whose
// payload no longer deserializes is a corrupt-data error, never a partial
// record.
func (r *SQLiteStateRepository) Load(ctx context.Context, userID string) (*domain.State, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM subscription_states WHERE user_id = ?`, userID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var state domain.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, domain.NewError(domain.KindCorruptData, "sqlite.load", "malformed persisted record", err)
	}
	if state.UserID == "" {
		return nil, domain.NewError(domain.KindCorruptData, "sqlite.load", "persisted record missing user identifier", nil)
	}
	return &state, nil
}

// Save upserts the full serialized state for one user in a single statement.
func (r *SQLiteStateRepository) Save(ctx context.Context, state *domain.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	pending := 0
	if state.HasUnsyncedLocalChanges {
		pending = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO subscription_states (user_id, payload, pending, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			payload    = excluded.payload,
			pending    = excluded.pending,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query, state.UserID, string(payload), pending, now)
	return err
}

// Delete removes a user's record. Used on account deletion only.
func (r *SQLiteStateRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM subscription_states WHERE user_id = ?`, userID)
	return err
}

// PendingUserIDs lists users whose persisted state awaits a remote sync.
func (r *SQLiteStateRepository) PendingUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM subscription_states WHERE pending = 1 ORDER BY user_id`)
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

var _ domain.StateRepository = (*SQLiteStateRepository)(nil)
