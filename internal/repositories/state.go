package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/shared"
)

// StateRepository stores single-use OAuth state nonces.
type StateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewStateRepository creates a new [StateRepository] with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db, now: time.Now}
}

// Create records nonce as valid for ttl.
func (r *StateRepository) Create(ctx context.Context, nonce string, ttl time.Duration) (*models.OAuthState, error) {
	now := r.now().UTC()
	state := &models.OAuthState{
		ID:        shared.GenerateID(),
		Nonce:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO oauth_states (id, nonce, created_at, expires_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, state.ID, state.Nonce, state.CreatedAt, state.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to insert oauth state: %w", err)
	}

	return state, nil
}

// Consume deletes nonce and reports whether it was present and unexpired.
//
// A nonce is removed on first use even when expired, so it can never be replayed.
func (r *StateRepository) Consume(ctx context.Context, nonce string) (*models.OAuthState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	state := &models.OAuthState{Nonce: nonce}
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at, expires_at FROM oauth_states WHERE nonce = ?`, nonce,
	).Scan(&state.ID, &state.CreatedAt, &state.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidState, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query oauth state: %w", err)
	}

	n, err := execAffected(ctx, tx, `DELETE FROM oauth_states WHERE id = ?`, state.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete oauth state: %w", err)
	}
	if n != 1 {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidState, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit oauth state: %w", err)
	}

	if state.Expired(r.now()) {
		return nil, fmt.Errorf("%w: nonce expired at %s", shared.ErrInvalidState, state.ExpiresAt.Format(time.RFC3339))
	}

	return state, nil
}

// PurgeExpired deletes every nonce whose deadline has passed and returns how many were removed.
func (r *StateRepository) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := execAffected(ctx, r.db, `DELETE FROM oauth_states WHERE expires_at <= ?`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge oauth states: %w", err)
	}
	return n, nil
}

// Count returns the number of stored nonces.
func (r *StateRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM oauth_states`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count oauth states: %w", err)
	}
	return n, nil
}
