package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/recycling-rewards/internal/model"
	"github.com/fairyhunter13/recycling-rewards/internal/service"
	"github.com/fairyhunter13/recycling-rewards/pkg/database"
)

const userColumns = `id, name, address, points, bin_points, reward_state, crossings, created_at, updated_at`

// UserRepository provides data access for user balances using pgx.
type UserRepository struct {
	pool PoolInterface
}

// NewUserRepository creates a new UserRepository with the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// NewUserRepositoryWithPool creates a new UserRepository with a custom pool interface.
// This is primarily used for testing.
func NewUserRepositoryWithPool(pool PoolInterface) *UserRepository {
	return &UserRepository{pool: pool}
}

// AddPoints atomically adds points to both points and bin_points, creating
// the user on first credit. The row stays locked until tx ends.
func (r *UserRepository) AddPoints(ctx context.Context, tx database.TxQuerier, userID string, points int) (*model.Settlement, error) {
	query := `INSERT INTO users (id, points, bin_points) VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET
			points = users.points + EXCLUDED.points,
			bin_points = users.bin_points + EXCLUDED.bin_points,
			updated_at = NOW()
		RETURNING points, bin_points`

	var s model.Settlement
	if err := tx.QueryRow(ctx, query, userID, points).Scan(&s.TotalPoints, &s.BinPoints); err != nil {
		return nil, fmt.Errorf("add %d points to %s: %w", points, userID, err)
	}
	return &s, nil
}

// AppendRedemption records the token in the user's redemption list.
// A token can appear only once; a repeat returns service.ErrAlreadyRedeemed.
func (r *UserRepository) AppendRedemption(ctx context.Context, tx database.TxQuerier, userID, tokenID string, points int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO redemptions (token_id, user_id, points) VALUES ($1, $2, $3)`,
		tokenID, userID, points)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return service.ErrAlreadyRedeemed
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// ClaimCrossing moves a filling user whose bin reached threshold to
// notifying and returns the new crossing number. It reports false when the
// user is already notifying or below threshold.
func (r *UserRepository) ClaimCrossing(ctx context.Context, tx database.TxQuerier, userID string, threshold int) (int, bool, error) {
	query := `UPDATE users SET reward_state = 'notifying', crossings = crossings + 1, updated_at = NOW()
		WHERE id = $1 AND reward_state = 'filling' AND bin_points >= $2
		RETURNING crossings`

	var crossing int
	err := tx.QueryRow(ctx, query, userID, threshold).Scan(&crossing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("claim crossing for %s: %w", userID, err)
	}
	return crossing, true, nil
}

// ResetBin zeroes bin_points of a notifying user and returns it to filling.
// It reports false when the user is not notifying.
func (r *UserRepository) ResetBin(ctx context.Context, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET bin_points = 0, reward_state = 'filling', updated_at = NOW()
		WHERE id = $1 AND reward_state = 'notifying'`,
		userID)
	if err != nil {
		return false, fmt.Errorf("reset bin for %s: %w", userID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID retrieves a user.
// Returns nil, nil if the user is not found.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// UpsertProfile sets name and address, creating the user if needed.
func (r *UserRepository) UpsertProfile(ctx context.Context, userID, name, address string) (*model.User, error) {
	query := `INSERT INTO users (id, name, address) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address, updated_at = NOW()
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, userID, name, address))
	if err != nil {
		return nil, fmt.Errorf("upsert profile %s: %w", userID, err)
	}
	return u, nil
}

// RedeemedTokens returns the ids of tokens the user redeemed, in order.
// On success, returns an empty slice (not nil) when there are none.
func (r *UserRepository) RedeemedTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT token_id FROM redemptions WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("get redemptions for %s: %w", userID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan redemption token_id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}
	return ids, nil
}

// Top returns the users with the most points. Tied users share a rank.
func (r *UserRepository) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT RANK() OVER (ORDER BY points DESC), id, name, points
		FROM users ORDER BY points DESC, id ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.UserID, &e.Name, &e.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return entries, nil
}

// List returns users ordered by lifetime points, highest first.
// On success, returns an empty slice (not nil) when there are none.
func (r *UserRepository) List(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY points DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

// CountAbove counts users with strictly more than points.
func (r *UserRepository) CountAbove(ctx context.Context, points int) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE points > $1`, points).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users above %d: %w", points, err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var state string
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Address,
		&u.Points,
		&u.BinPoints,
		&state,
		&u.Crossings,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.RewardState = model.RewardState(state)
	return &u, nil
}
