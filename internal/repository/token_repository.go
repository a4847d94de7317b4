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

const tokenColumns = `id, category, point_value, redeemed, redeemed_by, redeemed_at, minted_at`

// TokenRepository provides data access for tokens using pgx.
type TokenRepository struct {
	pool PoolInterface
}

// NewTokenRepository creates a new TokenRepository with the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// NewTokenRepositoryWithPool creates a new TokenRepository with a custom pool interface.
// This is primarily used for testing.
func NewTokenRepositoryWithPool(pool PoolInterface) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Insert inserts a new unredeemed token and fills in MintedAt.
// Returns service.ErrDuplicateID if the id already exists.
func (r *TokenRepository) Insert(ctx context.Context, t *model.Token) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tokens (id, category, point_value) VALUES ($1, $2, $3) RETURNING minted_at`,
		t.ID, t.Category, t.PointValue).Scan(&t.MintedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return service.ErrDuplicateID
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// InsertBatch copies tokens into the table inside tx. A duplicate id aborts
// the whole copy with service.ErrDuplicateID.
func (r *TokenRepository) InsertBatch(ctx context.Context, tx pgx.Tx, tokens []model.Token) (int64, error) {
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"tokens"},
		[]string{"id", "category", "point_value", "minted_at"},
		pgx.CopyFromSlice(len(tokens), func(i int) ([]any, error) {
			t := tokens[i]
			return []any{t.ID, t.Category, t.PointValue, t.MintedAt}, nil
		}),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, service.ErrDuplicateID
		}
		return 0, fmt.Errorf("copy tokens: %w", err)
	}
	return n, nil
}

// InsertIfAbsent creates the token unless the id exists. It reports whether
// a row was created. Concurrent callers for one id block on the unique index
// until the first transaction finishes.
func (r *TokenRepository) InsertIfAbsent(ctx context.Context, tx database.TxQuerier, t *model.Token) (bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO tokens (id, category, point_value) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Category, t.PointValue)
	if err != nil {
		return false, fmt.Errorf("insert token %s if absent: %w", t.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRedeemed flips redeemed from false to true in one conditional update.
// Returns nil, nil when no unredeemed token with that id exists.
func (r *TokenRepository) MarkRedeemed(ctx context.Context, tx database.TxQuerier, id, userID string) (*model.Token, error) {
	query := `UPDATE tokens SET redeemed = TRUE, redeemed_by = $2, redeemed_at = NOW()
		WHERE id = $1 AND redeemed = FALSE
		RETURNING ` + tokenColumns

	t, err := scanToken(tx.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("mark token %s redeemed: %w", id, err)
	}
	return t, nil
}

// Lookup reads a token inside tx.
// Returns nil, nil if the token is not found.
func (r *TokenRepository) Lookup(ctx context.Context, tx database.TxQuerier, id string) (*model.Token, error) {
	return getToken(ctx, tx, id)
}

// GetByID retrieves a token by id.
// Returns nil, nil if the token is not found (service layer handles this).
func (r *TokenRepository) GetByID(ctx context.Context, id string) (*model.Token, error) {
	return getToken(ctx, r.pool, id)
}

// List returns the newest tokens first.
func (r *TokenRepository) List(ctx context.Context, limit int) ([]model.Token, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens ORDER BY minted_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	tokens := []model.Token{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// Stats counts tokens, users and coupons in one round trip.
func (r *TokenRepository) Stats(ctx context.Context) (*model.Stats, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM tokens),
		(SELECT COUNT(*) FROM tokens WHERE redeemed),
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM coupons)`

	var s model.Stats
	if err := r.pool.QueryRow(ctx, query).Scan(&s.TotalTokens, &s.Redeemed, &s.Users, &s.CouponsIssued); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	s.Unredeemed = s.TotalTokens - s.Redeemed
	return &s, nil
}

func getToken(ctx context.Context, q database.TxQuerier, id string) (*model.Token, error) {
	t, err := scanToken(q.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token %s: %w", id, err)
	}
	return t, nil
}

func scanToken(row pgx.Row) (*model.Token, error) {
	var t model.Token
	err := row.Scan(
		&t.ID,
		&t.Category,
		&t.PointValue,
		&t.Redeemed,
		&t.RedeemedBy,
		&t.RedeemedAt,
		&t.MintedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
