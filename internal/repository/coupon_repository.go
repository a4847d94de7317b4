package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/recycling-rewards/internal/model"
	"github.com/fairyhunter13/recycling-rewards/pkg/database"
)

const couponColumns = `code, user_id, crossing, issued_at, consumed`

// CouponRepository provides data access for reward coupons using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Insert records a coupon inside tx and fills in IssuedAt.
// The (user_id, crossing) unique key rejects a second coupon for one crossing.
func (r *CouponRepository) Insert(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO coupons (code, user_id, crossing) VALUES ($1, $2, $3) RETURNING issued_at`,
		coupon.Code, coupon.UserID, coupon.Crossing).Scan(&coupon.IssuedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("coupon for %s crossing %d already issued: %w", coupon.UserID, coupon.Crossing, err)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// ListByUser returns the user's coupons by crossing.
// On success, returns an empty slice (not nil) when there are none.
func (r *CouponRepository) ListByUser(ctx context.Context, userID string) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY crossing`, userID)
	if err != nil {
		return nil, fmt.Errorf("get coupons for %s: %w", userID, err)
	}
	defer rows.Close()

	coupons := []model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupon rows: %w", err)
	}
	return coupons, nil
}

// Latest returns the coupon of the user's most recent crossing.
// Returns nil, nil if the user has none.
func (r *CouponRepository) Latest(ctx context.Context, userID string) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY crossing DESC LIMIT 1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest coupon for %s: %w", userID, err)
	}
	return c, nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	if err := row.Scan(&c.Code, &c.UserID, &c.Crossing, &c.IssuedAt, &c.Consumed); err != nil {
		return nil, err
	}
	return &c, nil
}
