package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/recycling-rewards/internal/model"
	"github.com/fairyhunter13/recycling-rewards/internal/service"
)

func userRow(id string, points, bin int, state string, crossings int) []any {
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return []any{id, "Asha", "12 Green Lane", points, bin, state, crossings, ts, ts}
}

func TestUserRepository_AddPoints(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	tx := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			capturedArgs = args
			return &mockRow{values: []any{25, 7}}
		},
	}
	repo := NewUserRepositoryWithPool(&mockPool{})

	s, err := repo.AddPoints(context.Background(), tx, "userA", 5)

	require.NoError(t, err)
	assert.Equal(t, &model.Settlement{TotalPoints: 25, BinPoints: 7}, s)
	assert.Contains(t, capturedSQL, "ON CONFLICT (id) DO UPDATE")
	assert.Contains(t, capturedSQL, "points = users.points + EXCLUDED.points")
	assert.Contains(t, capturedSQL, "bin_points = users.bin_points + EXCLUDED.bin_points")
	assert.Equal(t, []any{"userA", 5}, capturedArgs)
}

func TestUserRepository_AddPoints_Error(t *testing.T) {
	tx := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{err: &pgconn.PgError{Code: "40P01"}}
		},
	}
	repo := NewUserRepositoryWithPool(&mockPool{})

	_, err := repo.AddPoints(context.Background(), tx, "userA", 5)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40P01", pgErr.Code)
	assert.Contains(t, err.Error(), "add 5 points to userA")
}

func TestUserRepository_AppendRedemption(t *testing.T) {
	var capturedArgs []any
	tx := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			assert.Contains(t, sql, "INSERT INTO redemptions")
			capturedArgs = arguments
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	repo := NewUserRepositoryWithPool(&mockPool{})

	err := repo.AppendRedemption(context.Background(), tx, "userA", "x1", 5)

	require.NoError(t, err)
	assert.Equal(t, []any{"x1", "userA", 5}, capturedArgs)
}

func TestUserRepository_AppendRedemption_Duplicate(t *testing.T) {
	tx := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
		},
	}
	repo := NewUserRepositoryWithPool(&mockPool{})

	err := repo.AppendRedemption(context.Background(), tx, "userA", "x1", 5)

	assert.ErrorIs(t, err, service.ErrAlreadyRedeemed)
}

func TestUserRepository_ClaimCrossing(t *testing.T) {
	var capturedSQL string
	tx := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			assert.Equal(t, []any{"userA", 10}, args)
			return &mockRow{values: []any{3}}
		},
	}
	repo := NewUserRepositoryWithPool(&mockPool{})

	crossing, claimed, err := repo.ClaimCrossing(context.Background(), tx, "userA", 10)

	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 3, crossing)
	assert.Contains(t, capturedSQL, "reward_state = 'filling' AND bin_points >= $2")
}

func TestUserRepository_ClaimCrossing_NotEligible(t *testing.T) {
	repo := NewUserRepositoryWithPool(&mockPool{})

	crossing, claimed, err := repo.ClaimCrossing(context.Background(), &mockPool{}, "userA", 10)

	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, crossing)
}

func TestUserRepository_ResetBin(t *testing.T) {
	for _, tc := range []struct {
		tag  string
		want bool
	}{
		{"UPDATE 1", true},
		{"UPDATE 0", false},
	} {
		mock := &mockPool{
			execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
				assert.Contains(t, sql, "WHERE id = $1 AND reward_state = 'notifying'")
				return pgconn.NewCommandTag(tc.tag), nil
			},
		}
		repo := NewUserRepositoryWithPool(mock)

		reset, err := repo.ResetBin(context.Background(), "userA")

		require.NoError(t, err)
		assert.Equal(t, tc.want, reset, tc.tag)
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			if args[0] == "userA" {
				return &mockRow{values: userRow("userA", 13, 3, "notifying", 1)}
			}
			return &mockRow{err: pgx.ErrNoRows}
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	u, err := repo.GetByID(context.Background(), "userA")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.RewardNotifying, u.RewardState)
	assert.Equal(t, 13, u.Points)
	assert.Equal(t, 3, u.BinPoints)

	u, err = repo.GetByID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_UpsertProfile(t *testing.T) {
	var capturedArgs []any
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedArgs = args
			assert.Contains(t, sql, "ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name")
			return &mockRow{values: userRow("userA", 0, 0, "filling", 0)}
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	u, err := repo.UpsertProfile(context.Background(), "userA", "Asha", "12 Green Lane")

	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, []any{"userA", "Asha", "12 Green Lane"}, capturedArgs)
}

func TestUserRepository_RedeemedTokens(t *testing.T) {
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &mockRows{data: [][]any{{"x1"}, {"x2"}}}, nil
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	ids, err := repo.RedeemedTokens(context.Background(), "userA")

	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, ids)
}

func TestUserRepository_RedeemedTokens_Empty(t *testing.T) {
	repo := NewUserRepositoryWithPool(&mockPool{})

	ids, err := repo.RedeemedTokens(context.Background(), "userA")

	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestUserRepository_RedeemedTokens_ScanError(t *testing.T) {
	scanErr := errors.New("bad column")
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &mockRows{data: [][]any{{"x1"}}, errOnScan: scanErr}, nil
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	_, err := repo.RedeemedTokens(context.Background(), "userA")

	assert.ErrorIs(t, err, scanErr)
}

func TestUserRepository_Top(t *testing.T) {
	var capturedSQL string
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			capturedSQL = sql
			assert.Equal(t, []any{3}, args)
			return &mockRows{data: [][]any{
				{1, "userB", "Bo", 40},
				{1, "userC", "Cy", 40},
				{3, "userA", "Asha", 12},
			}}, nil
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	entries, err := repo.Top(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.LeaderboardEntry{Rank: 1, UserID: "userC", Name: "Cy", Points: 40}, entries[1])
	assert.Equal(t, 3, entries[2].Rank)
	assert.Contains(t, capturedSQL, "RANK() OVER (ORDER BY points DESC)")
}

func TestUserRepository_List(t *testing.T) {
	var capturedSQL string
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			capturedSQL = sql
			assert.Equal(t, []any{50}, args)
			return &mockRows{data: [][]any{
				userRow("userB", 40, 10, "notifying", 2),
				userRow("userA", 12, 2, "filling", 0),
			}}, nil
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	users, err := repo.List(context.Background(), 50)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "userB", users[0].ID)
	assert.Equal(t, model.RewardNotifying, users[0].RewardState)
	assert.Equal(t, 2, users[0].Crossings)
	assert.Equal(t, 12, users[1].Points)
	assert.Contains(t, capturedSQL, "ORDER BY points DESC, id ASC LIMIT $1")
}

func TestUserRepository_List_Empty(t *testing.T) {
	repo := NewUserRepositoryWithPool(&mockPool{})

	users, err := repo.List(context.Background(), 10)

	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserRepository_List_QueryError(t *testing.T) {
	queryErr := errors.New("connection reset")
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, queryErr
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	_, err := repo.List(context.Background(), 10)

	assert.ErrorIs(t, err, queryErr)
}

func TestUserRepository_CountAbove(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			assert.Contains(t, sql, "points > $1")
			return &mockRow{values: []any{int64(4)}}
		},
	}
	repo := NewUserRepositoryWithPool(mock)

	n, err := repo.CountAbove(context.Background(), 20)

	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
