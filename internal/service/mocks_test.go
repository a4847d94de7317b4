package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/recycling-rewards/internal/model"
	"github.com/fairyhunter13/recycling-rewards/pkg/database"
)

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
	committed  bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// mockTokenRepository is a mock implementation of TokenRepositoryInterface.
type mockTokenRepository struct {
	insertFn         func(ctx context.Context, t *model.Token) error
	insertBatchFn    func(ctx context.Context, tx pgx.Tx, tokens []model.Token) (int64, error)
	insertIfAbsentFn func(ctx context.Context, tx database.TxQuerier, t *model.Token) (bool, error)
	markRedeemedFn   func(ctx context.Context, tx database.TxQuerier, id, userID string) (*model.Token, error)
	lookupFn         func(ctx context.Context, tx database.TxQuerier, id string) (*model.Token, error)
	getByIDFn        func(ctx context.Context, id string) (*model.Token, error)
	listFn           func(ctx context.Context, limit int) ([]model.Token, error)
	statsFn          func(ctx context.Context) (*model.Stats, error)
}

func (m *mockTokenRepository) Insert(ctx context.Context, t *model.Token) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, t)
	}
	return nil
}

func (m *mockTokenRepository) InsertBatch(ctx context.Context, tx pgx.Tx, tokens []model.Token) (int64, error) {
	if m.insertBatchFn != nil {
		return m.insertBatchFn(ctx, tx, tokens)
	}
	return int64(len(tokens)), nil
}

func (m *mockTokenRepository) InsertIfAbsent(ctx context.Context, tx database.TxQuerier, t *model.Token) (bool, error) {
	if m.insertIfAbsentFn != nil {
		return m.insertIfAbsentFn(ctx, tx, t)
	}
	return false, nil
}

func (m *mockTokenRepository) MarkRedeemed(ctx context.Context, tx database.TxQuerier, id, userID string) (*model.Token, error) {
	if m.markRedeemedFn != nil {
		return m.markRedeemedFn(ctx, tx, id, userID)
	}
	return nil, nil
}

func (m *mockTokenRepository) Lookup(ctx context.Context, tx database.TxQuerier, id string) (*model.Token, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, tx, id)
	}
	return nil, nil
}

func (m *mockTokenRepository) GetByID(ctx context.Context, id string) (*model.Token, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTokenRepository) List(ctx context.Context, limit int) ([]model.Token, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return []model.Token{}, nil
}

func (m *mockTokenRepository) Stats(ctx context.Context) (*model.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &model.Stats{}, nil
}

// mockUserRepository is a mock implementation of UserRepositoryInterface.
type mockUserRepository struct {
	addPointsFn        func(ctx context.Context, tx database.TxQuerier, userID string, points int) (*model.Settlement, error)
	appendRedemptionFn func(ctx context.Context, tx database.TxQuerier, userID, tokenID string, points int) error
	claimCrossingFn    func(ctx context.Context, tx database.TxQuerier, userID string, threshold int) (int, bool, error)
	resetBinFn         func(ctx context.Context, userID string) (bool, error)
	getByIDFn          func(ctx context.Context, userID string) (*model.User, error)
	upsertProfileFn    func(ctx context.Context, userID, name, address string) (*model.User, error)
	redeemedTokensFn   func(ctx context.Context, userID string) ([]string, error)
	topFn              func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	listFn             func(ctx context.Context, limit int) ([]model.User, error)
	countAboveFn       func(ctx context.Context, points int) (int, error)
}

func (m *mockUserRepository) AddPoints(ctx context.Context, tx database.TxQuerier, userID string, points int) (*model.Settlement, error) {
	if m.addPointsFn != nil {
		return m.addPointsFn(ctx, tx, userID, points)
	}
	return &model.Settlement{TotalPoints: points, BinPoints: points}, nil
}

func (m *mockUserRepository) AppendRedemption(ctx context.Context, tx database.TxQuerier, userID, tokenID string, points int) error {
	if m.appendRedemptionFn != nil {
		return m.appendRedemptionFn(ctx, tx, userID, tokenID, points)
	}
	return nil
}

func (m *mockUserRepository) ClaimCrossing(ctx context.Context, tx database.TxQuerier, userID string, threshold int) (int, bool, error) {
	if m.claimCrossingFn != nil {
		return m.claimCrossingFn(ctx, tx, userID, threshold)
	}
	return 0, false, nil
}

func (m *mockUserRepository) ResetBin(ctx context.Context, userID string) (bool, error) {
	if m.resetBinFn != nil {
		return m.resetBinFn(ctx, userID)
	}
	return true, nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserRepository) UpsertProfile(ctx context.Context, userID, name, address string) (*model.User, error) {
	if m.upsertProfileFn != nil {
		return m.upsertProfileFn(ctx, userID, name, address)
	}
	return &model.User{ID: userID, Name: name, Address: address}, nil
}

func (m *mockUserRepository) RedeemedTokens(ctx context.Context, userID string) ([]string, error) {
	if m.redeemedTokensFn != nil {
		return m.redeemedTokensFn(ctx, userID)
	}
	return []string{}, nil
}

func (m *mockUserRepository) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if m.topFn != nil {
		return m.topFn(ctx, limit)
	}
	return []model.LeaderboardEntry{}, nil
}

func (m *mockUserRepository) List(ctx context.Context, limit int) ([]model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return []model.User{}, nil
}

func (m *mockUserRepository) CountAbove(ctx context.Context, points int) (int, error) {
	if m.countAboveFn != nil {
		return m.countAboveFn(ctx, points)
	}
	return 0, nil
}

// mockCouponRepository is a mock implementation of CouponRepositoryInterface.
type mockCouponRepository struct {
	insertFn     func(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) error
	listByUserFn func(ctx context.Context, userID string) ([]model.Coupon, error)
	latestFn     func(ctx context.Context, userID string) (*model.Coupon, error)
}

func (m *mockCouponRepository) Insert(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, coupon)
	}
	return nil
}

func (m *mockCouponRepository) ListByUser(ctx context.Context, userID string) ([]model.Coupon, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return []model.Coupon{}, nil
}

func (m *mockCouponRepository) Latest(ctx context.Context, userID string) (*model.Coupon, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, userID)
	}
	return nil, nil
}

// mockNotifier is a mock implementation of Notifier.
type mockNotifier struct {
	notifyFn func(ctx context.Context, req model.CollectionRequest) error
}

func (m *mockNotifier) Notify(ctx context.Context, req model.CollectionRequest) error {
	if m.notifyFn != nil {
		return m.notifyFn(ctx, req)
	}
	return nil
}

// mockRewards is a mock implementation of RewardEvaluator.
type mockRewards struct {
	evaluateFn func(ctx context.Context, tx database.TxQuerier, userID string, binPoints int) (*model.Coupon, error)
	dispatchFn func(ctx context.Context, userID string, coupon *model.Coupon) *model.RewardOutcome
}

func (m *mockRewards) Evaluate(ctx context.Context, tx database.TxQuerier, userID string, binPoints int) (*model.Coupon, error) {
	if m.evaluateFn != nil {
		return m.evaluateFn(ctx, tx, userID, binPoints)
	}
	return nil, nil
}

func (m *mockRewards) Dispatch(ctx context.Context, userID string, coupon *model.Coupon) *model.RewardOutcome {
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, userID, coupon)
	}
	return &model.RewardOutcome{Coupon: *coupon, Notified: true}
}
