package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
	"github.com/fairyhunter13/recycling-rewards/internal/metrics"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
	"github.com/fairyhunter13/recycling-rewards/internal/token"
	"github.com/fairyhunter13/recycling-rewards/pkg/database"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// TokenRepositoryInterface defines the interface for token data access.
type TokenRepositoryInterface interface {
	Insert(ctx context.Context, t *model.Token) error
	InsertBatch(ctx context.Context, tx pgx.Tx, tokens []model.Token) (int64, error)
	InsertIfAbsent(ctx context.Context, tx database.TxQuerier, t *model.Token) (bool, error)
	MarkRedeemed(ctx context.Context, tx database.TxQuerier, id, userID string) (*model.Token, error)
	Lookup(ctx context.Context, tx database.TxQuerier, id string) (*model.Token, error)
	GetByID(ctx context.Context, id string) (*model.Token, error)
	List(ctx context.Context, limit int) ([]model.Token, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// RewardEvaluator is the reward trigger as seen from the redeem flow.
type RewardEvaluator interface {
	Evaluate(ctx context.Context, tx database.TxQuerier, userID string, binPoints int) (*model.Coupon, error)
	Dispatch(ctx context.Context, userID string, coupon *model.Coupon) *model.RewardOutcome
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TokenService mints tokens and redeems scanned payloads.
type TokenService struct {
	pool      TxBeginner
	tokenRepo TokenRepositoryInterface
	userRepo  UserRepositoryInterface
	rewards   RewardEvaluator
	cfg       config.LedgerConfig
	points    model.PointTable
	maxPoints int
	metrics   *metrics.Metrics
}

// NewTokenService creates a new TokenService with the given pool and dependencies.
func NewTokenService(
	pool *pgxpool.Pool,
	tokenRepo TokenRepositoryInterface,
	userRepo UserRepositoryInterface,
	rewards RewardEvaluator,
	cfg config.LedgerConfig,
	m *metrics.Metrics,
) *TokenService {
	return NewTokenServiceWithTxBeginner(pool, tokenRepo, userRepo, rewards, cfg, m)
}

// NewTokenServiceWithTxBeginner creates a TokenService with a custom TxBeginner.
// Primarily used for testing.
func NewTokenServiceWithTxBeginner(
	pool TxBeginner,
	tokenRepo TokenRepositoryInterface,
	userRepo UserRepositoryInterface,
	rewards RewardEvaluator,
	cfg config.LedgerConfig,
	m *metrics.Metrics,
) *TokenService {
	points := cfg.Points()
	return &TokenService{
		pool:      pool,
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		rewards:   rewards,
		cfg:       cfg,
		points:    points,
		maxPoints: points.Max(),
		metrics:   m,
	}
}

// Mint creates one token. An empty id is replaced by a generated one.
// Returns ErrInvalidCategory for a category missing from the point table and
// ErrDuplicateID if the id exists.
func (s *TokenService) Mint(ctx context.Context, req *model.MintTokenRequest) (*model.TokenResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	category, points, err := s.lookupCategory(req.Category)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		if id, err = newTokenID("item"); err != nil {
			return nil, err
		}
	}
	payload, err := token.Encode(id, category, points)
	if err != nil {
		return nil, err
	}

	t := &model.Token{ID: id, Category: category, PointValue: points}
	if err := s.tokenRepo.Insert(ctx, t); err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return nil, ErrDuplicateID
		}
		return nil, storeErr("insert token", err)
	}
	s.metrics.TokensMinted(category, 1)

	return &model.TokenResponse{Token: *t, Payload: payload}, nil
}

// MintBulk creates count tokens of one category in a single transaction.
// The batch is all-or-nothing: on any failure nothing is minted.
func (s *TokenService) MintBulk(ctx context.Context, category string, count int) (*model.BulkMintResult, error) {
	if count < 1 || count > s.cfg.BulkMax {
		return nil, ErrInvalidCount
	}
	category, points, err := s.lookupCategory(category)
	if err != nil {
		return nil, err
	}

	mintedAt := time.Now().UTC()
	tokens := make([]model.Token, count)
	responses := make([]model.TokenResponse, count)
	for i := range tokens {
		id, err := newTokenID("bulk")
		if err != nil {
			return nil, err
		}
		payload, err := token.Encode(id, category, points)
		if err != nil {
			return nil, err
		}
		tokens[i] = model.Token{ID: id, Category: category, PointValue: points, MintedAt: mintedAt}
		responses[i] = model.TokenResponse{Token: tokens[i], Payload: payload}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	n, err := s.tokenRepo.InsertBatch(ctx, tx, tokens)
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return nil, ErrDuplicateID
		}
		return nil, storeErr("insert batch", err)
	}
	if n != int64(count) {
		return nil, fmt.Errorf("insert batch: wrote %d of %d tokens", n, count)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit", err)
	}
	s.metrics.TokensMinted(category, count)

	return &model.BulkMintResult{
		Category:   category,
		PointValue: points,
		Requested:  count,
		Minted:     count,
		Tokens:     responses,
	}, nil
}

// Redeem decodes a scanned payload and, in one transaction, marks the token
// redeemed by userID, credits the user and evaluates the reward trigger.
//
// The redeemed flag flips through a single conditional update, so of any
// number of concurrent redeems for one token exactly one succeeds and the
// rest get *AlreadyRedeemedError. Store failures are returned wrapped in
// ErrTransientStore and are never retried here; the caller should re-query
// the token before trying again.
//
// A collection notification is attempted after commit; its failure is only
// reported on the result's Reward.
func (s *TokenService) Redeem(ctx context.Context, userID, qrData string) (*model.RedeemResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}
	payload, err := token.Parse(qrData, s.cfg.AcceptLegacy)
	if err != nil {
		s.metrics.Redemption(metrics.OutcomeMalformed)
		return nil, err
	}

	result, coupon, err := s.redeem(ctx, userID, payload)
	if err != nil {
		s.metrics.Redemption(redemptionOutcome(err))
		return nil, err
	}
	s.metrics.Redemption(metrics.OutcomeRedeemed)
	s.metrics.PointsCredited(result.PointsAwarded)

	if coupon != nil {
		result.Reward = s.rewards.Dispatch(ctx, userID, coupon)
	}
	return result, nil
}

func (s *TokenService) redeem(ctx context.Context, userID string, payload token.Payload) (*model.RedeemResult, *model.Coupon, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, storeErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Create never-minted tokens on first scan
	if s.cfg.LazyMint && !payload.Legacy() {
		if err := s.lazyMint(ctx, tx, payload); err != nil {
			return nil, nil, err
		}
	}

	// 2. Flip redeemed false -> true
	t, err := s.tokenRepo.MarkRedeemed(ctx, tx, payload.ID, userID)
	if err != nil {
		return nil, nil, storeErr("mark redeemed", err)
	}
	if t == nil {
		return nil, nil, s.redeemConflict(ctx, tx, payload.ID, userID)
	}

	// 3. Credit the user
	settlement, err := s.settle(ctx, tx, userID, t)
	if err != nil {
		return nil, nil, err
	}

	// 4. Claim a reward crossing
	coupon, err := s.rewards.Evaluate(ctx, tx, userID, settlement.BinPoints)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate reward: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error().Err(err).Str("token_id", t.ID).Str("user_id", userID).
			Msg("redeem commit failed, token state must be re-queried")
		return nil, nil, fmt.Errorf("commit redeem of %s: %w: %w", t.ID, ErrTransientStore, err)
	}

	return &model.RedeemResult{
		Token:         *t,
		PointsAwarded: t.PointValue,
		TotalPoints:   settlement.TotalPoints,
		BinPoints:     settlement.BinPoints,
	}, coupon, nil
}

// settle increments points and bin_points and appends the token to the
// user's redemptions. The upsert locks the user row, so concurrent
// settlements for one user serialize.
func (s *TokenService) settle(ctx context.Context, tx database.TxQuerier, userID string, t *model.Token) (*model.Settlement, error) {
	settlement, err := s.userRepo.AddPoints(ctx, tx, userID, t.PointValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlementFailed, storeErr("add points", err))
	}
	if err := s.userRepo.AppendRedemption(ctx, tx, userID, t.ID, t.PointValue); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlementFailed, storeErr("append redemption", err))
	}
	return settlement, nil
}

func (s *TokenService) lazyMint(ctx context.Context, tx database.TxQuerier, payload token.Payload) error {
	category := model.NormalizeCategory(payload.Category)
	points, ok := s.points[category]
	if !ok {
		// Unknown categories are never created; the redeem reports not found.
		return nil
	}
	if s.cfg.LazyTrustPayload {
		// A printed value above every table entry is forged or corrupt.
		if payload.PointValue > s.maxPoints {
			return fmt.Errorf("%w: %d exceeds table maximum %d", token.ErrInvalidPointValue, payload.PointValue, s.maxPoints)
		}
		points = payload.PointValue
	}

	created, err := s.tokenRepo.InsertIfAbsent(ctx, tx, &model.Token{
		ID:         payload.ID,
		Category:   category,
		PointValue: points,
	})
	if err != nil {
		return storeErr("lazy mint", err)
	}
	if created {
		s.metrics.TokensMinted(category, 1)
		log.Info().Str("token_id", payload.ID).Str("category", category).Msg("token created on first scan")
	}
	return nil
}

// redeemConflict explains why the conditional update matched no row.
func (s *TokenService) redeemConflict(ctx context.Context, tx database.TxQuerier, id, userID string) error {
	existing, err := s.tokenRepo.Lookup(ctx, tx, id)
	if err != nil {
		return storeErr("lookup token", err)
	}
	if existing == nil {
		return ErrTokenNotFound
	}
	if !existing.Redeemed || existing.RedeemedBy == nil || existing.RedeemedAt == nil {
		return fmt.Errorf("token %s changed during redeem: %w", id, ErrTransientStore)
	}
	return &AlreadyRedeemedError{
		TokenID:    id,
		RedeemedBy: *existing.RedeemedBy,
		RedeemedAt: *existing.RedeemedAt,
		ByCaller:   *existing.RedeemedBy == userID,
	}
}

// GetToken returns the current state of a token.
func (s *TokenService) GetToken(ctx context.Context, id string) (*model.TokenResponse, error) {
	t, err := s.tokenRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get token", err)
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	payload, err := token.Encode(t.ID, t.Category, t.PointValue)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{Token: *t, Payload: payload}, nil
}

// ListTokens returns the most recently minted tokens.
func (s *TokenService) ListTokens(ctx context.Context, limit int) ([]model.Token, error) {
	tokens, err := s.tokenRepo.List(ctx, clampLimit(limit, defaultHistoryLimit, maxHistoryLimit))
	if err != nil {
		return nil, storeErr("list tokens", err)
	}
	return tokens, nil
}

// Stats returns ledger usage counters.
func (s *TokenService) Stats(ctx context.Context) (*model.Stats, error) {
	stats, err := s.tokenRepo.Stats(ctx)
	if err != nil {
		return nil, storeErr("get stats", err)
	}
	return stats, nil
}

// PointTable returns the point table the service mints with.
func (s *TokenService) PointTable() model.PointTable {
	return s.points
}

func (s *TokenService) lookupCategory(category string) (string, int, error) {
	c := model.NormalizeCategory(category)
	points, ok := s.points[c]
	if !ok {
		return "", 0, ErrInvalidCategory
	}
	return c, points, nil
}

// newTokenID returns prefix-<uuidv7>. Version 7 ids are time ordered and
// carry 74 random bits, so ids minted in the same millisecond stay distinct.
func newTokenID(prefix string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return prefix + "-" + id.String(), nil
}

func redemptionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyRedeemed):
		return metrics.OutcomeAlreadyRedeemed
	case errors.Is(err, ErrTokenNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
