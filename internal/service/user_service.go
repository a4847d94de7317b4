package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairyhunter13/recycling-rewards/internal/model"
	"github.com/fairyhunter13/recycling-rewards/pkg/database"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultUserListLimit    = 100
	maxUserListLimit        = 1000
)

// UserRepositoryInterface defines the interface for user data access.
type UserRepositoryInterface interface {
	AddPoints(ctx context.Context, tx database.TxQuerier, userID string, points int) (*model.Settlement, error)
	AppendRedemption(ctx context.Context, tx database.TxQuerier, userID, tokenID string, points int) error
	ClaimCrossing(ctx context.Context, tx database.TxQuerier, userID string, threshold int) (int, bool, error)
	ResetBin(ctx context.Context, userID string) (bool, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	UpsertProfile(ctx context.Context, userID, name, address string) (*model.User, error)
	RedeemedTokens(ctx context.Context, userID string) ([]string, error)
	Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	List(ctx context.Context, limit int) ([]model.User, error)
	CountAbove(ctx context.Context, points int) (int, error)
}

// CouponRepositoryInterface defines the interface for coupon data access.
type CouponRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) error
	ListByUser(ctx context.Context, userID string) ([]model.Coupon, error)
	Latest(ctx context.Context, userID string) (*model.Coupon, error)
}

// UserService provides profile and leaderboard reads.
type UserService struct {
	userRepo   UserRepositoryInterface
	couponRepo CouponRepositoryInterface
}

// NewUserService creates a new UserService.
func NewUserService(userRepo UserRepositoryInterface, couponRepo CouponRepositoryInterface) *UserService {
	return &UserService{userRepo: userRepo, couponRepo: couponRepo}
}

// Profile returns the user's balances, redeemed tokens in redemption order,
// and coupons. A user without any activity gets an empty profile.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if user == nil {
		user = &model.User{ID: userID, RewardState: model.RewardFilling}
	}

	tokens, err := s.userRepo.RedeemedTokens(ctx, userID)
	if err != nil {
		return nil, storeErr("get redeemed tokens", err)
	}
	coupons, err := s.couponRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("get coupons", err)
	}

	return &model.Profile{User: *user, RedeemedTokens: tokens, Coupons: coupons}, nil
}

// UpdateProfile sets the name and address used in collection requests.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.User, error) {
	if strings.TrimSpace(userID) == "" || req == nil {
		return nil, ErrInvalidRequest
	}
	user, err := s.userRepo.UpsertProfile(ctx, userID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Address))
	if err != nil {
		return nil, storeErr("upsert profile", err)
	}
	return user, nil
}

// Coupons lists the coupons issued to a user, oldest first.
func (s *UserService) Coupons(ctx context.Context, userID string) ([]model.Coupon, error) {
	coupons, err := s.couponRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list coupons", err)
	}
	return coupons, nil
}

// Leaderboard returns the top users by lifetime points.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	entries, err := s.userRepo.Top(ctx, clampLimit(limit, defaultLeaderboardLimit, maxLeaderboardLimit))
	if err != nil {
		return nil, storeErr("get leaderboard", err)
	}
	return entries, nil
}

// ListUsers returns users with their balances and reward state, highest
// points first.
func (s *UserService) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	users, err := s.userRepo.List(ctx, clampLimit(limit, defaultUserListLimit, maxUserListLimit))
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

// Rank returns the 1-based position of a user; users tied on points share a rank.
func (s *UserService) Rank(ctx context.Context, userID string) (*model.RankResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	above, err := s.userRepo.CountAbove(ctx, user.Points)
	if err != nil {
		return nil, storeErr("count users above", err)
	}
	return &model.RankResponse{UserID: userID, Rank: above + 1, Points: user.Points}, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// storeErr wraps a repository failure, marking retryable ones with
// ErrTransientStore.
func storeErr(op string, err error) error {
	if database.IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTransientStore, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
