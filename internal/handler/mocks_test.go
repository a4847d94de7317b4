package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/recycling-rewards/internal/middleware"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// mockTokenService implements TokenServiceInterface for testing.
type mockTokenService struct {
	redeemFn   func(ctx context.Context, userID, qrData string) (*model.RedeemResult, error)
	getTokenFn func(ctx context.Context, id string) (*model.TokenResponse, error)
}

func (m *mockTokenService) Redeem(ctx context.Context, userID, qrData string) (*model.RedeemResult, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, userID, qrData)
	}
	return &model.RedeemResult{}, nil
}

func (m *mockTokenService) GetToken(ctx context.Context, id string) (*model.TokenResponse, error) {
	if m.getTokenFn != nil {
		return m.getTokenFn(ctx, id)
	}
	return &model.TokenResponse{}, nil
}

func (m *mockTokenService) PointTable() model.PointTable {
	return model.DefaultPointTable()
}

// mockAdminService implements AdminServiceInterface for testing.
type mockAdminService struct {
	mintFn       func(ctx context.Context, req *model.MintTokenRequest) (*model.TokenResponse, error)
	mintBulkFn   func(ctx context.Context, category string, count int) (*model.BulkMintResult, error)
	listTokensFn func(ctx context.Context, limit int) ([]model.Token, error)
	statsFn      func(ctx context.Context) (*model.Stats, error)
}

func (m *mockAdminService) Mint(ctx context.Context, req *model.MintTokenRequest) (*model.TokenResponse, error) {
	if m.mintFn != nil {
		return m.mintFn(ctx, req)
	}
	return &model.TokenResponse{Token: model.Token{ID: req.ID, Category: req.Category}}, nil
}

func (m *mockAdminService) MintBulk(ctx context.Context, category string, count int) (*model.BulkMintResult, error) {
	if m.mintBulkFn != nil {
		return m.mintBulkFn(ctx, category, count)
	}
	return &model.BulkMintResult{Category: category, Requested: count, Minted: count}, nil
}

func (m *mockAdminService) ListTokens(ctx context.Context, limit int) ([]model.Token, error) {
	if m.listTokensFn != nil {
		return m.listTokensFn(ctx, limit)
	}
	return []model.Token{}, nil
}

func (m *mockAdminService) Stats(ctx context.Context) (*model.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &model.Stats{}, nil
}

// mockUserService implements UserServiceInterface for testing.
type mockUserService struct {
	profileFn       func(ctx context.Context, userID string) (*model.Profile, error)
	updateProfileFn func(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.User, error)
	couponsFn       func(ctx context.Context, userID string) ([]model.Coupon, error)
	leaderboardFn   func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	rankFn          func(ctx context.Context, userID string) (*model.RankResponse, error)
	listUsersFn     func(ctx context.Context, limit int) ([]model.User, error)
}

func (m *mockUserService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return &model.Profile{User: model.User{ID: userID}}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, req)
	}
	return &model.User{ID: userID, Name: req.Name, Address: req.Address}, nil
}

func (m *mockUserService) Coupons(ctx context.Context, userID string) ([]model.Coupon, error) {
	if m.couponsFn != nil {
		return m.couponsFn(ctx, userID)
	}
	return []model.Coupon{}, nil
}

func (m *mockUserService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if m.leaderboardFn != nil {
		return m.leaderboardFn(ctx, limit)
	}
	return []model.LeaderboardEntry{}, nil
}

func (m *mockUserService) Rank(ctx context.Context, userID string) (*model.RankResponse, error) {
	if m.rankFn != nil {
		return m.rankFn(ctx, userID)
	}
	return &model.RankResponse{UserID: userID, Rank: 1}, nil
}

func (m *mockUserService) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, limit)
	}
	return []model.User{}, nil
}

// mockRewardService implements RewardServiceInterface for testing.
type mockRewardService struct {
	resetBinFn          func(ctx context.Context, userID string) error
	retryNotificationFn func(ctx context.Context, userID string) (*model.RewardOutcome, error)
}

func (m *mockRewardService) ResetBin(ctx context.Context, userID string) error {
	if m.resetBinFn != nil {
		return m.resetBinFn(ctx, userID)
	}
	return nil
}

func (m *mockRewardService) RetryNotification(ctx context.Context, userID string) (*model.RewardOutcome, error) {
	if m.retryNotificationFn != nil {
		return m.retryNotificationFn(ctx, userID)
	}
	return &model.RewardOutcome{Notified: true}, nil
}

// asUser stands in for the auth middleware.
func asUser(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, userID)
		return c.Next()
	}
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), string(body))
}
