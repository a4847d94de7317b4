package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/middleware"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// UserServiceInterface defines the read and profile operations for users.
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.User, error)
	Coupons(ctx context.Context, userID string) ([]model.Coupon, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (*model.RankResponse, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
}

// RewardServiceInterface defines the bin operations a user can trigger.
type RewardServiceInterface interface {
	ResetBin(ctx context.Context, userID string) error
	RetryNotification(ctx context.Context, userID string) (*model.RewardOutcome, error)
}

// UserHandler handles HTTP requests for profiles, bins and the leaderboard.
type UserHandler struct {
	users     UserServiceInterface
	rewards   RewardServiceInterface
	validator *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserServiceInterface, rewards RewardServiceInterface, v *validator.Validate) *UserHandler {
	return &UserHandler{users: users, rewards: rewards, validator: v}
}

func formatProfileValidationError(err error) string {
	return formatFieldError(err,
		map[string]string{"Name": "name", "Address": "address"},
		map[string]string{"Name": "255", "Address": "1024"})
}

// Profile handles GET /api/users/me.
func (h *UserHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.users.Profile(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "failed to get profile")
	}
	return c.JSON(profile)
}

// UpdateProfile handles PUT /api/users/me.
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	var req model.UpdateProfileRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatProfileValidationError(err)})
	}

	user, err := h.users.UpdateProfile(c.Context(), middleware.UserID(c), &req)
	if err != nil {
		return respondError(c, err, "failed to update profile")
	}
	return c.JSON(user)
}

// Coupons handles GET /api/users/me/coupons.
func (h *UserHandler) Coupons(c *fiber.Ctx) error {
	coupons, err := h.users.Coupons(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "failed to list coupons")
	}
	return c.JSON(fiber.Map{"coupons": coupons})
}

// ResetBin handles POST /api/users/me/bin/reset once the bin was collected.
func (h *UserHandler) ResetBin(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if err := h.rewards.ResetBin(c.Context(), userID); err != nil {
		return respondError(c, err, "failed to reset bin")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", userID).
		Msg("bin reset by user")

	return c.JSON(fiber.Map{"bin_reset": true})
}

// RetryNotification handles POST /api/users/me/bin/notify.
func (h *UserHandler) RetryNotification(c *fiber.Ctx) error {
	outcome, err := h.rewards.RetryNotification(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "failed to retry notification")
	}
	return c.JSON(outcome)
}

// Leaderboard handles GET /api/leaderboard?limit=N.
func (h *UserHandler) Leaderboard(c *fiber.Ctx) error {
	entries, err := h.users.Leaderboard(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err, "failed to get leaderboard")
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// Rank handles GET /api/leaderboard/me.
func (h *UserHandler) Rank(c *fiber.Ctx) error {
	rank, err := h.users.Rank(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "failed to get rank")
	}
	return c.JSON(rank)
}

// ListUsers handles GET /api/admin/users?limit=N.
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err, "failed to list users")
	}
	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}
