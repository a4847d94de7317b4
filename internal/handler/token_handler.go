package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/middleware"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// TokenServiceInterface defines the ledger operations behind the scan routes.
type TokenServiceInterface interface {
	Redeem(ctx context.Context, userID, qrData string) (*model.RedeemResult, error)
	GetToken(ctx context.Context, id string) (*model.TokenResponse, error)
	PointTable() model.PointTable
}

// TokenHandler handles HTTP requests for scanning and inspecting tokens.
type TokenHandler struct {
	service   TokenServiceInterface
	validator *validator.Validate
}

// NewTokenHandler creates a new TokenHandler with the given service and validator.
func NewTokenHandler(svc TokenServiceInterface, v *validator.Validate) *TokenHandler {
	return &TokenHandler{service: svc, validator: v}
}

func formatRedeemValidationError(err error) string {
	return formatFieldError(err,
		map[string]string{"QRData": "qr_data"},
		map[string]string{"QRData": "512"})
}

// Redeem handles POST /api/tokens/redeem for the authenticated user.
func (h *TokenHandler) Redeem(c *fiber.Ctx) error {
	var req model.RedeemRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatRedeemValidationError(err)})
	}

	userID := middleware.UserID(c)
	result, err := h.service.Redeem(c.Context(), userID, req.QRData)
	if err != nil {
		return respondError(c, err, "failed to redeem token")
	}

	event := log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("user_id", userID).
		Str("token_id", result.Token.ID).
		Int("points_awarded", result.PointsAwarded).
		Int("bin_points", result.BinPoints)
	if result.Reward != nil {
		event = event.Str("coupon_code", result.Reward.Coupon.Code).Bool("notified", result.Reward.Notified)
	}
	event.Msg("token redeemed")

	return c.JSON(result)
}

// GetToken handles GET /api/tokens/:id.
func (h *TokenHandler) GetToken(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: id is required",
		})
	}

	resp, err := h.service.GetToken(c.Context(), id)
	if err != nil {
		return respondError(c, err, "failed to get token")
	}
	return c.JSON(resp)
}

// PointTable handles GET /api/points.
func (h *TokenHandler) PointTable(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"points": h.service.PointTable()})
}
