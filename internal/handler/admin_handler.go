package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/middleware"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// AdminServiceInterface defines the minting and reporting operations.
type AdminServiceInterface interface {
	Mint(ctx context.Context, req *model.MintTokenRequest) (*model.TokenResponse, error)
	MintBulk(ctx context.Context, category string, count int) (*model.BulkMintResult, error)
	ListTokens(ctx context.Context, limit int) ([]model.Token, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// AdminHandler handles HTTP requests on the admin routes.
type AdminHandler struct {
	service   AdminServiceInterface
	validator *validator.Validate
}

// NewAdminHandler creates a new AdminHandler with the given service and validator.
func NewAdminHandler(svc AdminServiceInterface, v *validator.Validate) *AdminHandler {
	return &AdminHandler{service: svc, validator: v}
}

func formatMintValidationError(err error) string {
	return formatFieldError(err,
		map[string]string{"ID": "id", "Category": "category", "Count": "count"},
		map[string]string{"ID": "128", "Category": "32"})
}

// Mint handles POST /api/admin/tokens.
func (h *AdminHandler) Mint(c *fiber.Ctx) error {
	var req model.MintTokenRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatMintValidationError(err)})
	}

	resp, err := h.service.Mint(c.Context(), &req)
	if err != nil {
		return respondError(c, err, "failed to mint token")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", middleware.UserID(c)).
		Str("token_id", resp.ID).
		Str("category", resp.Category).
		Msg("token minted")

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// MintBulk handles POST /api/admin/tokens/bulk.
func (h *AdminHandler) MintBulk(c *fiber.Ctx) error {
	var req model.BulkMintRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatMintValidationError(err)})
	}

	result, err := h.service.MintBulk(c.Context(), req.Category, *req.Count)
	if err != nil {
		return respondError(c, err, "failed to mint batch")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", middleware.UserID(c)).
		Str("category", result.Category).
		Int("minted", result.Minted).
		Msg("token batch minted")

	return c.Status(fiber.StatusCreated).JSON(result)
}

// ListTokens handles GET /api/admin/tokens?limit=N.
func (h *AdminHandler) ListTokens(c *fiber.Ctx) error {
	tokens, err := h.service.ListTokens(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err, "failed to list tokens")
	}
	return c.JSON(fiber.Map{"tokens": tokens, "count": len(tokens)})
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return respondError(c, err, "failed to get stats")
	}
	return c.JSON(stats)
}
