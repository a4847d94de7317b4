package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/middleware"
	"github.com/fairyhunter13/recycling-rewards/internal/service"
	"github.com/fairyhunter13/recycling-rewards/internal/token"
)

// errorStatus maps a service error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, token.ErrMalformedPayload):
		return fiber.StatusBadRequest, "malformed qr payload"
	case errors.Is(err, token.ErrInvalidPointValue):
		return fiber.StatusBadRequest, "invalid point value in qr payload"
	case errors.Is(err, service.ErrInvalidCount):
		return fiber.StatusBadRequest, "count out of range"
	case errors.Is(err, service.ErrInvalidCategory):
		return fiber.StatusBadRequest, "unknown category"
	case errors.Is(err, service.ErrInvalidRequest):
		return fiber.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrTokenNotFound):
		return fiber.StatusNotFound, "token not found"
	case errors.Is(err, service.ErrUserNotFound):
		return fiber.StatusNotFound, "user not found"
	case errors.Is(err, service.ErrAlreadyRedeemed):
		return fiber.StatusConflict, "token already redeemed"
	case errors.Is(err, service.ErrDuplicateID):
		return fiber.StatusConflict, "token id already exists"
	case errors.Is(err, service.ErrNoPendingReward):
		return fiber.StatusConflict, "no pending reward"
	case errors.Is(err, service.ErrTransientStore):
		return fiber.StatusServiceUnavailable, "temporarily unavailable, check the token state before retrying"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

// respondError writes the JSON error body for err. Server-side failures are
// logged with the request context.
func respondError(c *fiber.Ctx, err error, msg string) error {
	status, text := errorStatus(err)

	var already *service.AlreadyRedeemedError
	if errors.As(err, &already) {
		return c.Status(status).JSON(fiber.Map{
			"error":           text,
			"redeemed_by":     already.RedeemedBy,
			"redeemed_at":     already.RedeemedAt.UTC().Format(time.RFC3339),
			"redeemed_by_you": already.ByCaller,
		})
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("user_id", middleware.UserID(c)).
			Msg(msg)
	}
	return c.Status(status).JSON(fiber.Map{"error": text})
}

// formatFieldError renders the first validation error as
// "invalid request: <json field> <problem>".
func formatFieldError(err error, names map[string]string, maxLen map[string]string) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	name, ok := names[fe.Field()]
	if !ok {
		name = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return "invalid request: " + name + " is required"
	case "notblank":
		return "invalid request: " + name + " cannot be whitespace only"
	case "nopipe":
		return "invalid request: " + name + " cannot contain '|'"
	case "max":
		if limit, ok := maxLen[fe.Field()]; ok {
			return "invalid request: " + name + " exceeds maximum length of " + limit
		}
		return "invalid request: " + name + " exceeds maximum length"
	default:
		return "invalid request: " + name + " is invalid"
	}
}
