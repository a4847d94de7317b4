// Package middleware holds the Fiber middleware that identifies callers and
// protects the scan endpoint.
package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
)

// Auth modes accepted by AUTH_MODE.
const (
	ModeJWT    = "jwt"
	ModeHeader = "header"
)

// Keys under which the authenticated identity is stored in c.Locals.
const (
	LocalUserID  = "user_id"
	LocalIsAdmin = "is_admin"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
)

// Claims is the JWT payload. The subject is the user id.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for userID. Used by operators and tests to
// mint bearer tokens.
func IssueToken(secret, userID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewAuth returns a handler that identifies the caller and stores the user id
// and admin flag in c.Locals. Unauthenticated requests get 401.
func NewAuth(cfg config.AuthConfig) (fiber.Handler, error) {
	switch cfg.Mode {
	case ModeJWT:
		if cfg.JWTSecret == "" {
			return nil, errors.New("jwt auth requires AUTH_JWT_SECRET")
		}
		return jwtAuth(cfg.JWTSecret), nil
	case ModeHeader:
		log.Warn().Str("user_header", cfg.UserHeader).Msg("header auth enabled, trust the upstream proxy only")
		return headerAuth(cfg.UserHeader, cfg.AdminHeader), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

func jwtAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			return unauthorized(c, ErrMissingCredentials)
		}

		claims, err := ParseToken(secret, strings.TrimSpace(raw))
		if err != nil {
			return unauthorized(c, err)
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalIsAdmin, claims.Admin)
		return c.Next()
	}
}

func headerAuth(userHeader, adminHeader string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// c.Get aliases the request buffer; the id is kept past this request.
		userID := utils.CopyString(strings.TrimSpace(c.Get(userHeader)))
		if userID == "" {
			return unauthorized(c, ErrMissingCredentials)
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalIsAdmin, strings.EqualFold(c.Get(adminHeader), "true"))
		return c.Next()
	}
}

// RequireAdmin rejects callers whose identity is not marked admin.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			log.Warn().
				Str("request_id", c.GetRespHeader("X-Request-ID")).
				Str("user_id", UserID(c)).
				Str("path", c.Path()).
				Msg("admin route denied")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside the auth middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// IsAdmin reports whether the authenticated caller is an admin.
func IsAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals(LocalIsAdmin).(bool)
	return admin
}

func unauthorized(c *fiber.Ctx, err error) error {
	log.Debug().
		Err(err).
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("path", c.Path()).
		Msg("authentication failed")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
}
