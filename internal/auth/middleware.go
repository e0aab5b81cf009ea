package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"routesheet-backend/internal/audit"
)

const (
	CtxOperatorIDKey   = "operator_id"
	CtxOperatorNameKey = "operator_name"
)

// JWTMiddleware rejects requests without a valid bearer token. The operator
// is stored in Locals and on the user context for the audit trail.
func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(CtxOperatorIDKey, claims.OperatorID)
		c.Locals(CtxOperatorNameKey, claims.Name)
		c.SetUserContext(audit.WithActor(c.UserContext(), audit.Actor{ID: claims.OperatorID, Name: claims.Name}))

		return c.Next()
	}
}

func OperatorID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(CtxOperatorIDKey).(uint)
	return id, ok
}
