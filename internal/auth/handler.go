package auth

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

const minPasswordLength = 8

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var errOperatorExists = fiber.NewError(fiber.StatusForbidden, "an operator is already registered")

// RegisterHandler creates the first operator. Further operators cannot
// self-register.
func RegisterHandler(s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		if body.Name == "" {
			return apperr.Invalid("name", "name is required")
		}
		if _, err := mail.ParseAddress(body.Email); err != nil {
			return apperr.Invalid("email", "invalid email address")
		}
		if len(body.Password) < minPasswordLength {
			return apperr.Invalid("password", "password must be at least %d characters", minPasswordLength)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		op := models.Operator{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
		}
		ctx := c.UserContext()
		err = s.Transaction(ctx, func(tx store.Store) error {
			if err := tx.LockOperators(ctx); err != nil {
				return err
			}
			count, err := tx.CountOperators(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				return errOperatorExists
			}
			return tx.CreateOperator(ctx, &op)
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(op)
	}
}

func LoginHandler(s store.OperatorStore, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		op, err := s.FindOperatorByEmail(c.UserContext(), body.Email)
		if errors.Is(err, apperr.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}
		if err != nil {
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}

		token, err := GenerateToken(secret, op)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"token":    token,
			"operator": op,
		})
	}
}

func MeHandler(s store.OperatorStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := OperatorID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
		}
		op, err := s.GetOperator(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(op)
	}
}
