package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func HTTPStatus(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error as {"error": "..."}; validation errors also
// carry the offending field. Logging is left to logger.Middleware.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := HTTPStatus(err)

		body := fiber.Map{"error": err.Error()}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			body["error"] = fe.Message
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			body["error"] = ve.Message
			if ve.Field != "" {
				body["field"] = ve.Field
			}
		}

		return c.Status(status).JSON(body)
	}
}
