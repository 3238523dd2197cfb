package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/transport/http/dto"
)

// statusFor maps domain error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, log *logger.Logger, event string, err error, kv ...interface{}) error {
	code := statusFor(err)
	fields := append([]interface{}{"error", err, "status", code}, kv...)
	if code >= fiber.StatusInternalServerError {
		log.Errorw(event, fields...)
	} else {
		log.Warnw(event, fields...)
	}
	return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
}
