package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/internal/utils"
)

func principalFromContext(c *fiber.Ctx) service.Principal {
	principal := service.Principal{}

	if v := c.Locals(middleware.LocalUserID); v != nil {
		switch id := v.(type) {
		case uint:
			principal.ID = id
		case int:
			if id > 0 {
				principal.ID = uint(id)
			}
		}
	}

	if v := c.Locals(middleware.LocalUserRole); v != nil {
		if role, ok := v.(string); ok {
			principal.Role = role
		}
	}

	return principal
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := c.Params(key)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}

	return uint(parsed), nil
}

// handleServiceError maps service error kinds onto stable HTTP statuses.
// Anything outside the taxonomy is treated as an internal error and logged.
func handleServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors

	switch {
	case errors.Is(err, service.ErrForbidden):
		return utils.SendErrorWithReason(c, fiber.StatusForbidden, "forbidden", service.DenialReason(err))
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, service.ErrInvalidPayload):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		logger.Error().Err(err).Msg("storage failure")
		return utils.SendError(c, fiber.StatusBadGateway, "storage failure")
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, "invalid credentials")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		logger.Error().Err(err).Str("correlation_id", middleware.GetCorrelationID(c)).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
