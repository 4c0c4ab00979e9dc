package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/middleware"
	"github.com/campuspass/outpass-api/internal/service"
	"github.com/campuspass/outpass-api/internal/utils"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	raw := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func deptIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("dept_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func validationMessage(errs validator.ValidationErrors) string {
	fields := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		fields = append(fields, strings.ToLower(fieldErr.Field()))
	}
	return "validation failed on: " + strings.Join(fields, ", ")
}

// statusForServiceError maps workflow sentinels onto HTTP statuses. Unknown
// errors fall through to 0 so callers log them and answer 500.
func statusForServiceError(err error) int {
	switch {
	case errors.Is(err, service.ErrOutpassNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrDepartmentNotFound),
		errors.Is(err, service.ErrTokenNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrNotOwner),
		errors.Is(err, service.ErrNotAssigned):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAdvisorNotApproved),
		errors.Is(err, service.ErrQRAlreadyUsed),
		errors.Is(err, service.ErrNotExited),
		errors.Is(err, service.ErrAlreadyReturned),
		errors.Is(err, service.ErrNotApproved),
		errors.Is(err, service.ErrFutureDated),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrDepartmentInUse):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrRemarksRequired),
		errors.Is(err, service.ErrPastDate),
		errors.Is(err, service.ErrTooFarAhead),
		errors.Is(err, service.ErrReturnBeforeOut),
		errors.Is(err, service.ErrNoAdvisorAvailable),
		errors.Is(err, service.ErrNotAnAdvisor),
		errors.Is(err, service.ErrUploadMissing),
		errors.Is(err, service.ErrUploadTypeNotAllowed):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrQRExpired),
		errors.Is(err, service.ErrQRNotAvailable):
		return fiber.StatusGone
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountDisabled):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUploadsDisabled):
		return fiber.StatusServiceUnavailable
	}
	return 0
}

// handleServiceError answers with the mapped status or logs and answers 500.
func handleServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(validationErrs))
	}

	if status := statusForServiceError(err); status != 0 {
		return utils.SendError(c, status, err.Error())
	}

	logger.Error().
		Err(err).
		Str("correlation_id", middleware.GetCorrelationID(c)).
		Str("path", c.Path()).
		Msg("unhandled service error")

	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
