package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/service"
	"github.com/campuspass/outpass-api/internal/utils"
)

// StudentHandler wires the student-facing outpass routes.
type StudentHandler struct {
	outpasses service.OutpassService
	reports   service.ReportService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(outpasses service.OutpassService, reports service.ReportService, validator *validator.Validate, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		outpasses: outpasses,
		reports:   reports,
		validator: validator,
		logger:    logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches student endpoints to the router group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Post("/outpasses", h.submit)
	router.Get("/outpasses", h.list)
	router.Get("/outpasses/summary", h.summary)
	router.Get("/outpasses/:id", h.get)
	router.Get("/outpasses/:id/qr", h.qr)
	router.Get("/outpasses/:id/history", h.history)
	router.Post("/outpasses/:id/cancel", h.cancel)
	router.Delete("/outpasses/:id", h.remove)
}

func (h *StudentHandler) submit(c *fiber.Ctx) error {
	var payload dto.OutpassCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	outpass, err := h.outpasses.Submit(c.Context(), userIDFromContext(c), payload, c.IP())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendCreated(c, "outpass submitted", outpass)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	var query dto.OutpassListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	outpasses, err := h.outpasses.ListForStudent(c.Context(), userIDFromContext(c), query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpasses retrieved", outpasses)
}

func (h *StudentHandler) summary(c *fiber.Ctx) error {
	summary, err := h.reports.StudentSummary(c.Context(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "summary retrieved", summary)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	outpass, err := h.outpasses.GetForStudent(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpass retrieved", outpass)
}

func (h *StudentHandler) qr(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	qr, err := h.outpasses.QRCode(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "qr code retrieved", qr)
}

func (h *StudentHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// Ownership check first so students cannot read other audit trails.
	if _, err := h.outpasses.GetForStudent(c.Context(), userIDFromContext(c), id); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	entries, err := h.outpasses.History(c.Context(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "history retrieved", entries)
}

func (h *StudentHandler) cancel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	outpass, err := h.outpasses.Cancel(c.Context(), userIDFromContext(c), id, c.IP())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpass cancelled", outpass)
}

func (h *StudentHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.outpasses.DeleteForStudent(c.Context(), userIDFromContext(c), id); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpass deleted", nil)
}
