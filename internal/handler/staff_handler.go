package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/service"
	"github.com/campuspass/outpass-api/internal/utils"
)

// StaffHandler wires the advisor review routes.
type StaffHandler struct {
	outpasses service.OutpassService
	reports   service.ReportService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStaffHandler constructs the handler.
func NewStaffHandler(outpasses service.OutpassService, reports service.ReportService, validator *validator.Validate, logger zerolog.Logger) *StaffHandler {
	return &StaffHandler{
		outpasses: outpasses,
		reports:   reports,
		validator: validator,
		logger:    logger.With().Str("component", "staff_handler").Logger(),
	}
}

// Register attaches advisor endpoints to the router group.
func (h *StaffHandler) Register(router fiber.Router) {
	router.Get("/outpasses", h.list)
	router.Get("/outpasses/summary", h.summary)
	router.Get("/outpasses/:id", h.get)
	router.Get("/outpasses/:id/history", h.history)
	router.Post("/outpasses/:id/decision", h.decide)
	router.Get("/students", h.students)
	router.Get("/students/:id/outpasses", h.studentHistory)
}

func (h *StaffHandler) list(c *fiber.Ctx) error {
	var query dto.OutpassListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	outpasses, err := h.outpasses.ListForAdvisor(c.Context(), userIDFromContext(c), query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpasses retrieved", outpasses)
}

func (h *StaffHandler) summary(c *fiber.Ctx) error {
	summary, err := h.reports.AdvisorSummary(c.Context(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "summary retrieved", summary)
}

func (h *StaffHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	outpass, err := h.outpasses.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpass retrieved", outpass)
}

func (h *StaffHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.outpasses.History(c.Context(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "history retrieved", entries)
}

func (h *StaffHandler) decide(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	outpass, err := h.outpasses.AdvisorDecide(c.Context(), userIDFromContext(c), id, payload, c.IP())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "decision recorded", outpass)
}

func (h *StaffHandler) students(c *fiber.Ctx) error {
	students, err := h.outpasses.Advisees(c.Context(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StaffHandler) studentHistory(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var query dto.OutpassListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	outpasses, err := h.outpasses.AdviseeHistory(c.Context(), userIDFromContext(c), studentID, query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "history retrieved", outpasses)
}
