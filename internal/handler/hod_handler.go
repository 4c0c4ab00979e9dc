package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/service"
	"github.com/campuspass/outpass-api/internal/utils"
)

// HODHandler wires the department head review routes.
type HODHandler struct {
	outpasses service.OutpassService
	reports   service.ReportService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewHODHandler constructs the handler.
func NewHODHandler(outpasses service.OutpassService, reports service.ReportService, validator *validator.Validate, logger zerolog.Logger) *HODHandler {
	return &HODHandler{
		outpasses: outpasses,
		reports:   reports,
		validator: validator,
		logger:    logger.With().Str("component", "hod_handler").Logger(),
	}
}

// Register attaches HOD endpoints to the router group.
func (h *HODHandler) Register(router fiber.Router) {
	router.Get("/outpasses", h.list)
	router.Get("/outpasses/summary", h.summary)
	router.Get("/statistics", h.statistics)
	router.Get("/outpasses/:id", h.get)
	router.Get("/outpasses/:id/history", h.history)
	router.Post("/outpasses/:id/decision", h.decide)
	router.Post("/outpasses/:id/override", h.override)
}

// list shows every outpass raised in the HOD's department, not just the ones
// that already cleared the advisor stage.
func (h *HODHandler) list(c *fiber.Ctx) error {
	var query dto.OutpassListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	deptID := deptIDFromContext(c)
	if deptID == 0 {
		return utils.SendError(c, fiber.StatusForbidden, "no department bound to this account")
	}

	outpasses, err := h.outpasses.ListForDepartment(c.Context(), deptID, query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpasses retrieved", outpasses)
}

func (h *HODHandler) summary(c *fiber.Ctx) error {
	deptID := deptIDFromContext(c)
	if deptID == 0 {
		return utils.SendError(c, fiber.StatusForbidden, "no department bound to this account")
	}

	summary, err := h.reports.DepartmentSummary(c.Context(), deptID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "summary retrieved", summary)
}

// statistics serves the department dashboard. The department filter is forced
// from the token so a HOD cannot read another department's numbers.
func (h *HODHandler) statistics(c *fiber.Ctx) error {
	var query dto.ReportQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	deptID := deptIDFromContext(c)
	if deptID == 0 {
		return utils.SendError(c, fiber.StatusForbidden, "no department bound to this account")
	}
	query.DeptID = &deptID

	report, err := h.reports.Overview(c.Context(), query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "statistics retrieved", report)
}

func (h *HODHandler) get(c *fiber.Ctx) error {
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

func (h *HODHandler) history(c *fiber.Ctx) error {
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

func (h *HODHandler) decide(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	outpass, err := h.outpasses.HODDecide(c.Context(), userIDFromContext(c), id, payload, c.IP())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "decision recorded", outpass)
}

func (h *HODHandler) override(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.OverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	outpass, err := h.outpasses.HODOverride(c.Context(), userIDFromContext(c), id, payload, c.IP())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "override recorded", outpass)
}
