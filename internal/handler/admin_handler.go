package handler

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/service"
	"github.com/campuspass/outpass-api/internal/utils"
)

// AdminHandler wires account, department, outpass oversight and reporting
// routes.
type AdminHandler struct {
	admin     service.AdminService
	outpasses service.OutpassService
	reports   service.ReportService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(admin service.AdminService, outpasses service.OutpassService, reports service.ReportService, validator *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		outpasses: outpasses,
		reports:   reports,
		validator: validator,
		logger:    logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches admin endpoints to the router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/users", h.createUser)
	router.Get("/users", h.listUsers)
	router.Get("/users/:id", h.getUser)
	router.Patch("/users/:id", h.updateUser)
	router.Delete("/users/:id", h.deleteUser)
	router.Post("/users/:id/password", h.resetPassword)
	router.Post("/users/assign-advisor", h.assignAdvisor)

	router.Post("/departments", h.createDepartment)
	router.Get("/departments", h.listDepartments)
	router.Patch("/departments/:id", h.updateDepartment)
	router.Delete("/departments/:id", h.deleteDepartment)

	router.Get("/outpasses", h.listOutpasses)
	router.Get("/outpasses/:id", h.getOutpass)
	router.Get("/outpasses/:id/history", h.outpassHistory)
	router.Delete("/outpasses/:id", h.deleteOutpass)

	router.Get("/reports/overview", h.reportOverview)
	router.Get("/reports/export", h.exportCSV)
}

func (h *AdminHandler) createUser(c *fiber.Ctx) error {
	var payload dto.UserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.admin.CreateUser(c.Context(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendCreated(c, "user created", user)
}

func (h *AdminHandler) listUsers(c *fiber.Ctx) error {
	var query dto.UserListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	users, err := h.admin.ListUsers(c.Context(), query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "users retrieved", users)
}

func (h *AdminHandler) getUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.admin.GetUser(c.Context(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user retrieved", user)
}

func (h *AdminHandler) updateUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.admin.UpdateUser(c.Context(), id, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user updated", user)
}

func (h *AdminHandler) deleteUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.admin.DeleteUser(c.Context(), id); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user deleted", nil)
}

func (h *AdminHandler) resetPassword(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PasswordResetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.admin.ResetPassword(c.Context(), id, payload); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "password reset", nil)
}

func (h *AdminHandler) assignAdvisor(c *fiber.Ctx) error {
	var payload dto.AssignAdvisorRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.admin.AssignAdvisor(c.Context(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, fmt.Sprintf("%d students reassigned", updated), fiber.Map{"updated": updated})
}

func (h *AdminHandler) createDepartment(c *fiber.Ctx) error {
	var payload dto.DepartmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	dept, err := h.admin.CreateDepartment(c.Context(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendCreated(c, "department created", dept)
}

func (h *AdminHandler) listDepartments(c *fiber.Ctx) error {
	depts, err := h.admin.ListDepartments(c.Context())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "departments retrieved", depts)
}

func (h *AdminHandler) updateDepartment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DepartmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	dept, err := h.admin.UpdateDepartment(c.Context(), id, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "department updated", dept)
}

func (h *AdminHandler) deleteDepartment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.admin.DeleteDepartment(c.Context(), id); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "department deleted", nil)
}

func (h *AdminHandler) listOutpasses(c *fiber.Ctx) error {
	var query dto.OutpassListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	outpasses, err := h.outpasses.List(c.Context(), query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpasses retrieved", outpasses)
}

func (h *AdminHandler) getOutpass(c *fiber.Ctx) error {
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

func (h *AdminHandler) outpassHistory(c *fiber.Ctx) error {
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

func (h *AdminHandler) deleteOutpass(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.outpasses.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "outpass deleted", nil)
}

func (h *AdminHandler) reportOverview(c *fiber.Ctx) error {
	var query dto.ReportQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	report, err := h.reports.Overview(c.Context(), query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "report generated", report)
}

func (h *AdminHandler) exportCSV(c *fiber.Ctx) error {
	var query dto.OutpassListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	data, err := h.reports.ExportCSV(c.Context(), query)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	filename := fmt.Sprintf("outpasses-%s.csv", time.Now().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	return c.Send(data)
}
