package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/service"
	"github.com/campuspass/outpass-api/internal/utils"
)

// AuthHandler wires authentication HTTP routes.
type AuthHandler struct {
	auth        service.AuthService
	uploads     service.UploadService
	departments service.AdminService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAuthHandler constructs the handler. The admin service backs the public
// department dropdown on the registration form.
func NewAuthHandler(auth service.AuthService, uploads service.UploadService, departments service.AdminService, validator *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		uploads:     uploads,
		departments: departments,
		validator:   validator,
		logger:      logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches the public authentication endpoints.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/login", h.login)
	router.Post("/register", h.register)
	router.Get("/departments", h.listDepartments)
}

// RegisterProtected attaches endpoints that require a valid token.
func (h *AuthHandler) RegisterProtected(router fiber.Router) {
	router.Get("/me", h.profile)
	router.Post("/me/photo", h.uploadPhoto)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.auth.Login(c.Context(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "login successful", result)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.auth.Register(c.Context(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendCreated(c, "registration successful", user)
}

func (h *AuthHandler) listDepartments(c *fiber.Ctx) error {
	departments, err := h.departments.ListDepartments(c.Context())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "departments retrieved", departments)
}

func (h *AuthHandler) profile(c *fiber.Ctx) error {
	user, err := h.auth.Profile(c.Context(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *AuthHandler) uploadPhoto(c *fiber.Ctx) error {
	file, err := c.FormFile("photo")
	if err != nil {
		file = nil
	}

	user, err := h.uploads.UploadProfileImage(c.Context(), userIDFromContext(c), file)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile photo updated", user)
}
