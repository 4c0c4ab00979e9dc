package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campuspass/outpass-api/internal/config"
	"github.com/campuspass/outpass-api/internal/handler"
	"github.com/campuspass/outpass-api/internal/middleware"
	"github.com/campuspass/outpass-api/internal/models"
	"github.com/campuspass/outpass-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	StudentHandler  *handler.StudentHandler
	StaffHandler    *handler.StaffHandler
	HODHandler      *handler.HODHandler
	SecurityHandler *handler.SecurityHandler
	AdminHandler    *handler.AdminHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application. Each role gets
// its own group guarded by the JWT middleware plus a role check.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", 20, time.Minute))
		deps.AuthHandler.Register(auth)

		protected := api.Group("/auth", jwtMiddleware)
		deps.AuthHandler.RegisterProtected(protected)
	}

	if deps.StudentHandler != nil {
		student := api.Group("/student", jwtMiddleware, middleware.RequireRole(models.RoleStudent))
		deps.StudentHandler.Register(student)
	}

	if deps.StaffHandler != nil {
		staff := api.Group("/staff", jwtMiddleware, middleware.RequireRole(models.RoleStaff, models.RoleHOD))
		deps.StaffHandler.Register(staff)
	}

	if deps.HODHandler != nil {
		hod := api.Group("/hod", jwtMiddleware, middleware.RequireRole(models.RoleHOD))
		deps.HODHandler.Register(hod)
	}

	if deps.SecurityHandler != nil {
		security := api.Group("/security", jwtMiddleware, middleware.RequireRole(models.RoleSecurity, models.RoleAdmin), middleware.RateLimit("scan", 60, time.Minute))
		deps.SecurityHandler.Register(security)
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.AdminHandler.Register(admin)
	}
}
