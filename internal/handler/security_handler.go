package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/service"
	"github.com/campuspass/outpass-api/internal/utils"
)

// SecurityHandler wires the gate scanning routes.
type SecurityHandler struct {
	scans     service.ScanService
	feed      *service.ScanFeed
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSecurityHandler constructs the handler. The feed may be nil when no
// live dashboard is deployed.
func NewSecurityHandler(scans service.ScanService, feed *service.ScanFeed, validator *validator.Validate, logger zerolog.Logger) *SecurityHandler {
	return &SecurityHandler{
		scans:     scans,
		feed:      feed,
		validator: validator,
		logger:    logger.With().Str("component", "security_handler").Logger(),
	}
}

// Register attaches security endpoints to the router group.
func (h *SecurityHandler) Register(router fiber.Router) {
	router.Post("/scan/verify", h.verify)
	router.Post("/scan/exit", h.exit)
	router.Post("/scan/entry", h.entry)
	router.Get("/recent-activity", h.recentActivity)
	router.Get("/students-out", h.studentsOut)
	router.Get("/summary", h.summary)

	if h.feed != nil {
		router.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		router.Get("/ws", websocket.New(h.handleFeed))
	}
}

func (h *SecurityHandler) recentActivity(c *fiber.Ctx) error {
	entries, err := h.scans.RecentActivity(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "recent activity retrieved", entries)
}

func (h *SecurityHandler) studentsOut(c *fiber.Ctx) error {
	outpasses, err := h.scans.StudentsOut(c.Context())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "students out retrieved", outpasses)
}

func (h *SecurityHandler) summary(c *fiber.Ctx) error {
	summary, err := h.scans.Summary(c.Context())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "summary retrieved", summary)
}

func (h *SecurityHandler) verify(c *fiber.Ctx) error {
	payload, err := h.scanPayload(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	outpass, err := h.scans.Verify(c.Context(), payload.Token)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "qr code valid", outpass)
}

func (h *SecurityHandler) exit(c *fiber.Ctx) error {
	payload, err := h.scanPayload(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	scan, err := h.scans.RecordExit(c.Context(), userIDFromContext(c), payload.Token, c.IP())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exit recorded", scan)
}

func (h *SecurityHandler) entry(c *fiber.Ctx) error {
	var payload dto.EntryRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "token or outpass_id is required")
	}

	var (
		scan dto.ScanResponse
		err  error
	)
	if payload.Token != "" {
		scan, err = h.scans.RecordEntry(c.Context(), userIDFromContext(c), payload.Token, c.IP())
	} else {
		scan, err = h.scans.RecordEntryByID(c.Context(), userIDFromContext(c), payload.OutpassID, c.IP())
	}
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "entry recorded", scan)
}

func (h *SecurityHandler) scanPayload(c *fiber.Ctx) (dto.ScanRequest, error) {
	var payload dto.ScanRequest
	if err := c.BodyParser(&payload); err != nil {
		return dto.ScanRequest{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return dto.ScanRequest{}, fiber.NewError(fiber.StatusBadRequest, "token is required")
	}

	return payload, nil
}

// handleFeed streams live gate scans to a connected security dashboard until
// the client disconnects.
func (h *SecurityHandler) handleFeed(conn *websocket.Conn) {
	events, cancel := h.feed.Subscribe()
	defer cancel()

	h.logger.Info().Msg("scan feed connected")
	defer h.logger.Info().Msg("scan feed disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case scan, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(scan); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
