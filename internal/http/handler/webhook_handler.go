package handler

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	httpUtil "github.com/sifan077/linkbot/internal/http/util"
	"go.uber.org/zap"
)

// WebhookDeps groups dependencies required by the webhook handler.
type WebhookDeps struct {
	Logger *zap.Logger
	Path   string
	Signer *httpUtil.WebhookSigner

	// OnUpdate queues an update; false means it was dropped.
	OnUpdate func(update tgbotapi.Update) bool
}

// WebhookHandler receives Telegram updates pushed to the webhook URL.
type WebhookHandler struct {
	logger   *zap.Logger
	path     string
	signer   *httpUtil.WebhookSigner
	onUpdate func(update tgbotapi.Update) bool
}

// NewWebhookHandler creates a webhook handler with the provided dependencies.
func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	path := deps.Path
	if path == "" {
		path = "/telegram/webhook"
	}
	return &WebhookHandler{
		logger:   logger,
		path:     path,
		signer:   deps.Signer,
		onUpdate: deps.OnUpdate,
	}
}

// Register wires the webhook route onto the provided router.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post(h.path+"/:token", h.Receive)
}

// Receive handles POST <path>/:token.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	if err := h.signer.Validate(c.Params("token")); err != nil {
		h.logger.Warn("webhook call rejected", zap.String("ip", c.IP()), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
		})
	}

	var update tgbotapi.Update
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid update body",
		})
	}

	// Telegram retries on non-2xx, so a dropped update is still acknowledged.
	if !h.onUpdate(update) {
		h.logger.Debug("webhook update ignored", zap.Int("update_id", update.UpdateID))
	}
	return c.SendStatus(fiber.StatusOK)
}
