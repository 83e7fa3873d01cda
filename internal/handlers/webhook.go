package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/NahuelRC/CallCenter/internal/dispatch"
)

// WebhookHandler receives Twilio WhatsApp callbacks. It always answers
// 200 immediately; the event is handed to the dispatcher and processed
// out of band. Anything else would make the provider retry-storm.
type WebhookHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

func NewWebhookHandler(dispatcher *dispatch.Dispatcher, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "webhook")),
	}
}

// Register mounts POST /webhook on the Echo instance.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Inbound)
}

// Inbound acknowledges and enqueues one webhook event.
func (h *WebhookHandler) Inbound(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		h.logger.Warn("unreadable webhook payload", slog.String("error", err.Error()))
		return c.String(http.StatusOK, "OK")
	}

	if dispatch.IsErrorNotification(values) {
		h.logger.Warn("provider error notification ignored",
			slog.String("code", values.Get("ErrorCode")),
			slog.String("payload", values.Get("Payload")))
		return c.String(http.StatusOK, "OK")
	}

	event, ok := dispatch.ParseEvent(values)
	if !ok {
		// Non-message callback (no derivable sender). Ignore silently.
		return c.String(http.StatusOK, "OK")
	}

	if err := h.dispatcher.Enqueue(event); err != nil {
		h.logger.Error("event dropped",
			slog.String("phone", event.Phone),
			slog.String("error", err.Error()))
	}
	return c.String(http.StatusOK, "OK")
}
