package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/NahuelRC/CallCenter/internal/dispatch"
)

// SendHandler is the operator path: a human pushes a message to a
// contact, bypassing the automated pipeline.
type SendHandler struct {
	pipeline *dispatch.Pipeline
	logger   *slog.Logger
}

func NewSendHandler(pipeline *dispatch.Pipeline, log *slog.Logger) *SendHandler {
	return &SendHandler{
		pipeline: pipeline,
		logger:   log.With(slog.String("handler", "send")),
	}
}

// Register mounts POST /send on the Echo instance.
func (h *SendHandler) Register(e *echo.Echo) {
	e.POST("/send", h.Send)
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendResponse struct {
	Success    bool   `json:"success"`
	MessageSid string `json:"messageSid,omitempty"`
}

func (h *SendHandler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	msg, err := h.pipeline.SendDirect(c.Request().Context(), req.To, req.Message)
	if err != nil {
		h.logger.Warn("direct send failed",
			slog.String("to", req.To),
			slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, sendResponse{Success: true, MessageSid: msg.MessageSid})
}
