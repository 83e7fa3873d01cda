package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/NahuelRC/CallCenter/internal/version"
)

// PingHandler serves the liveness endpoints.
type PingHandler struct {
	logger *slog.Logger
}

func NewPingHandler(log *slog.Logger) *PingHandler {
	return &PingHandler{logger: log.With(slog.String("handler", "ping"))}
}

// Register mounts GET /ping and HEAD /health on the Echo instance.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.Health)
}

// Ping reports liveness and the running build version.
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetInfo(),
	})
}

// Health answers load-balancer HEAD probes with an empty 200.
func (h *PingHandler) Health(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
