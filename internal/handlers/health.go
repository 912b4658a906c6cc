package handlers

import (
	"context"
	"hoursrelay/internal/logger"
	helpers "hoursrelay/internal/utils/helpres"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger - проверка доступности хранилища записей.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store          Pinger
	smtpConfigured bool
	now            func() time.Time
}

func NewHealthHandler(store Pinger, smtpConfigured bool) *HealthHandler {
	return &HealthHandler{store: store, smtpConfigured: smtpConfigured, now: time.Now}
}

type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	Service        string `json:"service"`
	Store          string `json:"store"`
	SMTPConfigured bool   `json:"smtp_configured"`
}

// Health godoc
// @Summary Проверка состояния сервиса
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "healthy",
		Timestamp:      h.now().UTC().Format(time.RFC3339),
		Service:        "email-verification-service",
		Store:          "ok",
		SMTPConfigured: h.smtpConfigured,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		logger.WithCtx(r.Context()).Warn("Хранилище недоступно", zap.Error(err))
		resp.Status = "degraded"
		resp.Store = "unreachable"
		helpers.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	helpers.JSON(w, http.StatusOK, resp)
}
