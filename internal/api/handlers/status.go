// status.go — GET /status и GET /stats.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/files-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/files-manager/internal/service"
)

// StatusHandler отдаёт доступность хранилищ и статистику.
type StatusHandler struct {
	files    *service.FileService
	metadata ReadinessChecker
	sessions ReadinessChecker
	logger   *slog.Logger
}

// NewStatusHandler создаёт StatusHandler.
func NewStatusHandler(files *service.FileService, metadata, sessions ReadinessChecker, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		files:    files,
		metadata: metadata,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "status")),
	}
}

// statusResponse сохраняет исторические имена полей: redis — хранилище
// сессий (любой бэкенд), db — хранилище метаданных.
type statusResponse struct {
	Redis bool `json:"redis"`
	DB    bool `json:"db"`
}

// GetStatus обрабатывает GET /status. Всегда 200.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Redis: check(h.sessions).Status != statusFail,
		DB:    check(h.metadata).Status != statusFail,
	})
}

// GetStats обрабатывает GET /stats.
func (h *StatusHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.files.Stats(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения статистики", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
