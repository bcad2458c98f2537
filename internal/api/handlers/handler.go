// Пакет handlers — HTTP-обработчики files-manager.
// handler.go — APIHandler и монтирование маршрутов.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/files-manager/internal/api/middleware"
	"github.com/bigkaa/goartstore/files-manager/internal/service"
)

// APIHandler объединяет обработчики файлов, статуса и health.
type APIHandler struct {
	files  *service.FileService
	health *HealthHandler
	status *StatusHandler
	logger *slog.Logger
}

// NewAPIHandler создаёт APIHandler.
func NewAPIHandler(
	files *service.FileService,
	health *HealthHandler,
	status *StatusHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		files:  files,
		health: health,
		status: status,
		logger: logger.With(slog.String("component", "api")),
	}
}

// Mount регистрирует маршруты в router.
// Выдача содержимого допускает анонима (SessionAuth),
// остальные файловые маршруты требуют пользователя (RequireUser).
func (h *APIHandler) Mount(router chi.Router, resolver middleware.IdentityResolver) {
	router.Get("/health/live", h.health.HealthLive)
	router.Get("/health/ready", h.health.HealthReady)
	router.Get("/metrics", h.health.GetMetrics)
	router.Get("/status", h.status.GetStatus)
	router.Get("/stats", h.status.GetStats)

	router.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(resolver, h.logger))
		r.Get("/files/{id}/data", h.GetFileData)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser(resolver, h.logger))
		r.Post("/files", h.UploadFile)
		r.Get("/files", h.ListFiles)
		r.Get("/files/{id}", h.ShowFile)
		r.Put("/files/{id}/publish", h.PublishFile)
		r.Put("/files/{id}/unpublish", h.UnpublishFile)
	})
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
