// files.go — HTTP handlers файловых операций:
// загрузка, просмотр, листинг, публикация, выдача содержимого.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/files-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/files-manager/internal/api/middleware"
	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/files-manager/internal/service"
)

// fileRecordResponse — представление записи в API.
type fileRecordResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsPublic bool   `json:"isPublic"`
	ParentID string `json:"parentId"`
}

// uploadRequest — тело POST /files.
type uploadRequest struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	ParentID flexibleID `json:"parentId"`
	IsPublic bool       `json:"isPublic"`
	Data     string     `json:"data"`
}

// flexibleID принимает идентификатор строкой или числом (0 — корень).
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("parentId: ожидалась строка или число")
	}
	*f = flexibleID(n.String())
	return nil
}

func toResponse(rec *model.FileRecord) fileRecordResponse {
	return fileRecordResponse{
		ID:       rec.ID,
		UserID:   rec.OwnerID,
		Name:     rec.Name,
		Type:     string(rec.Kind),
		IsPublic: rec.IsPublic,
		ParentID: rec.ParentID,
	}
}

// uploadBodyOverhead — запас тела запроса на поля JSON помимо data.
const uploadBodyOverhead = 64 << 10

// UploadBodyLimit возвращает предел тела POST /files для лимита
// содержимого maxFileSize: base64 увеличивает данные на треть.
func UploadBodyLimit(maxFileSize int64) int64 {
	return int64(base64.StdEncoding.EncodedLen(int(maxFileSize))) + uploadBodyOverhead
}

// UploadFile обрабатывает POST /files.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if limit := h.files.MaxFileSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, UploadBodyLimit(limit))
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.FileTooLarge(w, "File too large")
			return
		}
		apierrors.ValidationError(w, "Invalid JSON body")
		return
	}

	rec, err := h.files.Upload(r.Context(), service.UploadParams{
		OwnerID:  middleware.IdentityFromContext(r.Context()).UserID,
		Name:     req.Name,
		Type:     req.Type,
		ParentID: string(req.ParentID),
		IsPublic: req.IsPublic,
		Data:     req.Data,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(rec))
}

// ShowFile обрабатывает GET /files/{id}.
func (h *APIHandler) ShowFile(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.files.Show(r.Context(), middleware.IdentityFromContext(r.Context()).UserID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(rec))
}

// ListFiles обрабатывает GET /files?parentId=&page=.
// Некорректная страница трактуется как первая.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var parentID *string
	if err := runtime.BindQueryParameter("form", true, false, "parentId", query, &parentID); err != nil {
		apierrors.ValidationError(w, "Invalid parentId")
		return
	}
	var page *int
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &page); err != nil {
		page = nil
	}

	p := 0
	if page != nil {
		p = *page
	}
	parent := ""
	if parentID != nil {
		parent = *parentID
	}

	records, err := h.files.List(r.Context(), middleware.IdentityFromContext(r.Context()).UserID, parent, p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]fileRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toResponse(rec))
	}
	writeJSON(w, http.StatusOK, items)
}

// PublishFile обрабатывает PUT /files/{id}/publish.
func (h *APIHandler) PublishFile(w http.ResponseWriter, r *http.Request) {
	h.setPublish(w, r, true)
}

// UnpublishFile обрабатывает PUT /files/{id}/unpublish.
func (h *APIHandler) UnpublishFile(w http.ResponseWriter, r *http.Request) {
	h.setPublish(w, r, false)
}

func (h *APIHandler) setPublish(w http.ResponseWriter, r *http.Request, publish bool) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.files.SetPublish(r.Context(), middleware.IdentityFromContext(r.Context()).UserID, id, publish)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(rec))
}

// GetFileData обрабатывает GET /files/{id}/data?size=.
// Токен необязателен: публичные файлы отдаются анониму.
func (h *APIHandler) GetFileData(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	var size *int
	if err := runtime.BindQueryParameter("form", true, false, "size", r.URL.Query(), &size); err != nil {
		apierrors.ValidationError(w, "Invalid size")
		return
	}
	width := 0
	if size != nil {
		width = *size
	}

	content, err := h.files.RetrieveContent(r.Context(), middleware.IdentityFromContext(r.Context()).UserID, id, width)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", content.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Data)
}

// fileIDParam извлекает {id} из пути. Пустой id — 404.
func fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || id == "" {
		apierrors.NotFound(w, "Not found")
		return "", false
	}
	return id, true
}

// writeServiceError отображает ошибку сервиса в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	msg := service.Message(err)

	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, msg)
	case errors.Is(err, service.ErrTooLarge):
		apierrors.FileTooLarge(w, msg)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msg)
	case errors.Is(err, service.ErrInvalidOperation):
		apierrors.InvalidOperation(w, msg)
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if msg == "" {
			msg = "Internal Server Error"
		}
		apierrors.InternalError(w, msg)
	}
}
