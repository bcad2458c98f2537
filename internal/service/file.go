// file.go — сервис файлов: загрузка, выдача содержимого, листинг,
// управление видимостью.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"slices"

	"github.com/bigkaa/goartstore/files-manager/internal/access"
	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/files-manager/internal/repository"
	"github.com/bigkaa/goartstore/files-manager/internal/storage/contentstore"
	"github.com/bigkaa/goartstore/files-manager/internal/thumbnail"
)

// PageSize — размер страницы листинга.
const PageSize = 20

// defaultMIMEType — тип содержимого, если расширение не распознано.
const defaultMIMEType = "application/octet-stream"

// Blobs — операции ContentStore, нужные сервису.
type Blobs interface {
	Put(data []byte) (string, error)
	Get(ref string) ([]byte, error)
	Delete(ref string) error
}

// Enqueuer — постановка задания на построение миниатюр.
type Enqueuer interface {
	Enqueue(ctx context.Context, fileID, requesterID string) (string, error)
}

// UploadParams — параметры загрузки.
type UploadParams struct {
	// OwnerID — аутентифицированный пользователь
	OwnerID string
	// Name — отображаемое имя
	Name string
	// Type — folder, file или image
	Type string
	// ParentID — ID папки-родителя; пусто или "0" — корень
	ParentID string
	// IsPublic — начальная видимость
	IsPublic bool
	// Data — содержимое в base64 (обязательно для file и image)
	Data string
}

// Content — содержимое файла для выдачи клиенту.
type Content struct {
	Data     []byte
	MIMEType string
	Name     string
}

// Stats — статистика хранилища.
type Stats struct {
	Files int `json:"files"`
}

// FileService — сервис файлов.
type FileService struct {
	repo        repository.FileRepository
	blobs       Blobs
	enqueuer    Enqueuer
	maxFileSize int64
	logger      *slog.Logger
}

// Option настраивает FileService.
type Option func(*FileService)

// WithMaxFileSize ограничивает размер загружаемого содержимого
// после декодирования base64. 0 — без ограничения.
func WithMaxFileSize(n int64) Option {
	return func(s *FileService) {
		s.maxFileSize = n
	}
}

// NewFileService создаёт сервис файлов.
func NewFileService(
	repo repository.FileRepository,
	blobs Blobs,
	enqueuer Enqueuer,
	logger *slog.Logger,
	opts ...Option,
) *FileService {
	s := &FileService{
		repo:     repo,
		blobs:    blobs,
		enqueuer: enqueuer,
		logger:   logger.With(slog.String("component", "file_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxFileSize возвращает лимит содержимого (0 — без ограничения).
func (s *FileService) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload проверяет параметры, сохраняет содержимое и метаданные.
//
// Проверки выполняются по порядку, возвращается первая ошибка:
// имя, тип, данные (кроме папок) и их размер, существование и тип родителя.
// Содержимое пишется до метаданных; при ошибке вставки blob удаляется.
// Для изображений после вставки ставится задание на миниатюры,
// сбой постановки только логируется.
func (s *FileService) Upload(ctx context.Context, p UploadParams) (*model.FileRecord, error) {
	if p.Name == "" {
		return nil, newError(ErrValidation, msgMissingName)
	}
	kind, ok := model.ParseKind(p.Type)
	if !ok {
		return nil, newError(ErrValidation, msgMissingType)
	}

	var data []byte
	if kind != model.KindFolder {
		if p.Data == "" {
			return nil, newError(ErrValidation, msgMissingData)
		}
		// Оценка по длине base64 отсекает заведомо большие данные до декодирования
		if s.tooLarge(int64(base64.StdEncoding.DecodedLen(len(p.Data))) - 2) {
			return nil, newError(ErrTooLarge, msgFileTooLarge)
		}
		decoded, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, newError(ErrValidation, msgMissingData)
		}
		if s.tooLarge(int64(len(decoded))) {
			return nil, newError(ErrTooLarge, msgFileTooLarge)
		}
		data = decoded
	}

	parentID := normalizeParent(p.ParentID)
	if parentID != model.RootID {
		parent, err := s.repo.FindByID(ctx, parentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrValidation, msgParentNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка получения родителя: %w", err)
		}
		if !parent.IsFolder() {
			return nil, newError(ErrValidation, msgParentNotFolder)
		}
	}

	if kind == model.KindFolder {
		rec := model.NewFolder(p.OwnerID, p.Name, parentID, p.IsPublic)
		if _, err := s.repo.Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("ошибка сохранения папки: %w", err)
		}
		s.logger.Info("Папка создана",
			slog.String("file_id", rec.ID),
			slog.String("owner_id", rec.OwnerID),
		)
		return rec, nil
	}

	ref, err := s.blobs.Put(data)
	if err != nil {
		return nil, wrapError(ErrStorageIO, "Cannot store file", err)
	}

	rec := model.NewLeaf(p.OwnerID, p.Name, kind, parentID, p.IsPublic, ref)
	if _, err := s.repo.Insert(ctx, rec); err != nil {
		if delErr := s.blobs.Delete(ref); delErr != nil {
			s.logger.Error("Не удалось удалить содержимое после ошибки вставки",
				slog.String("content_ref", ref),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("ошибка сохранения метаданных: %w", err)
	}

	s.logger.Info("Файл загружен",
		slog.String("file_id", rec.ID),
		slog.String("owner_id", rec.OwnerID),
		slog.String("kind", string(kind)),
		slog.Int("size", len(data)),
	)

	if kind == model.KindImage && s.enqueuer != nil {
		jobID, err := s.enqueuer.Enqueue(ctx, rec.ID, rec.OwnerID)
		if err != nil {
			s.logger.Warn("Не удалось поставить задание на миниатюры",
				slog.String("file_id", rec.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Debug("Задание на миниатюры поставлено",
				slog.String("file_id", rec.ID),
				slog.String("job_id", jobID),
			)
		}
	}

	return rec, nil
}

// RetrieveContent возвращает содержимое файла или его миниатюры.
//
// requesterID пуст для анонимного запроса, size = 0 — оригинал.
// Видимость проверяется раньше типа записи: приватная папка
// для чужого неотличима от отсутствующей.
func (s *FileService) RetrieveContent(ctx context.Context, requesterID, fileID string, size int) (*Content, error) {
	rec, err := s.repo.FindByID(ctx, fileID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrNotFound, msgNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}

	if !access.CanRead(access.Identity{UserID: requesterID}, rec) {
		return nil, newError(ErrNotFound, msgNotFound)
	}
	if rec.IsFolder() {
		return nil, newError(ErrInvalidOperation, msgFolderHasNoContent)
	}

	ref, ok := rec.ContentRef()
	if !ok {
		return nil, newError(ErrNotFound, msgNotFound)
	}
	if size != 0 {
		if !slices.Contains(thumbnail.Widths, size) {
			return nil, newError(ErrNotFound, msgNotFound)
		}
		ref = contentstore.DerivedRef(ref, size)
	}

	data, err := s.blobs.Get(ref)
	if errors.Is(err, contentstore.ErrNotFound) {
		return nil, newError(ErrNotFound, msgNotFound)
	}
	if err != nil {
		return nil, wrapError(ErrStorageIO, "Cannot read file", err)
	}

	return &Content{
		Data:     data,
		MIMEType: mimeType(rec.Name),
		Name:     rec.Name,
	}, nil
}

// List возвращает страницу записей владельца в папке.
// Отрицательная страница трактуется как первая.
func (s *FileService) List(ctx context.Context, ownerID, parentID string, page int) ([]*model.FileRecord, error) {
	if page < 0 {
		page = 0
	}
	records, err := s.repo.FindByOwnerAndParent(ctx, ownerID, normalizeParent(parentID), page, PageSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка: %w", err)
	}
	return records, nil
}

// Show возвращает запись, если запрашивающий — её владелец.
func (s *FileService) Show(ctx context.Context, requesterID, fileID string) (*model.FileRecord, error) {
	rec, err := s.repo.FindByID(ctx, fileID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrNotFound, msgNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	if !access.IsOwner(access.Identity{UserID: requesterID}, rec) {
		return nil, newError(ErrNotFound, msgNotFound)
	}
	return rec, nil
}

// SetPublish меняет видимость записи. Повторный вызов с тем же
// значением идемпотентен. Чужая запись неотличима от отсутствующей.
func (s *FileService) SetPublish(ctx context.Context, requesterID, fileID string, publish bool) (*model.FileRecord, error) {
	rec, err := s.Show(ctx, requesterID, fileID)
	if err != nil {
		return nil, err
	}
	if !access.CanMutate(access.Identity{UserID: requesterID}, rec) {
		return nil, newError(ErrNotFound, msgNotFound)
	}

	updated, err := s.repo.SetVisibility(ctx, rec.ID, publish)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrNotFound, msgNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка изменения видимости: %w", err)
	}

	s.logger.Info("Видимость изменена",
		slog.String("file_id", updated.ID),
		slog.Bool("is_public", updated.IsPublic),
	)
	return updated, nil
}

// Stats возвращает количество записей.
func (s *FileService) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return &Stats{Files: count}, nil
}

func normalizeParent(parentID string) string {
	if parentID == "" {
		return model.RootID
	}
	return parentID
}

// mimeType определяет MIME-тип по расширению имени.
func mimeType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return defaultMIMEType
}

func (s *FileService) tooLarge(size int64) bool {
	return s.maxFileSize > 0 && size > s.maxFileSize
}
