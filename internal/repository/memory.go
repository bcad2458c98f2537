package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
)

// MemoryRepository — потокобезопасный in-memory репозиторий метаданных.
//
// Используется при FM_METADATA_BACKEND=memory (разработка) и в тестах.
// Не персистентный: при рестарте содержимое теряется.
// Порядок вставки хранится отдельным срезом для пагинации.
type MemoryRepository struct {
	mu     sync.RWMutex
	files  map[string]*model.FileRecord // id → запись
	order  []string                     // id в порядке вставки
	logger *slog.Logger
}

// NewMemoryRepository создаёт пустой in-memory репозиторий.
func NewMemoryRepository(logger *slog.Logger) *MemoryRepository {
	return &MemoryRepository{
		files:  make(map[string]*model.FileRecord),
		logger: logger.With(slog.String("component", "memory_repository")),
	}
}

// Insert сохраняет копию записи под новым UUID.
func (m *MemoryRepository) Insert(_ context.Context, rec *model.FileRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	rec.ID = id
	rec.CreatedAt = time.Now().UTC()

	// Копия, чтобы избежать data race при внешних изменениях
	m.files[id] = rec.Clone()
	m.order = append(m.order, id)

	m.logger.Debug("Запись добавлена",
		slog.String("file_id", id),
		slog.String("kind", string(rec.Kind)),
	)
	return id, nil
}

// FindByID возвращает копию записи.
func (m *MemoryRepository) FindByID(_ context.Context, id string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// FindByOwnerAndParent возвращает страницу записей в порядке вставки.
func (m *MemoryRepository) FindByOwnerAndParent(_ context.Context, ownerID, parentID string, page, pageSize int) ([]*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	skip := offset(page, pageSize)
	result := make([]*model.FileRecord, 0, pageSize)

	for _, id := range m.order {
		rec := m.files[id]
		if rec.OwnerID != ownerID || rec.ParentID != parentID {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if len(result) >= pageSize {
			break
		}
		result = append(result, rec.Clone())
	}
	return result, nil
}

// SetVisibility меняет флаг под эксклюзивной блокировкой.
func (m *MemoryRepository) SetVisibility(_ context.Context, id string, isPublic bool) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.IsPublic = isPublic
	return rec.Clone(), nil
}

// Count возвращает количество записей.
func (m *MemoryRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files), nil
}

// CheckReady реализует handlers.ReadinessChecker. Хранилище в памяти
// доступно всегда.
func (m *MemoryRepository) CheckReady() (status, message string) {
	return "ok", "метаданные в памяти"
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ FileRepository = (*MemoryRepository)(nil)
