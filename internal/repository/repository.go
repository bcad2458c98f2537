// Пакет repository — слой доступа к метаданным файлов.
// Реализации: PostgreSQL (чистый SQL через pgx), in-memory и
// кэширующий декоратор поверх любой из них.
// Доменные инварианты (иерархия, владение) проверяет вызывающий код.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// FileRepository — CRUD над метаданными файлов.
type FileRepository interface {
	// Insert назначает идентификатор, сохраняет запись и возвращает ID.
	Insert(ctx context.Context, rec *model.FileRecord) (string, error)
	// FindByID возвращает запись по ID или ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.FileRecord, error)
	// FindByOwnerAndParent возвращает страницу записей владельца в папке
	// в порядке вставки. page начинается с нуля.
	FindByOwnerAndParent(ctx context.Context, ownerID, parentID string, page, pageSize int) ([]*model.FileRecord, error)
	// SetVisibility атомарно меняет флаг видимости и возвращает обновлённую запись.
	SetVisibility(ctx context.Context, id string, isPublic bool) (*model.FileRecord, error)
	// Count возвращает общее количество записей.
	Count(ctx context.Context) (int, error)
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// offset вычисляет смещение страницы, защищаясь от отрицательных значений.
func offset(page, pageSize int) int {
	if page < 0 {
		page = 0
	}
	return page * pageSize
}
