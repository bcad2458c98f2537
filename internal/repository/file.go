package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
)

// fileRepo — PostgreSQL-реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт PostgreSQL-репозиторий метаданных.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `id::text, owner_id, name, kind, parent_id, is_public, content_ref, created_at`

func (r *fileRepo) Insert(ctx context.Context, rec *model.FileRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	id := uuid.New().String()

	var contentRef *string
	if ref, ok := rec.ContentRef(); ok {
		contentRef = &ref
	}

	query := `
		INSERT INTO files (id, owner_id, name, kind, parent_id, is_public, content_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		id, rec.OwnerID, rec.Name, string(rec.Kind), rec.ParentID, rec.IsPublic, contentRef,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("ошибка вставки файла: %w", err)
	}

	rec.ID = id
	return id, nil
}

func (r *fileRepo) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	// Невалидный UUID не может существовать в таблице
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	rec, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return rec, nil
}

func (r *fileRepo) FindByOwnerAndParent(ctx context.Context, ownerID, parentID string, page, pageSize int) ([]*model.FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE owner_id = $1 AND parent_id = $2
		ORDER BY seq
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query, ownerID, parentID, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.FileRecord, 0, pageSize)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// SetVisibility выполняет read-modify-write одним UPDATE ... RETURNING,
// PostgreSQL сериализует конкурентные обновления одной строки.
func (r *fileRepo) SetVisibility(ctx context.Context, id string, isPublic bool) (*model.FileRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `
		UPDATE files
		SET is_public = $2
		WHERE id = $1
		RETURNING ` + fileColumns

	rec, err := scanFile(r.db.QueryRow(ctx, query, id, isPublic))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления видимости файла: %w", err)
	}
	return rec, nil
}

func (r *fileRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

// scanFile собирает FileRecord из строки результата.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	var (
		rec        model.FileRecord
		kind       string
		contentRef *string
	)
	if err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Name, &kind, &rec.ParentID,
		&rec.IsPublic, &contentRef, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	rec.Kind = model.Kind(kind)
	if rec.Kind == model.KindFolder || contentRef == nil {
		rec.Node = model.Folder{}
	} else {
		rec.Node = model.Leaf{ContentRef: *contentRef}
	}
	return &rec, nil
}
