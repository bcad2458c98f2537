// Пакет model — доменные модели files-manager.
// FileRecord — метаданные папки или сохранённого файла/изображения.
package model

import (
	"errors"
	"fmt"
	"time"
)

// RootID — идентификатор корня иерархии (parentId по умолчанию).
const RootID = "0"

// Kind — тип записи.
type Kind string

const (
	// KindFolder — папка, не имеет содержимого
	KindFolder Kind = "folder"
	// KindFile — произвольный файл
	KindFile Kind = "file"
	// KindImage — изображение, для которого строятся миниатюры
	KindImage Kind = "image"
)

// ParseKind преобразует строку в Kind.
// Возвращает false для пустой или неизвестной строки.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindFolder, KindFile, KindImage:
		return Kind(s), true
	default:
		return "", false
	}
}

// Node — закрытый вариант содержимого записи: Folder или Leaf.
type Node interface {
	isNode()
}

// Folder — вариант для папок. Ссылки на содержимое нет.
type Folder struct{}

// Leaf — вариант для файлов и изображений.
type Leaf struct {
	// ContentRef — непрозрачное имя blob-а в ContentStore
	ContentRef string
}

func (Folder) isNode() {}
func (Leaf) isNode()   {}

// ErrInvalidRecord — нарушение инвариантов записи.
var ErrInvalidRecord = errors.New("некорректная запись")

// FileRecord — метаданные файла.
type FileRecord struct {
	// ID — уникальный идентификатор (UUID), назначается репозиторием
	ID string
	// OwnerID — идентификатор пользователя-владельца
	OwnerID string
	// Name — отображаемое имя, не меняется после создания
	Name string
	// Kind — тип записи (дискриминант Node)
	Kind Kind
	// ParentID — RootID или ID папки
	ParentID string
	// IsPublic — видимость, меняется только через publish/unpublish
	IsPublic bool
	// Node — Folder{} или Leaf{ContentRef}
	Node Node
	// CreatedAt — время создания (UTC)
	CreatedAt time.Time
}

// NewFolder создаёт запись папки.
func NewFolder(ownerID, name, parentID string, isPublic bool) *FileRecord {
	return &FileRecord{
		OwnerID:  ownerID,
		Name:     name,
		Kind:     KindFolder,
		ParentID: normalizeParent(parentID),
		IsPublic: isPublic,
		Node:     Folder{},
	}
}

// NewLeaf создаёт запись файла или изображения со ссылкой на содержимое.
func NewLeaf(ownerID, name string, kind Kind, parentID string, isPublic bool, contentRef string) *FileRecord {
	return &FileRecord{
		OwnerID:  ownerID,
		Name:     name,
		Kind:     kind,
		ParentID: normalizeParent(parentID),
		IsPublic: isPublic,
		Node:     Leaf{ContentRef: contentRef},
	}
}

// ContentRef возвращает ссылку на содержимое и признак её наличия.
// Для папок всегда ("", false).
func (r *FileRecord) ContentRef() (string, bool) {
	leaf, ok := r.Node.(Leaf)
	if !ok || leaf.ContentRef == "" {
		return "", false
	}
	return leaf.ContentRef, true
}

// IsFolder проверяет, что запись — папка.
func (r *FileRecord) IsFolder() bool {
	return r.Kind == KindFolder
}

// Validate проверяет инварианты записи:
// непустые владелец и имя, согласованность Kind и Node.
func (r *FileRecord) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("%w: пустой owner", ErrInvalidRecord)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: пустое имя", ErrInvalidRecord)
	}
	if _, ok := ParseKind(string(r.Kind)); !ok {
		return fmt.Errorf("%w: недопустимый тип %q", ErrInvalidRecord, r.Kind)
	}

	switch n := r.Node.(type) {
	case Folder:
		if r.Kind != KindFolder {
			return fmt.Errorf("%w: тип %s не может быть папкой", ErrInvalidRecord, r.Kind)
		}
	case Leaf:
		if r.Kind == KindFolder {
			return fmt.Errorf("%w: папка не может иметь содержимое", ErrInvalidRecord)
		}
		if n.ContentRef == "" {
			return fmt.Errorf("%w: отсутствует ссылка на содержимое", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: не задан вариант содержимого", ErrInvalidRecord)
	}
	return nil
}

// Clone возвращает независимую копию записи.
func (r *FileRecord) Clone() *FileRecord {
	copied := *r
	return &copied
}

func normalizeParent(parentID string) string {
	if parentID == "" {
		return RootID
	}
	return parentID
}
