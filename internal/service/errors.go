// Пакет service — бизнес-логика files-manager.
// errors.go — типизированные ошибки сервиса.
package service

import (
	"errors"
)

// Категории ошибок сервиса. Проверяются через errors.Is.
var (
	// ErrValidation — некорректные входные данные (400)
	ErrValidation = errors.New("validation error")
	// ErrNotFound — запись отсутствует или недоступна запрашивающему (404)
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation — операция неприменима к записи (400)
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrTooLarge — содержимое превышает FM_MAX_FILE_SIZE (413)
	ErrTooLarge = errors.New("file too large")
	// ErrStorageIO — сбой хранилища содержимого (500)
	ErrStorageIO = errors.New("storage error")
)

// Сообщения, возвращаемые клиенту.
const (
	msgMissingName        = "Missing name"
	msgMissingType        = "Missing type"
	msgMissingData        = "Missing data"
	msgParentNotFound     = "Parent not found"
	msgParentNotFolder    = "Parent is not a folder"
	msgNotFound           = "Not found"
	msgFolderHasNoContent = "A folder doesn't have content"
	msgFileTooLarge       = "File too large"
)

// Error — ошибка сервиса с категорией и сообщением для клиента.
type Error struct {
	// Kind — одна из категорий Err*
	Kind error
	// Message — сообщение для клиента
	Message string
	// Cause — исходная ошибка (опционально)
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap позволяет errors.Is находить и категорию, и причину.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Message возвращает сообщение для клиента или пустую строку,
// если ошибка не является ошибкой сервиса.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
