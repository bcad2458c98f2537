package pipeline

import "errors"

// ErrFileNotFound — запись отсутствует или принадлежит другому владельцу.
var ErrFileNotFound = errors.New("file not found for this owner")

// ErrMissingIDs — в задании не указан файл или владелец.
var ErrMissingIDs = errors.New("missing file id or requester id")

// permanentError помечает ошибку как не подлежащую повтору.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как постоянную: задание не повторяется.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка как постоянная.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
