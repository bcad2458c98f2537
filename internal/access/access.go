// Пакет access — определение личности запрашивающего по токену
// и проверки права чтения и изменения записей.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/files-manager/internal/session"
)

// ErrUnauthorized — операция требует аутентифицированного пользователя.
var ErrUnauthorized = errors.New("Unauthorized")

// Identity — личность запрашивающего. Пустой UserID — аноним.
type Identity struct {
	UserID string
}

// Anonymous — личность неаутентифицированного запроса.
var Anonymous = Identity{}

// IsAnonymous сообщает, что пользователь не аутентифицирован.
func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

// Control разрешает токены через хранилище сессий.
type Control struct {
	sessions session.Store
}

// New создаёт Control поверх хранилища сессий.
func New(sessions session.Store) *Control {
	return &Control{sessions: sessions}
}

// Resolve возвращает личность по токену. Пустой токен и отсутствующая
// сессия дают анонима без ошибки; ошибка возвращается только при
// недоступности хранилища.
func (c *Control) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Anonymous, nil
	}
	userID, ok, err := c.sessions.LookupUserID(ctx, token)
	if err != nil {
		return Anonymous, fmt.Errorf("ошибка разрешения токена: %w", err)
	}
	if !ok {
		return Anonymous, nil
	}
	return Identity{UserID: userID}, nil
}

// RequireAuthenticated возвращает идентификатор пользователя или ErrUnauthorized.
func (c *Control) RequireAuthenticated(ctx context.Context, token string) (string, error) {
	id, err := c.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	if id.IsAnonymous() {
		return "", ErrUnauthorized
	}
	return id.UserID, nil
}

// CanRead — запись публичная, либо запрашивающий её владелец.
func CanRead(id Identity, rec *model.FileRecord) bool {
	return rec.IsPublic || IsOwner(id, rec)
}

// CanMutate — изменять запись может только владелец.
func CanMutate(id Identity, rec *model.FileRecord) bool {
	return IsOwner(id, rec)
}

// IsOwner сообщает, что аутентифицированный пользователь владеет записью.
func IsOwner(id Identity, rec *model.FileRecord) bool {
	return !id.IsAnonymous() && id.UserID == rec.OwnerID
}
