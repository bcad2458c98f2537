// Пакет session — внешнее хранилище сессий: токен → идентификатор пользователя.
// Выдача токенов и проверка паролей выполняются вне files-manager;
// здесь только поиск, сохранение и отзыв.
package session

import (
	"context"
	"time"
)

// keyPrefix — префикс ключей сессий (auth_<token>).
const keyPrefix = "auth_"

// DefaultTTL — время жизни сессии по умолчанию.
const DefaultTTL = 24 * time.Hour

// Store — хранилище сессий.
type Store interface {
	// LookupUserID возвращает идентификатор пользователя по токену.
	// Отсутствующая или истёкшая сессия — ("", false, nil).
	LookupUserID(ctx context.Context, token string) (string, bool, error)
	// StoreToken сохраняет сессию с ограниченным временем жизни.
	StoreToken(ctx context.Context, token, userID string, ttl time.Duration) error
	// Revoke удаляет сессию. Отсутствие сессии ошибкой не считается.
	Revoke(ctx context.Context, token string) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// Key возвращает ключ хранилища для токена.
func Key(token string) string {
	return keyPrefix + token
}
