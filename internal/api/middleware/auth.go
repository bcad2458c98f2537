// auth.go — middleware аутентификации по заголовку x-token.
// SessionAuth разрешает токен в личность и кладёт её в контекст запроса,
// RequireUser пропускает только аутентифицированных пользователей.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/files-manager/internal/access"
	apierrors "github.com/bigkaa/goartstore/files-manager/internal/api/errors"
)

// TokenHeader — заголовок с токеном сессии.
const TokenHeader = "x-token"

// contextKey — тип для ключей контекста.
type contextKey string

const contextKeyIdentity contextKey = "identity"

// IdentityResolver разрешает токен в личность. Реализуется access.Control.
type IdentityResolver interface {
	// Resolve возвращает личность, для неизвестного токена — анонима.
	Resolve(ctx context.Context, token string) (access.Identity, error)
	// RequireAuthenticated возвращает ID пользователя или access.ErrUnauthorized.
	RequireAuthenticated(ctx context.Context, token string) (string, error)
}

// SessionAuth возвращает middleware, определяющий личность запрашивающего.
// Отсутствующий или неизвестный токен даёт анонима; недоступность
// хранилища сессий — 500.
func SessionAuth(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "session_auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r.Context(), r.Header.Get(TokenHeader))
			if err != nil {
				log.Error("Хранилище сессий недоступно",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Session store unavailable")
				return
			}
			noteUser(r.Context(), id.UserID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUser возвращает middleware для маршрутов, требующих пользователя:
// токен проверяется через RequireAuthenticated, аноним получает 401,
// недоступность хранилища сессий — 500.
func RequireUser(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "session_auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolver.RequireAuthenticated(r.Context(), r.Header.Get(TokenHeader))
			switch {
			case errors.Is(err, access.ErrUnauthorized):
				apierrors.Unauthorized(w, access.ErrUnauthorized.Error())
				return
			case err != nil:
				log.Error("Хранилище сессий недоступно",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Session store unavailable")
				return
			}
			noteUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), access.Identity{UserID: userID})))
		})
	}
}

// WithIdentity кладёт личность в контекст.
func WithIdentity(ctx context.Context, id access.Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// IdentityFromContext извлекает личность из контекста.
// Без SessionAuth возвращает анонима.
func IdentityFromContext(ctx context.Context) access.Identity {
	id, ok := ctx.Value(contextKeyIdentity).(access.Identity)
	if !ok {
		return access.Anonymous
	}
	return id
}
