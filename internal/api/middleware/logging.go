// logging.go — журнал HTTP-запросов files-manager через slog.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const contextKeyRequestMeta contextKey = "request_meta"

// requestMeta — сведения, которые внутренние middleware сообщают журналу.
// Заполняется в горутине запроса, читается после next.ServeHTTP.
type requestMeta struct {
	userID string
}

// noteUser запоминает пользователя запроса для строки журнала.
func noteUser(ctx context.Context, userID string) {
	if meta, ok := ctx.Value(contextKeyRequestMeta).(*requestMeta); ok {
		meta.userID = userID
	}
}

// responseWriter перехватывает статус и размер ответа.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// RequestLogger пишет строку журнала на каждый запрос. Уровень зависит
// от статуса: 5xx — ERROR, 4xx — WARN, остальное — INFO. В строку попадают
// шаблон маршрута chi, request id (если перед логгером стоит
// chi middleware.RequestID) и пользователь, определённый SessionAuth
// или RequireUser. Сам токен не логируется.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			meta := &requestMeta{}
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), contextKeyRequestMeta, meta)))

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			if meta.userID != "" {
				attrs = append(attrs, slog.String("user_id", meta.userID))
			}
			log.LogAttrs(r.Context(), level, "HTTP запрос", attrs...)
		})
	}
}
