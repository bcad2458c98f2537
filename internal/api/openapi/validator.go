// validator.go — проверка входящих запросов по встроенному контракту.
package openapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/goartstore/files-manager/internal/api/errors"
)

// Validator возвращает middleware, проверяющий параметры и тело запроса
// по документу doc. Тело читается не больше maxBody байт, превышение — 413.
// Запросы к путям вне контракта пропускаются без проверки,
// аутентификацию выполняют middleware сессий.
func Validator(doc *openapi3.T, maxBody int64) (func(http.Handler) http.Handler, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, err
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.Body != nil && r.Body != http.NoBody {
				body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					apierrors.FileTooLarge(w, "File too large")
					return
				}
				if err != nil {
					apierrors.ValidationError(w, "Invalid request body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				apierrors.ValidationError(w, requestErrorMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// requestErrorMessage сводит ошибку валидации к короткому сообщению
// в стиле остальных ответов API.
func requestErrorMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			return "Invalid " + reqErr.Parameter.Name
		case reqErr.RequestBody != nil:
			return "Invalid JSON body"
		}
	}
	return "Invalid request"
}
