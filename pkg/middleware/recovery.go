package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/pkg/httputil"
)

// Recovery turns a handler panic into a 500 response.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteErrorCode(w, r, http.StatusInternalServerError,
					apperrors.CodeInternal, "an internal error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
