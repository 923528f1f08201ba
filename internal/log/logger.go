package log

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"
)

func FromContext(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx)
}

func WithLogger(ctx context.Context, logger logr.Logger) context.Context {
	return logr.NewContext(ctx, logger)
}

// Middleware puts logger into every request context so resolvers can pick it up.
func Middleware(logger logr.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.WithValues("method", r.Method, "path", r.URL.Path)
		r = r.WithContext(WithLogger(r.Context(), reqLogger))
		next.ServeHTTP(w, r)
	})
}
