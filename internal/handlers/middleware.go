package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prudhvinik1/smsledger/internal/logger"
	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/services"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityVerifier resolves a bearer token into the caller identity.
type IdentityVerifier interface {
	Verify(token string) (models.Identity, error)
}

// RequestLogger puts a request-scoped logger on the context and logs each
// request once it completes.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reqLog.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", wrapped.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate(verifier IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				WriteError(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}

			identity, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				WriteError(w, http.StatusUnauthorized, services.ErrUnauthorized.Error())
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			reqLog := logger.FromContext(ctx).With().Str("owner", identity.OwnerID).Logger()
			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, reqLog)))
		})
	}
}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok
}
