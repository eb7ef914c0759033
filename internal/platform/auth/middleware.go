package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/supplynet/api/internal/platform/httpx"
	"github.com/supplynet/api/internal/platform/requestctx"
)

const bearerPrefix = "bearer "

// RequirePrincipal returns middleware that resolves the Authorization bearer token
// into a principal and stores it on the request context. Requests without a valid
// token are rejected before any handler logic runs.
func RequirePrincipal(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" {
				httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeForbidden, "missing bearer token", http.StatusUnauthorized))
				return
			}

			principal, err := resolver.Resolve(ctx, token)
			if err != nil {
				requestctx.Logger(ctx).Warn("principal resolution failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeForbidden, "invalid credentials", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(ctx, principal)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return ""
}
