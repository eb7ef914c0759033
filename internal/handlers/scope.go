package handlers

import (
	"context"
	"net/http"

	"github.com/supplynet/api/internal/platform/httpx"
	"github.com/supplynet/api/internal/platform/requestctx"
)

// requirePrincipal pulls the authenticated principal off the request context,
// answering 401 when the auth middleware did not attach one.
func requirePrincipal(ctx context.Context, w http.ResponseWriter) (requestctx.Principal, bool) {
	principal, ok := requestctx.PrincipalFrom(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnauthenticated, "authentication required", http.StatusUnauthorized))
		return requestctx.Principal{}, false
	}
	return principal, true
}

// businessScope resolves the business the caller acts for: the first business
// membership on the principal.
func businessScope(ctx context.Context, w http.ResponseWriter, principal requestctx.Principal) (string, bool) {
	ids := principal.BusinessIDs()
	if len(ids) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeForbidden, "no business membership", http.StatusForbidden))
		return "", false
	}
	return ids[0], true
}

// providerScope resolves the provider the caller acts for.
func providerScope(ctx context.Context, w http.ResponseWriter, principal requestctx.Principal) (string, bool) {
	ids := principal.ProviderIDs()
	if len(ids) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeForbidden, "no provider membership", http.StatusForbidden))
		return "", false
	}
	return ids[0], true
}
