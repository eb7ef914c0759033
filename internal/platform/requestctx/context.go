package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey    contextKey = "github.com/supplynet/api/internal/platform/requestctx/logger"
	principalContextKey contextKey = "github.com/supplynet/api/internal/platform/requestctx/principal"
)

var noopLogger = zap.NewNop()

// Membership links the caller to a business or provider account. Exactly one of
// BusinessID/ProviderID is set per entry.
type Membership struct {
	BusinessID string
	ProviderID string
	Role       string
}

// Principal is the identity resolved by the upstream identity service. The core
// trusts it and never re-derives membership.
type Principal struct {
	UserID      string
	Email       string
	Memberships []Membership
}

// OwnsBusiness reports whether the principal holds a membership on the business.
func (p Principal) OwnsBusiness(businessID string) bool {
	if businessID == "" {
		return false
	}
	for _, m := range p.Memberships {
		if m.BusinessID == businessID {
			return true
		}
	}
	return false
}

// OwnsProvider reports whether the principal holds a membership on the provider.
func (p Principal) OwnsProvider(providerID string) bool {
	if providerID == "" {
		return false
	}
	for _, m := range p.Memberships {
		if m.ProviderID == providerID {
			return true
		}
	}
	return false
}

// BusinessIDs returns every business the principal belongs to.
func (p Principal) BusinessIDs() []string {
	var ids []string
	for _, m := range p.Memberships {
		if m.BusinessID != "" {
			ids = append(ids, m.BusinessID)
		}
	}
	return ids
}

// ProviderIDs returns every provider the principal belongs to.
func (p Principal) ProviderIDs() []string {
	var ids []string
	for _, m := range p.Memberships {
		if m.ProviderID != "" {
			ids = append(ids, m.ProviderID)
		}
	}
	return ids
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance used across the package.
func NoopLogger() *zap.Logger { return noopLogger }

// WithPrincipal stores the resolved principal on the context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFrom retrieves the resolved principal from context when present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey).(Principal)
	return principal, ok
}
