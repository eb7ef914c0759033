package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/supplynet/api/internal/platform/requestctx"
)

var (
	// ErrTokenInvalid indicates the principal token failed verification or parsing.
	ErrTokenInvalid = errors.New("auth: invalid principal token")
	// ErrTokenMissing indicates no bearer token was supplied.
	ErrTokenMissing = errors.New("auth: missing bearer token")
)

// IdentityResolver turns an opaque caller token into a resolved principal. The
// upstream identity service owns membership data; the core trusts the result and
// never re-derives it.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (requestctx.Principal, error)
}

// IdentityResolverFunc adapts ordinary functions to IdentityResolver.
type IdentityResolverFunc func(ctx context.Context, token string) (requestctx.Principal, error)

// Resolve implements IdentityResolver.
func (f IdentityResolverFunc) Resolve(ctx context.Context, token string) (requestctx.Principal, error) {
	return f(ctx, token)
}

// membershipClaim mirrors the membership entries embedded in the identity token.
type membershipClaim struct {
	BusinessID string `json:"business_id,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	Role       string `json:"role,omitempty"`
}

type principalClaims struct {
	Email       string            `json:"email,omitempty"`
	Memberships []membershipClaim `json:"memberships"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HMAC-signed principal tokens issued by the identity service
// and extracts the membership claims.
type JWTResolver struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTResolverOption customises the resolver.
type JWTResolverOption func(*JWTResolver)

// WithClock overrides the time source used for expiry validation.
func WithClock(clock func() time.Time) JWTResolverOption {
	return func(r *JWTResolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewJWTResolver builds a resolver for tokens signed with the shared secret. When
// issuer is non-empty the token's iss claim must match.
func NewJWTResolver(secret, issuer string, opts ...JWTResolverOption) (*JWTResolver, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	resolver := &JWTResolver{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(resolver)
	}
	return resolver, nil
}

// Resolve implements IdentityResolver.
func (r *JWTResolver) Resolve(_ context.Context, token string) (requestctx.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return requestctx.Principal{}, ErrTokenMissing
	}

	claims := &principalClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return requestctx.Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if r.issuer != "" && claims.Issuer != r.issuer {
		return requestctx.Principal{}, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return requestctx.Principal{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	principal := requestctx.Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
	}
	for _, m := range claims.Memberships {
		if m.BusinessID == "" && m.ProviderID == "" {
			continue
		}
		principal.Memberships = append(principal.Memberships, requestctx.Membership{
			BusinessID: m.BusinessID,
			ProviderID: m.ProviderID,
			Role:       m.Role,
		})
	}
	return principal, nil
}
