// Package middleware holds the gateway's authentication interceptor and its
// CORS middleware.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/auth/token"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

type contextKey struct{}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Auth returns an interceptor that requires a valid bearer token and stores
// its claims in the request context.
func Auth(v Verifier) pipeline.Interceptor {
	return pipeline.Interceptor{
		Name: "auth",
		Run: func(r *http.Request) (*http.Request, error) {
			raw, err := extractBearer(r)
			if err != nil {
				return nil, err
			}
			claims, err := v.Verify(raw)
			if err != nil {
				return nil, err
			}
			ctx := context.WithValue(r.Context(), contextKey{}, claims)
			return r.WithContext(ctx), nil
		},
	}
}

// ClaimsFromContext returns the claims stored by Auth, or nil.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(contextKey{}).(*token.Claims)
	return claims
}

// extractBearer reads "Authorization: Bearer <token>". A missing header or
// empty token is ErrMissingToken; any other scheme is ErrInvalidToken.
func extractBearer(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", apperrors.ErrMissingToken
	}
	scheme, raw, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", apperrors.ErrInvalidToken
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.ErrMissingToken
	}
	return raw, nil
}
