// Package token issues and verifies the HS256 bearer tokens guarding the
// movie endpoints.
package token

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

type Service struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string
	now    func() time.Time
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		users:  cfg.Users,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for issuing and expiry checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Authenticate checks a username/password pair against the configured
// users.
func (s *Service) Authenticate(username, password string) error {
	want, ok := s.users[username]
	match := subtle.ConstantTimeCompare([]byte(password), []byte(want)) == 1
	if !ok || !match {
		return apperrors.ErrInvalidCredentials
	}
	return nil
}

// Issue signs a token for subject expiring after the configured TTL.
func (s *Service) Issue(subject string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses raw and returns its claims. Errors are ErrMissingToken,
// ErrTokenExpired or ErrInvalidToken.
func (s *Service) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, apperrors.ErrMissingToken
	}
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &rc,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrap(apperrors.ErrTokenExpired, err, "verifying token")
		}
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err, "verifying token")
	}
	if rc.Subject == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, nil, "token has no subject")
	}
	return &Claims{Subject: rc.Subject, ExpiresAt: rc.ExpiresAt.Time}, nil
}
