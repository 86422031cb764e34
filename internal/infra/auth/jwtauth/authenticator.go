package jwtauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sealtrack/internal/domain"
)

const defaultLeeway = 30 * time.Second

// Claims carries the identity fields sealtrack reads from access tokens.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens and issues them for tooling.
type Authenticator struct {
	signingKey []byte
	issuer     string
	leeway     time.Duration
	now        func() time.Time
}

type Option func(*Authenticator)

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLeeway(d time.Duration) Option {
	return func(a *Authenticator) { a.leeway = d }
}

func NewAuthenticator(signingKey, issuer string, opts ...Option) (*Authenticator, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, errors.New("jwt signing key is required")
	}
	a := &Authenticator{
		signingKey: []byte(signingKey),
		issuer:     strings.TrimSpace(issuer),
		leeway:     defaultLeeway,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Authenticator) Authenticate(_ context.Context, bearerToken string) (domain.Principal, error) {
	if a == nil {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	tokenString := strings.TrimSpace(bearerToken)
	if tokenString == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.signingKey, nil
	}, parserOpts...)
	if err != nil || !parsed.Valid {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if claims.Subject == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return domain.Principal{
		Subject: claims.Subject,
		Email:   domain.NormalizeEmail(claims.Email),
		Roles:   dedupe(claims.Roles),
	}, nil
}

// Issue signs a token for principal valid for ttl.
func (a *Authenticator) Issue(principal domain.Principal, ttl time.Duration) (string, error) {
	if principal.Subject == "" {
		return "", errors.New("subject is required")
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: principal.Email,
		Roles: principal.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.Subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(a.signingKey)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
