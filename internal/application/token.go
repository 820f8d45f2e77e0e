package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "desk-booking"

// DefaultTokenTTL is the lifetime of an access token when none is configured.
const DefaultTokenTTL = 12 * time.Hour

type accessClaims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer for secret. Non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenIssuer(secret []byte, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: now}, nil
}

// Issue signs a token for the principal and returns it with its expiry.
func (i *TokenIssuer) Issue(principal Principal) (string, time.Time, error) {
	if !principal.authenticated() {
		return "", time.Time{}, ErrUnauthorized
	}
	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)
	claims := accessClaims{
		Admin: principal.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   principal.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns the principal it was issued for. Every
// rejection wraps ErrInvalidCredentials.
func (i *TokenIssuer) Parse(raw string) (Principal, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	return Principal{UserID: claims.Subject, IsAdmin: claims.Admin}, nil
}
