// Package tokens issues and verifies the HS256 access tokens handed out by
// the auth services.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is used when an Issuer is built with a zero TTL.
const DefaultTTL = 24 * time.Hour

var (
	ErrSecretTooShort = errors.New("tokens: secret must be at least 32 bytes")
	ErrInvalid        = errors.New("tokens: invalid token")
)

// Claims carried by every access token. Subject holds the user id and ID the
// token id used for revocation.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer. The secret must be at least 32 bytes.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for the user, its id and its expiry.
func (i *Issuer) Issue(userID, email string) (token, tokenID string, expiresAt time.Time, err error) {
	now := i.now().UTC()
	expiresAt = now.Add(i.ttl)
	tokenID = uuid.NewString()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, tokenID, expiresAt, nil
}

// Verify parses token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
