package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "lifeapp"

// ErrInvalidToken indicates an access token failed verification.
var ErrInvalidToken = errors.New("invalid access token")

// AccessTokens signs and verifies short-lived HS256 access tokens.
type AccessTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewAccessTokens constructs a signer using the shared secret.
func NewAccessTokens(secret string, ttl time.Duration) *AccessTokens {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AccessTokens{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token for userID valid from now until now+ttl.
func (a *AccessTokens) Sign(userID string, now time.Time) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id must be provided")
	}

	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// Verify validates the token signature and expiry and returns the caller it names.
func (a *AccessTokens) Verify(token string) (Principal, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: claims.Subject}, nil
}
