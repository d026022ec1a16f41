// Package identity maps bearer credentials to owner ids.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// validOwner matches owner ids that are safe in URLs and file paths.
var validOwner = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ErrUnauthorized is returned for missing, malformed, expired or forged
// credentials.
var ErrUnauthorized = errors.New("unauthorized")

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 30 * time.Minute

// Resolver turns an opaque credential into the caller's owner id.
type Resolver interface {
	Resolve(credential string) (string, error)
}

// JWTResolver issues and verifies HS256 JSON Web Tokens. The subject claim
// carries the owner id and every token must carry an expiry.
type JWTResolver struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTResolver creates a resolver signing with secret. A ttl of zero means
// DefaultTokenTTL.
func NewJWTResolver(secret string, ttl time.Duration) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("identity secret is empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("token ttl must not be negative, got %s", ttl)
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTResolver{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue mints a token for owner that expires after the resolver's ttl.
func (r *JWTResolver) Issue(owner string) (string, error) {
	if !validOwner.MatchString(owner) {
		return "", fmt.Errorf("invalid owner id %q", owner)
	}
	now := r.now()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (r *JWTResolver) Resolve(credential string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(credential, &claims,
		func(*jwt.Token) (any, error) { return r.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !validOwner.MatchString(claims.Subject) {
		return "", fmt.Errorf("%w: invalid subject %q", ErrUnauthorized, claims.Subject)
	}
	return claims.Subject, nil
}
