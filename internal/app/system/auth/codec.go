package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long a freshly issued session stays valid.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrEmptySecret is returned when the signing secret is not configured.
	ErrEmptySecret = errors.New("session secret is empty; provide ≥32 random chars")
	errNoSubject   = errors.New("session subject is empty")
)

// Claims is the payload carried by a session token: the user id in "sub"
// plus issue and expiry times.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the session subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Codec signs and verifies session tokens with HMAC-SHA256.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	key []byte
	now func() time.Time
}

// NewCodec builds a Codec from the shared signing secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{key: []byte(secret), now: time.Now}, nil
}

// Create returns a compact signed token for subject that expires at expiry.
func (c *Codec) Create(subject string, expiry time.Time) (string, error) {
	if subject == "" {
		return "", errNoSubject
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// Verify decodes token and reports whether it is a valid, unexpired session.
//
// Any failure (empty, malformed, wrong algorithm, bad signature, expired,
// missing subject) yields (nil, false). Callers treat that as
// "unauthenticated", never as a server error.
func (c *Codec) Verify(token string) (*Claims, bool) {
	if token == "" {
		return nil, false
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, false
	}
	return claims, true
}
