// Package auth issues and verifies admin session tokens. There is a
// single admin identity configured from the environment; sessions are
// stateless HS256 JWTs.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims is the session token payload.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Sessions struct {
	secret       []byte
	adminEmail   string
	passwordHash string
	ttl          time.Duration
	now          func() time.Time
}

func NewSessions(secret, adminEmail, passwordHash string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{
		secret:       []byte(secret),
		adminEmail:   strings.ToLower(strings.TrimSpace(adminEmail)),
		passwordHash: passwordHash,
		ttl:          ttl,
		now:          time.Now,
	}
}

// SetClock overrides the token clock. Test hook.
func (s *Sessions) SetClock(now func() time.Time) {
	s.now = now
}

// Login checks the credentials against the configured admin identity and
// returns a signed session token.
func (s *Sessions) Login(email, password string) (string, error) {
	if strings.ToLower(strings.TrimSpace(email)) != s.adminEmail {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	claims := &Claims{
		Email: s.adminEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a session token, returning its claims.
func (s *Sessions) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Email != s.adminEmail {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// HashPassword produces a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
