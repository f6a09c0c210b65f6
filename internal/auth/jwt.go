// Package auth resolves bearer tokens into caller identities.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"planning-poker/internal/poker"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// Manager signs and validates HS256 session tokens.
type Manager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// Claims carries the identity profile alongside the registered claims.
// The subject is the stable user id.
type Claims struct {
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Picture  string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

func NewManager(secretKey string, tokenDuration time.Duration) *Manager {
	return &Manager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate issues a token for the identity.
func (m *Manager) Generate(identity poker.Identity) (string, error) {
	if identity.ID == "" {
		return "", errors.New("identity id is required")
	}
	now := m.now()
	claims := &Claims{
		Name:     identity.Name,
		Nickname: identity.Nickname,
		Picture:  identity.Photo,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses the token and returns the caller identity.
func (m *Manager) Validate(tokenString string) (poker.Identity, error) {
	if tokenString == "" {
		return poker.Identity{}, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return poker.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return poker.Identity{}, ErrInvalidToken
	}
	return poker.Identity{
		ID:       claims.Subject,
		Name:     claims.Name,
		Nickname: claims.Nickname,
		Photo:    claims.Picture,
	}, nil
}
