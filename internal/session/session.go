// Package session issues and verifies signed session tokens and keeps the
// list of tokens revoked by logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Config holds signing settings.
type Config struct {
	Secret      string
	Issuer      string
	TTL         time.Duration
	RememberTTL time.Duration
}

// Claims identify the user a session belongs to.
type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs, parses and revokes session tokens.
type Manager struct {
	config  Config
	revoked RevocationStore
	now     func() time.Time
}

func NewManager(cfg Config, revoked RevocationStore) *Manager {
	if cfg.Issuer == "" {
		cfg.Issuer = "taskflow"
	}
	if cfg.RememberTTL < cfg.TTL {
		cfg.RememberTTL = cfg.TTL
	}
	if revoked == nil {
		revoked = NewMemoryStore()
	}
	return &Manager{config: cfg, revoked: revoked, now: time.Now}
}

// Issue creates a token for the user. remember selects the long lifetime.
func (m *Manager) Issue(userID uint, username string, remember bool) (string, *Claims, error) {
	ttl := m.config.TTL
	if remember {
		ttl = m.config.RememberTTL
	}
	now := m.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return token, claims, nil
}

// Parse validates signature, expiry and revocation.
func (m *Manager) Parse(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke invalidates the session until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	return m.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// TTL returns the lifetime used for a session.
func (m *Manager) TTL(remember bool) time.Duration {
	if remember {
		return m.config.RememberTTL
	}
	return m.config.TTL
}
