package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(now time.Time) *Manager {
	m := NewManager(Config{Secret: "test-secret", TTL: time.Hour, RememberTTL: 48 * time.Hour}, nil)
	m.now = func() time.Time { return now }
	return m
}

func TestManager_IssueAndParse(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	token, issued, err := m.Issue(7, "alice", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, "7", claims.Subject)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestManager_Remember(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	_, claims, err := m.Issue(1, "bob", true)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(48*time.Hour), claims.ExpiresAt.Time, time.Second)
	assert.Equal(t, 48*time.Hour, m.TTL(true))
	assert.Equal(t, time.Hour, m.TTL(false))
}

func TestManager_Expired(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	token, _, err := m.Issue(1, "bob", false)
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_RejectsForeignTokens(t *testing.T) {
	m := newTestManager(time.Now())

	other := NewManager(Config{Secret: "other-secret", TTL: time.Hour}, nil)
	foreign, _, err := other.Issue(1, "mallory", false)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"wrong secret":   foreign,
		"unsigned token": unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Parse(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestManager_Revoke(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Now())

	token, claims, err := m.Issue(3, "carol", false)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, claims))
	_, err = m.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	other, _, err := m.Issue(3, "carol", false)
	require.NoError(t, err)
	_, err = m.Parse(ctx, other)
	assert.NoError(t, err, "revoking one session leaves others valid")
}

func TestMemoryStore_ForgetsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, s.Revoke(ctx, "b", now.Add(time.Hour)))

	revoked, err := s.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, err = s.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "c", now.Add(time.Hour)))
	assert.Len(t, s.entries, 2)
}
