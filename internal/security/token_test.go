package security

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManagerRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", 15*time.Minute, 24*time.Hour)

	pair, err := m.IssuePair(42)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access, pair.Refresh)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	userID, err := m.ParseAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	userID, err = m.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenManagerRejectsWrongType(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, time.Hour)
	pair, err := m.IssuePair(1)
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.Refresh)
	assert.True(t, errors.Is(err, ErrWrongTokenType))

	_, err = m.ParseRefresh(pair.Access)
	assert.True(t, errors.Is(err, ErrWrongTokenType))
}

func TestTokenManagerRejectsForeignSignature(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Minute, time.Hour)
	verifier := NewTokenManager("secret-b", time.Minute, time.Hour)

	pair, err := issuer.IssuePair(1)
	require.NoError(t, err)

	_, err = verifier.ParseAccess(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, time.Hour)
	issuedAt := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issuedAt }

	pair, err := m.IssuePair(1)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseAccess(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.ParseRefresh(pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManagerRejectsGarbage(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, time.Hour)
	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := m.ParseAccess(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}
