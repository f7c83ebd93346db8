package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familybudget/internal/models"
	"familybudget/internal/validation"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)

	_, err = f.auth.Register(ctx, "alice", "other@example.com", "password123")
	assert.ErrorIs(t, err, ErrConflict)

	pair, err := f.auth.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	userID, err := f.auth.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	_, err = f.auth.Authenticate(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrUnauthenticated, "refresh tokens are not access tokens")

	refreshed, err := f.auth.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Access)

	_, err = f.auth.Refresh(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "bob", "bob@example.com", "password123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "bob", password: "password124"},
		{name: "unknown user", username: "carol", password: "password123"},
		{name: "empty password", username: "bob", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Login(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
		field    string
	}{
		{name: "missing username", username: "", email: "a@example.com", password: "password123", field: "username"},
		{name: "bad email", username: "dave", email: "dave", password: "password123", field: "email"},
		{name: "short password", username: "dave", email: "dave@example.com", password: "short", field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, tt.username, tt.email, tt.password)
			require.ErrorIs(t, err, ErrInvalidArgument)
			var verr validation.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loner := f.user(t, "loner")
	profile, err := f.auth.Me(ctx, loner)
	require.NoError(t, err)
	assert.Equal(t, loner, profile.User.ID)
	assert.Nil(t, profile.Family)

	owner, _ := f.family(t, "Smiths", 0)
	profile, err = f.auth.Me(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, profile.Family)
	assert.Equal(t, "Smiths", profile.Family.Family.Name)
	assert.Equal(t, models.RoleOwner, profile.Family.Role)

	_, err = f.auth.Me(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOAuthLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.auth.OAuthLogin(ctx, "google", "sub-1", "erin@example.com", "Erin")
	require.NoError(t, err)
	first, err := f.auth.Authenticate(ctx, pair.Access)
	require.NoError(t, err)

	pair, err = f.auth.OAuthLogin(ctx, "google", "sub-1", "erin@example.com", "Erin")
	require.NoError(t, err)
	second, err := f.auth.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same subject logs into the same account")

	// An existing password account is linked by e-mail
	frank, err := f.auth.Register(ctx, "frank", "frank@example.com", "password123")
	require.NoError(t, err)
	pair, err = f.auth.OAuthLogin(ctx, "google", "sub-2", "frank@example.com", "Frank")
	require.NoError(t, err)
	linked, err := f.auth.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, frank.ID, linked)

	// A second account whose e-mail local part collides gets a distinct username
	pair, err = f.auth.OAuthLogin(ctx, "google", "sub-3", "erin@other.example", "Erin Two")
	require.NoError(t, err)
	third, err := f.auth.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	_, err = f.auth.OAuthLogin(ctx, "google", "", "x@example.com", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestOAuthUsernameFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		subject     string
		email       string
		displayName string
		want        string
	}{
		{name: "display name", subject: "sub-a", email: "%%@example.com", displayName: "Gail Smith", want: "GailSmith"},
		{name: "too short display name", subject: "sub-b", email: "%@example.org", displayName: "G", want: "google"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := f.auth.OAuthLogin(ctx, "google", tt.subject, tt.email, tt.displayName)
			require.NoError(t, err)
			userID, err := f.auth.Authenticate(ctx, pair.Access)
			require.NoError(t, err)

			profile, err := f.auth.Me(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, profile.User.Username)
		})
	}
}
