// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"familybudget/internal/database"
	"familybudget/internal/models"
	"familybudget/internal/repository"
)

// NewTestDB opens a migrated SQLite database in a per-test temp dir
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.NewSQLiteDialect(), database.DialectConfig{
		Path: filepath.Join(t.TempDir(), "familybudget.db"),
	})
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(), "run migrations")
	return db
}

var userSeq atomic.Int64

// CreateUser inserts a throwaway account with a unique username
func CreateUser(t *testing.T, db *database.DB, prefix string) *models.User {
	t.Helper()

	n := userSeq.Add(1)
	username := fmt.Sprintf("%s%d", prefix, n)
	user, err := repository.NewUserRepository(db).CreateUser(
		context.Background(), username, username+"@example.com", "")
	require.NoError(t, err, "create user %s", username)
	return user
}
