package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"familybudget/internal/database"
	"familybudget/internal/models"
)

// UserRepository handles database operations for user accounts
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx database.DBTX) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, username, email, password_hash, COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''), created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.OAuthProvider,
		&user.OAuthSubject,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a password-based account
func (r *UserRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, username, email, passwordHash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// CreateOAuthUser inserts an account that can only log in through a provider
func (r *UserRepository) CreateOAuthUser(ctx context.Context, username, email, provider, subject string) (*models.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (username, email, password_hash, oauth_provider, oauth_subject, created_at)
		VALUES (?, ?, '', ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, username, email, provider, subject, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	}

	return &models.User{
		ID:            id,
		Username:      username,
		Email:         email,
		OAuthProvider: provider,
		OAuthSubject:  subject,
		CreatedAt:     now,
	}, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	return r.getOne(ctx, query, id)
}

// GetUserByUsername retrieves a user by login name
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = ?"
	return r.getOne(ctx, query, username)
}

// GetUserByEmail retrieves the oldest user with the given email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = ? ORDER BY id LIMIT 1"
	return r.getOne(ctx, query, email)
}

// GetUserByOAuth retrieves a user linked to a provider subject
func (r *UserRepository) GetUserByOAuth(ctx context.Context, provider, subject string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE oauth_provider = ? AND oauth_subject = ?"
	return r.getOne(ctx, query, provider, subject)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UsernameExists reports whether a username is taken
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// LinkOAuth attaches a provider identity to an existing account
func (r *UserRepository) LinkOAuth(ctx context.Context, userID int64, provider, subject string) error {
	query := "UPDATE users SET oauth_provider = ?, oauth_subject = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, provider, subject, userID); err != nil {
		return fmt.Errorf("failed to link oauth identity: %w", err)
	}
	return nil
}
