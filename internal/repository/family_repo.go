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

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *FamilyRepository) WithTx(tx database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: tx}
}

// CreateFamily inserts a family row. The caller is responsible for adding
// the owner membership in the same transaction.
func (r *FamilyRepository) CreateFamily(ctx context.Context, name string, createdBy int64) (*models.Family, error) {
	now := time.Now().UTC()
	query := "INSERT INTO families (name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, name, createdBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	return &models.Family{
		ID:        id,
		Name:      name,
		CreatedBy: &createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, familyID int64) (*models.Family, error) {
	query := "SELECT id, name, created_by, created_at, updated_at FROM families WHERE id = ?"
	family := &models.Family{}
	var createdBy sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, familyID).Scan(
		&family.ID,
		&family.Name,
		&createdBy,
		&family.CreatedAt,
		&family.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	if createdBy.Valid {
		family.CreatedBy = &createdBy.Int64
	}

	return family, nil
}

// LockFamily takes a row lock on the family for the rest of the
// transaction. It returns false when the family no longer exists.
func (r *FamilyRepository) LockFamily(ctx context.Context, familyID int64) (bool, error) {
	query := "SELECT id FROM families WHERE id = ?" + r.db.GetDialect().ForUpdate()
	var id int64
	err := r.db.QueryRowContext(ctx, query, familyID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock family: %w", err)
	}
	return true, nil
}

// RenameFamily updates the family name
func (r *FamilyRepository) RenameFamily(ctx context.Context, familyID int64, name string) error {
	query := "UPDATE families SET name = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, name, time.Now().UTC(), familyID); err != nil {
		return fmt.Errorf("failed to rename family: %w", err)
	}
	return nil
}

// DeleteFamily removes a family; memberships, invite codes and
// transactions cascade
func (r *FamilyRepository) DeleteFamily(ctx context.Context, familyID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM families WHERE id = ?", familyID); err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	return nil
}
