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

// InviteRepository handles database operations for invite codes
type InviteRepository struct {
	db database.DBTX
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db database.DBTX) *InviteRepository {
	return &InviteRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *InviteRepository) WithTx(tx database.DBTX) *InviteRepository {
	return &InviteRepository{db: tx}
}

// CreateInvite stores a fresh unused code for a family
func (r *InviteRepository) CreateInvite(ctx context.Context, code string, familyID, createdBy int64) (*models.InviteCode, error) {
	now := time.Now().UTC()
	query := "INSERT INTO invite_codes (code, family_id, is_used, created_by, created_at) VALUES (?, ?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, code, familyID, false, createdBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create invite code: %w", err)
	}

	return &models.InviteCode{
		ID:        id,
		Code:      code,
		FamilyID:  familyID,
		CreatedBy: &createdBy,
		CreatedAt: now,
	}, nil
}

// GetByCode retrieves an invite by its code
func (r *InviteRepository) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	query := `
		SELECT id, code, family_id, is_used, created_by, used_by, created_at, used_at
		FROM invite_codes
		WHERE code = ?
	`
	var inv models.InviteCode
	var createdBy, usedBy sql.NullInt64
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&inv.ID,
		&inv.Code,
		&inv.FamilyID,
		&inv.IsUsed,
		&createdBy,
		&usedBy,
		&inv.CreatedAt,
		&usedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}

	if createdBy.Valid {
		inv.CreatedBy = &createdBy.Int64
	}
	if usedBy.Valid {
		inv.UsedBy = &usedBy.Int64
	}
	if usedAt.Valid {
		inv.UsedAt = &usedAt.Time
	}

	return &inv, nil
}

// MarkUsed flips the invite to used only if it is still unused. It returns
// false when another redemption got there first.
func (r *InviteRepository) MarkUsed(ctx context.Context, inviteID, userID int64, usedAt time.Time) (bool, error) {
	query := "UPDATE invite_codes SET is_used = ?, used_by = ?, used_at = ? WHERE id = ? AND is_used = ?"
	result, err := r.db.ExecContext(ctx, query, true, userID, usedAt, inviteID, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark invite code used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}
