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

// MembershipRepository handles database operations for family memberships
type MembershipRepository struct {
	db database.DBTX
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db database.DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *MembershipRepository) WithTx(tx database.DBTX) *MembershipRepository {
	return &MembershipRepository{db: tx}
}

const membershipColumns = "id, user_id, family_id, role, joined_at"

func scanMembership(row interface{ Scan(...any) error }) (*models.FamilyMembership, error) {
	m := &models.FamilyMembership{}
	if err := row.Scan(&m.ID, &m.UserID, &m.FamilyID, &m.Role, &m.JoinedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// AddMember inserts a membership. A second membership for the same user
// fails on the unique user_id index.
func (r *MembershipRepository) AddMember(ctx context.Context, userID, familyID int64, role models.Role) (*models.FamilyMembership, error) {
	now := time.Now().UTC()
	query := "INSERT INTO family_memberships (user_id, family_id, role, joined_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, userID, familyID, role, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add family member: %w", err)
	}

	return &models.FamilyMembership{
		ID:       id,
		UserID:   userID,
		FamilyID: familyID,
		Role:     role,
		JoinedAt: now,
	}, nil
}

// GetByUserID returns the single membership a user holds, or nil
func (r *MembershipRepository) GetByUserID(ctx context.Context, userID int64) (*models.FamilyMembership, error) {
	query := "SELECT " + membershipColumns + " FROM family_memberships WHERE user_id = ?"
	return r.getOne(ctx, query, userID)
}

// GetInFamily returns a membership only if it belongs to familyID
func (r *MembershipRepository) GetInFamily(ctx context.Context, membershipID, familyID int64) (*models.FamilyMembership, error) {
	query := "SELECT " + membershipColumns + " FROM family_memberships WHERE id = ? AND family_id = ?"
	return r.getOne(ctx, query, membershipID, familyID)
}

// GetUserInFamily returns the membership of userID in familyID, or nil
func (r *MembershipRepository) GetUserInFamily(ctx context.Context, userID, familyID int64) (*models.FamilyMembership, error) {
	query := "SELECT " + membershipColumns + " FROM family_memberships WHERE user_id = ? AND family_id = ?"
	return r.getOne(ctx, query, userID, familyID)
}

func (r *MembershipRepository) getOne(ctx context.Context, query string, args ...any) (*models.FamilyMembership, error) {
	m, err := scanMembership(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMembers returns the family roster ordered by join time
func (r *MembershipRepository) ListMembers(ctx context.Context, familyID int64) ([]models.MemberInfo, error) {
	query := `
		SELECT fm.id, fm.user_id, u.username, u.email, fm.role, fm.joined_at
		FROM family_memberships fm
		INNER JOIN users u ON u.id = fm.user_id
		WHERE fm.family_id = ?
		ORDER BY fm.joined_at, fm.id
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	members := []models.MemberInfo{}
	for rows.Next() {
		var m models.MemberInfo
		if err := rows.Scan(&m.MembershipID, &m.UserID, &m.Username, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate family members: %w", err)
	}

	return members, nil
}

// ListUserIDs returns the user ids of every member of a family
func (r *MembershipRepository) ListUserIDs(ctx context.Context, familyID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM family_memberships WHERE family_id = ? ORDER BY id", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan family user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountOwners returns how many owner memberships a family has
func (r *MembershipRepository) CountOwners(ctx context.Context, familyID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM family_memberships WHERE family_id = ? AND role = ?"
	if err := r.db.QueryRowContext(ctx, query, familyID, models.RoleOwner).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}

// UpdateRole sets the role of a membership
func (r *MembershipRepository) UpdateRole(ctx context.Context, membershipID int64, role models.Role) error {
	query := "UPDATE family_memberships SET role = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, role, membershipID); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership. Transactions recorded under it keep
// their family binding.
func (r *MembershipRepository) RemoveMember(ctx context.Context, membershipID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM family_memberships WHERE id = ?", membershipID); err != nil {
		return fmt.Errorf("failed to remove family member: %w", err)
	}
	return nil
}
