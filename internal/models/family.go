package models

import "time"

// Family is a named group of users sharing a budget ledger
type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FamilyMembership binds one user to one family with a role
type FamilyMembership struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	FamilyID int64     `json:"family_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// IsOwner reports whether the membership carries the owner role
func (m *FamilyMembership) IsOwner() bool {
	return m.Role == RoleOwner
}

// MemberInfo is one roster entry of a family
type MemberInfo struct {
	MembershipID int64     `json:"membership_id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	JoinedAt     time.Time `json:"joined_at"`
}

// CurrentFamily is a caller's family together with their standing in it
type CurrentFamily struct {
	Family       Family `json:"family"`
	MembershipID int64  `json:"membership_id"`
	Role         Role   `json:"role"`
}
