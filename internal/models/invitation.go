package models

import "time"

// InviteCode is a single-use token granting join rights to one family
type InviteCode struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	FamilyID  int64      `json:"family_id"`
	IsUsed    bool       `json:"is_used"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	UsedBy    *int64     `json:"used_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// IsRedeemable reports whether the code can still be used to join
func (i *InviteCode) IsRedeemable() bool {
	return !i.IsUsed
}
