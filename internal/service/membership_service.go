package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"familybudget/internal/database"
	"familybudget/internal/metrics"
	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/validation"
)

// MembershipService handles joining, leaving and role transitions
type MembershipService struct {
	db          *database.DB
	families    *repository.FamilyRepository
	memberships *repository.MembershipRepository
	invites     *repository.InviteRepository
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

// NewMembershipService creates a new membership service
func NewMembershipService(db *database.DB, logger *logrus.Logger, m *metrics.Metrics) *MembershipService {
	return &MembershipService{
		db:          db,
		families:    repository.NewFamilyRepository(db),
		memberships: repository.NewMembershipRepository(db),
		invites:     repository.NewInviteRepository(db),
		logger:      logger,
		metrics:     m,
	}
}

// Join redeems an invite code. The membership insert and the used-flag
// flip commit together; a code that another redemption already consumed
// yields a conflict and leaves no trace.
func (s *MembershipService) Join(ctx context.Context, userID int64, code string) (*models.FamilyMembership, error) {
	code, err := validation.ValidateInviteCode(code)
	if err != nil {
		return nil, invalid(err)
	}

	var membership *models.FamilyMembership
	err = s.db.RunInTx(ctx, func(tx *database.Tx) error {
		invites := s.invites.WithTx(tx)
		memberships := s.memberships.WithTx(tx)

		invite, err := invites.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if invite == nil {
			return ErrInviteNotFound
		}

		// Serializes with DeleteFamily; a family deleted first takes its
		// invites with it
		found, err := s.families.WithTx(tx).LockFamily(ctx, invite.FamilyID)
		if err != nil {
			return err
		}
		if !found {
			return ErrInviteNotFound
		}
		if !invite.IsRedeemable() {
			return ErrInviteUsed
		}

		existing, err := memberships.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyInFamily
		}

		membership, err = memberships.AddMember(ctx, userID, invite.FamilyID, models.RoleMember)
		if err != nil {
			return conflictOnUnique(tx.GetDialect(), err, ErrAlreadyInFamily)
		}

		flipped, err := invites.MarkUsed(ctx, invite.ID, userID, time.Now().UTC())
		if err != nil {
			return err
		}
		if !flipped {
			return ErrInviteUsed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInviteUsed) || errors.Is(err, ErrAlreadyInFamily) {
			s.metrics.InviteEvent("conflict")
		}
		return nil, err
	}

	s.metrics.InviteEvent("redeemed")
	s.metrics.FamilyEvent("member_joined")
	s.logger.WithFields(logrus.Fields{
		"family_id":     membership.FamilyID,
		"user_id":       userID,
		"membership_id": membership.ID,
	}).Info("user joined family")

	return membership, nil
}

// RemoveMember deletes another membership in the caller's family. Owner only.
// Transactions recorded by the removed member stay in the family ledger.
func (s *MembershipService) RemoveMember(ctx context.Context, callerID, membershipID int64) error {
	var removed *models.FamilyMembership
	err := s.db.RunInTx(ctx, func(tx *database.Tx) error {
		memberships := s.memberships.WithTx(tx)

		caller, err := lockCallerFamily(ctx, s.families.WithTx(tx), memberships, callerID)
		if err != nil {
			return err
		}
		if !caller.IsOwner() {
			return ErrNotOwner
		}
		if membershipID == caller.ID {
			return ErrSelfTarget
		}

		removed, err = memberships.GetInFamily(ctx, membershipID, caller.FamilyID)
		if err != nil {
			return err
		}
		if removed == nil {
			return ErrMemberNotFound
		}
		return memberships.RemoveMember(ctx, removed.ID)
	})
	if err != nil {
		return err
	}

	s.metrics.FamilyEvent("member_removed")
	s.logger.WithFields(logrus.Fields{
		"family_id":     removed.FamilyID,
		"user_id":       callerID,
		"removed_user":  removed.UserID,
		"membership_id": removed.ID,
	}).Info("member removed from family")

	return nil
}

// ChangeRole sets the role of another membership in the caller's family.
// Promoting someone to owner demotes the caller in the same transaction.
func (s *MembershipService) ChangeRole(ctx context.Context, callerID, membershipID int64, role models.Role) error {
	if !role.Valid() {
		return invalid(validation.ValidationError{Field: "role", Message: "role must be owner or member"})
	}

	var caller, target *models.FamilyMembership
	err := s.db.RunInTx(ctx, func(tx *database.Tx) error {
		memberships := s.memberships.WithTx(tx)

		var err error
		caller, err = lockCallerFamily(ctx, s.families.WithTx(tx), memberships, callerID)
		if err != nil {
			return err
		}
		if !caller.IsOwner() {
			return ErrNotOwner
		}
		if membershipID == caller.ID {
			return ErrSelfTarget
		}

		target, err = memberships.GetInFamily(ctx, membershipID, caller.FamilyID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrMemberNotFound
		}

		if role == models.RoleOwner {
			return transferOwnership(ctx, memberships, caller, target)
		}
		if target.Role == role {
			return nil
		}
		return memberships.UpdateRole(ctx, target.ID, role)
	})
	if err != nil {
		return err
	}

	if role == models.RoleOwner {
		s.logTransfer(caller, target)
	}
	return nil
}

// AssignHead hands ownership to another member addressed by user id
func (s *MembershipService) AssignHead(ctx context.Context, callerID, newOwnerUserID int64) error {
	var caller, target *models.FamilyMembership
	err := s.db.RunInTx(ctx, func(tx *database.Tx) error {
		memberships := s.memberships.WithTx(tx)

		var err error
		caller, err = lockCallerFamily(ctx, s.families.WithTx(tx), memberships, callerID)
		if err != nil {
			return err
		}
		if !caller.IsOwner() {
			return ErrNotOwner
		}
		if newOwnerUserID == callerID {
			return ErrSelfTarget
		}

		target, err = memberships.GetUserInFamily(ctx, newOwnerUserID, caller.FamilyID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrMemberNotFound
		}
		return transferOwnership(ctx, memberships, caller, target)
	})
	if err != nil {
		return err
	}

	s.logTransfer(caller, target)
	return nil
}

// transferOwnership promotes to and demotes from. It must run inside the
// transaction that holds the family lock; any owner count other than one
// afterwards fails the transfer so the transaction rolls back.
func transferOwnership(ctx context.Context, memberships *repository.MembershipRepository, from, to *models.FamilyMembership) error {
	if err := memberships.UpdateRole(ctx, to.ID, models.RoleOwner); err != nil {
		return err
	}
	if err := memberships.UpdateRole(ctx, from.ID, models.RoleMember); err != nil {
		return err
	}

	owners, err := memberships.CountOwners(ctx, from.FamilyID)
	if err != nil {
		return err
	}
	if owners != 1 {
		return fmt.Errorf("ownership transfer in family %d left %d owners", from.FamilyID, owners)
	}
	return nil
}

func (s *MembershipService) logTransfer(from, to *models.FamilyMembership) {
	s.metrics.FamilyEvent("ownership_transferred")
	s.logger.WithFields(logrus.Fields{
		"family_id": from.FamilyID,
		"from_user": from.UserID,
		"to_user":   to.UserID,
	}).Info("family ownership transferred")
}

// Leave ends the caller's membership. Owners must transfer ownership or
// delete the family first.
func (s *MembershipService) Leave(ctx context.Context, callerID int64) error {
	var left *models.FamilyMembership
	err := s.db.RunInTx(ctx, func(tx *database.Tx) error {
		memberships := s.memberships.WithTx(tx)

		caller, err := lockCallerFamily(ctx, s.families.WithTx(tx), memberships, callerID)
		if err != nil {
			return err
		}
		if caller.IsOwner() {
			return ErrOwnerCannotLeave
		}

		left = caller
		return memberships.RemoveMember(ctx, caller.ID)
	})
	if err != nil {
		return err
	}

	s.metrics.FamilyEvent("member_left")
	s.logger.WithFields(logrus.Fields{
		"family_id": left.FamilyID,
		"user_id":   callerID,
	}).Info("user left family")

	return nil
}

// ListMembers returns the roster of the caller's family
func (s *MembershipService) ListMembers(ctx context.Context, callerID int64) ([]models.MemberInfo, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrNoFamily
	}
	return s.memberships.ListMembers(ctx, membership.FamilyID)
}
