package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"familybudget/internal/database"
	"familybudget/internal/metrics"
	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/validation"
)

// FamilyService handles the family registry: create, read, rename, delete
type FamilyService struct {
	db          *database.DB
	families    *repository.FamilyRepository
	memberships *repository.MembershipRepository
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

// NewFamilyService creates a new family service
func NewFamilyService(db *database.DB, logger *logrus.Logger, m *metrics.Metrics) *FamilyService {
	return &FamilyService{
		db:          db,
		families:    repository.NewFamilyRepository(db),
		memberships: repository.NewMembershipRepository(db),
		logger:      logger,
		metrics:     m,
	}
}

// CreateFamily creates a family with the caller as its owner
func (s *FamilyService) CreateFamily(ctx context.Context, callerID int64, name string) (*models.Family, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateFamilyName(name); err != nil {
		return nil, invalid(err)
	}

	var family *models.Family
	err := s.db.RunInTx(ctx, func(tx *database.Tx) error {
		memberships := s.memberships.WithTx(tx)

		existing, err := memberships.GetByUserID(ctx, callerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyInFamily
		}

		family, err = s.families.WithTx(tx).CreateFamily(ctx, name, callerID)
		if err != nil {
			return err
		}

		_, err = memberships.AddMember(ctx, callerID, family.ID, models.RoleOwner)
		return conflictOnUnique(tx.GetDialect(), err, ErrAlreadyInFamily)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.FamilyEvent("created")
	s.logger.WithFields(logrus.Fields{
		"family_id": family.ID,
		"user_id":   callerID,
	}).Info("family created")

	return family, nil
}

// GetCurrentFamily returns the caller's family and their standing in it
func (s *FamilyService) GetCurrentFamily(ctx context.Context, callerID int64) (*models.CurrentFamily, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrNoFamily
	}

	family, err := s.families.GetFamilyByID(ctx, membership.FamilyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrNoFamily
	}

	return &models.CurrentFamily{
		Family:       *family,
		MembershipID: membership.ID,
		Role:         membership.Role,
	}, nil
}

// RenameFamily changes the name of the caller's family. Owner only.
func (s *FamilyService) RenameFamily(ctx context.Context, callerID int64, name string) (*models.Family, error) {
	var family *models.Family
	err := s.db.RunInTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)

		caller, err := lockCallerFamily(ctx, families, s.memberships.WithTx(tx), callerID)
		if err != nil {
			return err
		}
		if !caller.IsOwner() {
			return ErrNotOwner
		}

		name = strings.TrimSpace(name)
		if err := validation.ValidateFamilyName(name); err != nil {
			return invalid(err)
		}

		if err := families.RenameFamily(ctx, caller.FamilyID, name); err != nil {
			return err
		}
		family, err = families.GetFamilyByID(ctx, caller.FamilyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.FamilyEvent("renamed")
	s.logger.WithFields(logrus.Fields{
		"family_id": family.ID,
		"user_id":   callerID,
	}).Info("family renamed")

	return family, nil
}

// DeleteFamily removes the caller's family along with every membership,
// invite code and transaction bound to it. Owner only.
func (s *FamilyService) DeleteFamily(ctx context.Context, callerID int64) error {
	var familyID int64
	err := s.db.RunInTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)

		caller, err := lockCallerFamily(ctx, families, s.memberships.WithTx(tx), callerID)
		if err != nil {
			return err
		}
		if !caller.IsOwner() {
			return ErrNotOwner
		}

		familyID = caller.FamilyID
		return families.DeleteFamily(ctx, familyID)
	})
	if err != nil {
		return err
	}

	s.metrics.FamilyEvent("deleted")
	s.logger.WithFields(logrus.Fields{
		"family_id": familyID,
		"user_id":   callerID,
	}).Info("family deleted")

	return nil
}

// lockCallerFamily resolves the caller's membership and locks its family
// row so that concurrent transitions in the same family serialize. The
// membership is re-read under the lock.
func lockCallerFamily(ctx context.Context, families *repository.FamilyRepository, memberships *repository.MembershipRepository, callerID int64) (*models.FamilyMembership, error) {
	membership, err := memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrNoFamily
	}

	found, err := families.LockFamily(ctx, membership.FamilyID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoFamily
	}

	locked, err := memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload membership: %w", err)
	}
	if locked == nil || locked.FamilyID != membership.FamilyID {
		return nil, ErrNoFamily
	}
	return locked, nil
}
