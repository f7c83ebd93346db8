package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"familybudget/internal/database"
	"familybudget/internal/metrics"
	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/validation"
)

// InviteMailer delivers invite codes by e-mail
type InviteMailer interface {
	IsEnabled() bool
	SendInviteEmail(ctx context.Context, toEmail, familyName, inviterName, code string) error
}

// InviteResult is a freshly issued code plus the delivery outcome
type InviteResult struct {
	Invite    *models.InviteCode
	EmailSent bool
}

const inviteCodeAttempts = 3

// InviteService issues invite codes for a family
type InviteService struct {
	db          *database.DB
	families    *repository.FamilyRepository
	memberships *repository.MembershipRepository
	invites     *repository.InviteRepository
	users       *repository.UserRepository
	mailer      InviteMailer
	logger      *logrus.Logger
	metrics     *metrics.Metrics
	newCode     func() string
}

// NewInviteService creates a new invite service. mailer may be nil.
func NewInviteService(db *database.DB, mailer InviteMailer, logger *logrus.Logger, m *metrics.Metrics) *InviteService {
	return &InviteService{
		db:          db,
		families:    repository.NewFamilyRepository(db),
		memberships: repository.NewMembershipRepository(db),
		invites:     repository.NewInviteRepository(db),
		users:       repository.NewUserRepository(db),
		mailer:      mailer,
		logger:      logger,
		metrics:     m,
		newCode:     uuid.NewString,
	}
}

// CreateInvite issues a single-use code for the caller's family. Only the
// owner may invite. When email is given the code is also mailed; a failed
// delivery is logged and reported, never fatal.
func (s *InviteService) CreateInvite(ctx context.Context, callerID int64, email string) (*InviteResult, error) {
	email = strings.TrimSpace(email)
	if email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return nil, invalid(err)
		}
	}

	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil || !membership.IsOwner() {
		return nil, ErrNotOwner
	}

	var invite *models.InviteCode
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		invite, err = s.invites.CreateInvite(ctx, s.newCode(), membership.FamilyID, callerID)
		if err == nil || !s.db.Dialect.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.metrics.InviteEvent("created")
	s.logger.WithFields(logrus.Fields{
		"family_id": membership.FamilyID,
		"user_id":   callerID,
		"invite_id": invite.ID,
	}).Info("invite code created")

	result := &InviteResult{Invite: invite}
	if email != "" && s.mailer != nil && s.mailer.IsEnabled() {
		result.EmailSent = s.mailInvite(ctx, membership, callerID, email, invite.Code)
	}
	return result, nil
}

func (s *InviteService) mailInvite(ctx context.Context, membership *models.FamilyMembership, callerID int64, email, code string) bool {
	entry := s.logger.WithFields(logrus.Fields{
		"family_id": membership.FamilyID,
		"to":        email,
	})

	family, err := s.families.GetFamilyByID(ctx, membership.FamilyID)
	if err == nil && family == nil {
		err = errors.New("family disappeared")
	}
	if err != nil {
		entry.WithError(err).Warn("failed to load family for invite email")
		return false
	}

	inviterName := "A family member"
	if inviter, err := s.users.GetUserByID(ctx, callerID); err == nil && inviter != nil {
		inviterName = inviter.Username
	}

	if err := s.mailer.SendInviteEmail(ctx, email, family.Name, inviterName, code); err != nil {
		entry.WithError(err).Warn("failed to send invite email")
		return false
	}
	return true
}
