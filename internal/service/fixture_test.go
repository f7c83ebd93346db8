package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"familybudget/internal/database"
	"familybudget/internal/metrics"
	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/security"
	"familybudget/internal/testutil"
	"familybudget/pkg/logger"
)

type fixture struct {
	db       *database.DB
	metrics  *metrics.Metrics
	families *FamilyService
	members  *MembershipService
	invites  *InviteService
	ledger   *LedgerService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := logger.Discard()
	m := metrics.New()

	return &fixture{
		db:       db,
		metrics:  m,
		families: NewFamilyService(db, log, m),
		members:  NewMembershipService(db, log, m),
		invites:  NewInviteService(db, nil, log, m),
		ledger:   NewLedgerService(db, log, m),
		auth:     NewAuthService(db, security.NewTokenManager("test-secret", time.Minute, time.Hour), log),
	}
}

func (f *fixture) user(t *testing.T, prefix string) int64 {
	t.Helper()
	return testutil.CreateUser(t, f.db, prefix).ID
}

// family creates a family owned by a new user and joins the given number
// of extra members through invite codes
func (f *fixture) family(t *testing.T, name string, members int) (ownerID int64, memberIDs []int64) {
	t.Helper()
	ctx := context.Background()

	ownerID = f.user(t, "owner")
	_, err := f.families.CreateFamily(ctx, ownerID, name)
	require.NoError(t, err)

	for i := 0; i < members; i++ {
		memberID := f.user(t, "member")
		f.join(t, ownerID, memberID)
		memberIDs = append(memberIDs, memberID)
	}
	return ownerID, memberIDs
}

func (f *fixture) join(t *testing.T, ownerID, userID int64) *models.FamilyMembership {
	t.Helper()
	ctx := context.Background()

	result, err := f.invites.CreateInvite(ctx, ownerID, "")
	require.NoError(t, err)
	membership, err := f.members.Join(ctx, userID, result.Invite.Code)
	require.NoError(t, err)
	return membership
}

func (f *fixture) membership(t *testing.T, userID int64) *models.FamilyMembership {
	t.Helper()
	m, err := repository.NewMembershipRepository(f.db).GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return m
}

func (f *fixture) ownerCount(t *testing.T, familyID int64) int {
	t.Helper()
	n, err := repository.NewMembershipRepository(f.db).CountOwners(context.Background(), familyID)
	require.NoError(t, err)
	return n
}
