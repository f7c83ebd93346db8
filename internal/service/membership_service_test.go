package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"familybudget/internal/models"
	"familybudget/internal/repository"
)

func TestInviteAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.family(t, "Smiths", 0)
	b := f.user(t, "b")

	result, err := f.invites.CreateInvite(ctx, a, "")
	require.NoError(t, err)
	code := result.Invite.Code
	assert.False(t, result.Invite.IsUsed)
	_, err = uuid.Parse(code)
	assert.NoError(t, err, "invite code should be a UUID")

	membership, err := f.members.Join(ctx, b, code)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, membership.Role)
	assert.Equal(t, f.membership(t, a).FamilyID, membership.FamilyID)

	invite, err := repository.NewInviteRepository(f.db).GetByCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, invite.IsUsed)
	require.NotNil(t, invite.UsedBy)
	assert.Equal(t, b, *invite.UsedBy)
	assert.NotNil(t, invite.UsedAt)

	_, err = f.members.Join(ctx, b, code)
	assert.ErrorIs(t, err, ErrConflict)

	c := f.user(t, "c")
	_, err = f.members.Join(ctx, c, code)
	assert.ErrorIs(t, err, ErrInviteUsed)
	assert.Nil(t, f.membership(t, c))
}

func TestJoinErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	other, _ := f.family(t, "Jones", 0)

	tests := []struct {
		name   string
		userID int64
		code   func() string
		want   error
	}{
		{
			name:   "missing code",
			userID: f.user(t, "x"),
			code:   func() string { return "" },
			want:   ErrInvalidArgument,
		},
		{
			name:   "malformed code",
			userID: f.user(t, "x"),
			code:   func() string { return "not-a-uuid" },
			want:   ErrInvalidArgument,
		},
		{
			name:   "unknown code",
			userID: f.user(t, "x"),
			code:   uuid.NewString,
			want:   ErrNotFound,
		},
		{
			name:   "already in the same family",
			userID: members[0],
			code:   func() string { return f.mustInvite(t, a) },
			want:   ErrAlreadyInFamily,
		},
		{
			name:   "owner of another family",
			userID: other,
			code:   func() string { return f.mustInvite(t, a) },
			want:   ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.members.Join(ctx, tt.userID, tt.code())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFailedJoinDoesNotConsumeCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	code := f.mustInvite(t, a)

	_, err := f.members.Join(ctx, members[0], code)
	require.ErrorIs(t, err, ErrConflict)

	invite, err := repository.NewInviteRepository(f.db).GetByCode(ctx, code)
	require.NoError(t, err)
	assert.False(t, invite.IsUsed, "a rejected join must leave the code unused")

	_, err = f.members.Join(ctx, f.user(t, "late"), code)
	assert.NoError(t, err)
}

func TestConcurrentJoinSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.family(t, "Smiths", 0)
	code := f.mustInvite(t, a)

	const joiners = 10
	users := make([]int64, joiners)
	for i := range users {
		users[i] = f.user(t, "racer")
	}

	var successes, conflicts, other atomic.Int32
	var g errgroup.Group
	for _, userID := range users {
		g.Go(func() error {
			_, err := f.members.Join(ctx, userID, code)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				other.Add(1)
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(joiners-1), conflicts.Load())
	assert.Zero(t, other.Load())

	roster, err := f.members.ListMembers(ctx, a)
	require.NoError(t, err)
	assert.Len(t, roster, 2)
}

func TestCreateInvitePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)

	_, err := f.invites.CreateInvite(ctx, members[0], "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.invites.CreateInvite(ctx, f.user(t, "loner"), "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.invites.CreateInvite(ctx, a, "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	first, err := f.invites.CreateInvite(ctx, a, "")
	require.NoError(t, err)
	second, err := f.invites.CreateInvite(ctx, a, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Invite.Code, second.Invite.Code, "multiple outstanding codes may coexist")
}

func TestChangeRoleTransfersOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	b := members[0]
	bMembership := f.membership(t, b)

	require.NoError(t, f.members.ChangeRole(ctx, a, bMembership.ID, models.RoleOwner))

	assert.Equal(t, models.RoleOwner, f.membership(t, b).Role)
	assert.Equal(t, models.RoleMember, f.membership(t, a).Role)
	assert.Equal(t, 1, f.ownerCount(t, bMembership.FamilyID))

	// The former owner has lost owner rights
	err := f.members.ChangeRole(ctx, a, bMembership.ID, models.RoleMember)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestChangeRoleErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 2)
	other, otherMembers := f.family(t, "Jones", 1)
	aMembership := f.membership(t, a)
	b := f.membership(t, members[0])
	outsider := f.membership(t, otherMembers[0])

	tests := []struct {
		name         string
		callerID     int64
		membershipID int64
		role         models.Role
		want         error
	}{
		{name: "invalid role", callerID: a, membershipID: b.ID, role: models.Role(0), want: ErrInvalidArgument},
		{name: "invalid role beats not owner", callerID: members[1], membershipID: b.ID, role: models.Role(7), want: ErrInvalidArgument},
		{name: "no membership", callerID: f.user(t, "loner"), membershipID: b.ID, role: models.RoleOwner, want: ErrNotFound},
		{name: "not owner", callerID: members[1], membershipID: b.ID, role: models.RoleOwner, want: ErrForbidden},
		{name: "self", callerID: a, membershipID: aMembership.ID, role: models.RoleMember, want: ErrSelfTarget},
		{name: "other family", callerID: a, membershipID: outsider.ID, role: models.RoleOwner, want: ErrMemberNotFound},
		{name: "unknown membership", callerID: a, membershipID: 999999, role: models.RoleOwner, want: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.members.ChangeRole(ctx, tt.callerID, tt.membershipID, tt.role)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Demoting a member to member is a no-op success
	require.NoError(t, f.members.ChangeRole(ctx, a, b.ID, models.RoleMember))
	assert.Equal(t, models.RoleMember, f.membership(t, members[0]).Role)
	assert.Equal(t, 1, f.ownerCount(t, aMembership.FamilyID))
	assert.Equal(t, 1, f.ownerCount(t, f.membership(t, other).FamilyID))
}

func TestAssignHead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	b := members[0]
	_, outsiders := f.family(t, "Jones", 1)

	assert.ErrorIs(t, f.members.AssignHead(ctx, b, a), ErrForbidden)
	assert.ErrorIs(t, f.members.AssignHead(ctx, a, a), ErrInvalidArgument)
	assert.ErrorIs(t, f.members.AssignHead(ctx, a, outsiders[0]), ErrNotFound)

	require.NoError(t, f.members.AssignHead(ctx, a, b))
	assert.Equal(t, models.RoleOwner, f.membership(t, b).Role)
	assert.Equal(t, models.RoleMember, f.membership(t, a).Role)
	assert.Equal(t, 1, f.ownerCount(t, f.membership(t, a).FamilyID))
}

func TestOwnerLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	b := members[0]

	err := f.members.Leave(ctx, a)
	require.ErrorIs(t, err, ErrForbidden)
	assert.NotNil(t, f.membership(t, a))

	require.NoError(t, f.members.AssignHead(ctx, a, b))
	require.NoError(t, f.members.Leave(ctx, a))
	assert.Nil(t, f.membership(t, a))

	_, err = f.families.GetCurrentFamily(ctx, a)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.members.Leave(ctx, a), ErrNotFound)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 2)
	_, outsiders := f.family(t, "Jones", 1)
	aMembership := f.membership(t, a)
	b := f.membership(t, members[0])
	c := f.membership(t, members[1])

	assert.ErrorIs(t, f.members.RemoveMember(ctx, f.user(t, "loner"), b.ID), ErrNotFound)
	assert.ErrorIs(t, f.members.RemoveMember(ctx, members[1], b.ID), ErrForbidden)
	assert.ErrorIs(t, f.members.RemoveMember(ctx, a, aMembership.ID), ErrInvalidArgument)
	assert.ErrorIs(t, f.members.RemoveMember(ctx, a, f.membership(t, outsiders[0]).ID), ErrNotFound)

	category, err := f.ledger.CreateCategory(ctx, members[0], CategoryInput{Name: "Fuel"})
	require.NoError(t, err)
	recorded, err := f.ledger.CreateTransaction(ctx, members[0], validTransaction(category.ID))
	require.NoError(t, err)

	require.NoError(t, f.members.RemoveMember(ctx, a, b.ID))
	assert.Nil(t, f.membership(t, members[0]))
	assert.NotNil(t, f.membership(t, members[1]))

	// History survives the removal
	kept, err := f.ledger.GetTransaction(ctx, a, recorded.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.MemberID)
	assert.Equal(t, aMembership.FamilyID, kept.FamilyID)

	roster, err := f.members.ListMembers(ctx, a)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, aMembership.ID, roster[0].MembershipID)
	assert.Equal(t, c.ID, roster[1].MembershipID)
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 2)

	roster, err := f.members.ListMembers(ctx, members[1])
	require.NoError(t, err)
	require.Len(t, roster, 3)

	assert.Equal(t, a, roster[0].UserID)
	assert.Equal(t, models.RoleOwner, roster[0].Role)
	assert.Equal(t, members[0], roster[1].UserID)
	assert.Equal(t, members[1], roster[2].UserID)
	for _, m := range roster {
		assert.NotEmpty(t, m.Username)
		assert.NotEmpty(t, m.Email)
	}

	_, err = f.members.ListMembers(ctx, f.user(t, "loner"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func (f *fixture) mustInvite(t *testing.T, ownerID int64) string {
	t.Helper()
	result, err := f.invites.CreateInvite(context.Background(), ownerID, "")
	require.NoError(t, err)
	return result.Invite.Code
}

func TestJoinAcceptsCodeVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.family(t, "Smiths", 0)

	variants := []struct {
		name string
		form func(code string) string
	}{
		{name: "upper case", form: strings.ToUpper},
		{name: "braces", form: func(code string) string { return "{" + code + "}" }},
		{name: "urn prefix", form: func(code string) string { return "urn:uuid:" + code }},
		{name: "no hyphens", form: func(code string) string { return strings.ReplaceAll(code, "-", "") }},
	}

	for _, tt := range variants {
		t.Run(tt.name, func(t *testing.T) {
			code := f.mustInvite(t, a)
			membership, err := f.members.Join(ctx, f.user(t, "variant"), tt.form(code))
			require.NoError(t, err)
			assert.Equal(t, models.RoleMember, membership.Role)

			invite, err := repository.NewInviteRepository(f.db).GetByCode(ctx, code)
			require.NoError(t, err)
			assert.True(t, invite.IsUsed)
		})
	}
}

func TestJoinAfterFamilyDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.family(t, "Smiths", 0)
	code := f.mustInvite(t, a)

	require.NoError(t, f.families.DeleteFamily(ctx, a))

	_, err := f.members.Join(ctx, f.user(t, "late"), code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentOwnershipTransfers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		a, members := f.family(t, "Race", 4)
		familyID := f.membership(t, a).FamilyID
		second := f.membership(t, members[1]).ID
		fourth := f.membership(t, members[3]).ID

		transfers := []func() error{
			func() error { return f.members.AssignHead(ctx, a, members[0]) },
			func() error { return f.members.ChangeRole(ctx, a, second, models.RoleOwner) },
			func() error { return f.members.AssignHead(ctx, a, members[2]) },
			func() error { return f.members.ChangeRole(ctx, a, fourth, models.RoleOwner) },
		}

		var successes, forbidden atomic.Int32
		var g errgroup.Group
		for _, transfer := range transfers {
			g.Go(func() error {
				err := transfer()
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, ErrForbidden):
					forbidden.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int32(1), successes.Load(), "round %d", round)
		assert.Equal(t, int32(len(transfers)-1), forbidden.Load(), "round %d", round)
		assert.Equal(t, 1, f.ownerCount(t, familyID), "round %d", round)
		assert.Equal(t, models.RoleMember, f.membership(t, a).Role)
	}
}
