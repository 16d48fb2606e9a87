package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbhub/internal/client/api"
)

func privateKB(ownerID uint) api.KnowledgeBase {
	return api.KnowledgeBase{ID: 1, Name: "notes", Visibility: "private", OwnerID: ownerID}
}

func TestOwnerWithoutMembershipRow(t *testing.T) {
	kb := privateKB(7)
	authority := NewAuthority(kb, nil, 7)

	assert.Equal(t, RoleOwner, authority.EffectiveRole())
	assert.True(t, authority.CanDelete())
	assert.True(t, authority.CanManageMembers())
	assert.True(t, authority.CanEdit())
	assert.True(t, authority.CanInvite())
}

func TestOwnerCannotTargetSelf(t *testing.T) {
	kb := privateKB(7)
	authority := NewAuthority(kb, nil, 7)

	assert.True(t, authority.CanDelete())
	assert.False(t, authority.CanChangeRole(7))
	assert.False(t, authority.CanRemove(7))
}

func TestEffectiveRoleFromMembershipRow(t *testing.T) {
	kb := privateKB(1)
	members := []api.Member{
		{UserID: 2, Username: "alice", Role: RoleAdmin},
		{UserID: 3, Username: "bob", Role: RoleRead},
	}

	assert.Equal(t, RoleAdmin, NewAuthority(kb, members, 2).EffectiveRole())
	assert.Equal(t, RoleRead, NewAuthority(kb, members, 3).EffectiveRole())
	assert.Equal(t, RoleNone, NewAuthority(kb, members, 4).EffectiveRole())
}

func TestPublicVisibilityGrantsImplicitRead(t *testing.T) {
	kb := api.KnowledgeBase{ID: 1, Visibility: "public", OwnerID: 1}
	authority := NewAuthority(kb, nil, 9)

	assert.Equal(t, RoleRead, authority.EffectiveRole())
	assert.False(t, authority.CanManageMembers())
	assert.False(t, authority.CanDelete())
}

func TestAdminManagesButCannotDelete(t *testing.T) {
	kb := privateKB(1)
	members := []api.Member{{UserID: 2, Role: RoleAdmin}}
	authority := NewAuthority(kb, members, 2)

	assert.True(t, authority.CanManageMembers())
	assert.True(t, authority.CanEdit())
	assert.True(t, authority.CanInvite())
	assert.False(t, authority.CanDelete())
}

func TestOwnerRoleImmutableThroughRoleChange(t *testing.T) {
	kb := privateKB(1)
	members := []api.Member{
		{UserID: 2, Role: RoleAdmin},
		{UserID: 3, Role: RoleWrite},
	}
	authority := NewAuthority(kb, members, 2)

	assert.False(t, authority.CanChangeRole(1), "owner role must stay immutable")
	assert.False(t, authority.CanRemove(1))
	assert.True(t, authority.CanChangeRole(3))
	assert.True(t, authority.CanRemove(3))
}

func TestReadMemberHasNoManagementRights(t *testing.T) {
	kb := privateKB(1)
	members := []api.Member{{UserID: 5, Role: RoleRead}}
	authority := NewAuthority(kb, members, 5)

	assert.False(t, authority.CanManageMembers())
	assert.False(t, authority.CanChangeRole(1))
	assert.False(t, authority.CanRemove(5))
}

func TestResolveIsDeterministic(t *testing.T) {
	kb := privateKB(1)
	members := []api.Member{{UserID: 2, Role: RoleAdmin}}

	first := Resolve(kb, members, 2)
	second := Resolve(kb, members, 2)
	require.Equal(t, first, second)

	assert.Equal(t, Capabilities{
		EffectiveRole:    RoleAdmin,
		CanManageMembers: true,
		CanEdit:          true,
		CanDelete:        false,
		CanInvite:        true,
	}, first)
}
