package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbhub/internal/model"
)

func TestDeleteIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	admin := env.createUser(t, "admin")
	kb := env.createKB(t, owner.ID, "research", model.VisibilityPrivate)
	env.addMember(t, kb.ID, owner.ID, admin.ID, model.RoleAdmin)

	err := env.kbService.Delete(admin.ID, kb.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied, "admins may not delete, only the owner")

	require.NoError(t, env.kbService.Delete(owner.ID, kb.ID))

	_, err = env.kbService.Get(owner.ID, kb.ID)
	assert.ErrorIs(t, err, ErrKBNotFound)

	member, err := env.memberRepo.Get(kb.ID, admin.ID)
	require.NoError(t, err)
	assert.Nil(t, member, "delete must cascade to memberships")
}

func TestAddMemberRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	writer := env.createUser(t, "writer")
	guest := env.createUser(t, "guest")
	kb := env.createKB(t, owner.ID, "research", model.VisibilityPrivate)
	env.addMember(t, kb.ID, owner.ID, writer.ID, model.RoleWrite)

	_, err := env.kbService.AddMember(context.Background(), AddMemberInput{
		ActorID: writer.ID, KBID: kb.ID, UserID: guest.ID, Role: model.RoleRead,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	view, err := env.kbService.AddMember(context.Background(), AddMemberInput{
		ActorID: owner.ID, KBID: kb.ID, UserID: guest.ID, Role: model.RoleRead,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleRead, view.Role)
	assert.Equal(t, "guest", view.Username)
}

func TestAddMemberRejectsOwnerTargets(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	guest := env.createUser(t, "guest")
	kb := env.createKB(t, owner.ID, "research", model.VisibilityPrivate)

	_, err := env.kbService.AddMember(context.Background(), AddMemberInput{
		ActorID: owner.ID, KBID: kb.ID, UserID: owner.ID, Role: model.RoleRead,
	})
	assert.ErrorIs(t, err, ErrOwnerImmutable, "the owner must not get a membership row")

	_, err = env.kbService.AddMember(context.Background(), AddMemberInput{
		ActorID: owner.ID, KBID: kb.ID, UserID: guest.ID, Role: model.RoleOwner,
	})
	assert.ErrorIs(t, err, ErrOwnerImmutable, "the owner role is not grantable")
}

func TestAddMemberRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	guest := env.createUser(t, "guest")
	kb := env.createKB(t, owner.ID, "research", model.VisibilityPrivate)
	env.addMember(t, kb.ID, owner.ID, guest.ID, model.RoleRead)

	_, err := env.kbService.AddMember(context.Background(), AddMemberInput{
		ActorID: owner.ID, KBID: kb.ID, UserID: guest.ID, Role: model.RoleWrite,
	})
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestUpdateMemberRoleGuards(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	admin := env.createUser(t, "admin")
	reader := env.createUser(t, "reader")
	kb := env.createKB(t, owner.ID, "research", model.VisibilityPrivate)
	env.addMember(t, kb.ID, owner.ID, admin.ID, model.RoleAdmin)
	env.addMember(t, kb.ID, owner.ID, reader.ID, model.RoleRead)

	err := env.kbService.UpdateMemberRole(reader.ID, kb.ID, admin.ID, model.RoleRead)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = env.kbService.UpdateMemberRole(admin.ID, kb.ID, owner.ID, model.RoleRead)
	assert.ErrorIs(t, err, ErrOwnerImmutable)

	err = env.kbService.UpdateMemberRole(admin.ID, kb.ID, reader.ID, model.RoleOwner)
	assert.ErrorIs(t, err, ErrOwnerImmutable)

	err = env.kbService.UpdateMemberRole(admin.ID, kb.ID, 9999, model.RoleWrite)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	require.NoError(t, env.kbService.UpdateMemberRole(admin.ID, kb.ID, reader.ID, model.RoleWrite))
	member, err := env.memberRepo.Get(kb.ID, reader.ID)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, model.RoleWrite, member.Role)
}

func TestRemoveMemberGuards(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	admin := env.createUser(t, "admin")
	reader := env.createUser(t, "reader")
	kb := env.createKB(t, owner.ID, "research", model.VisibilityPrivate)
	env.addMember(t, kb.ID, owner.ID, admin.ID, model.RoleAdmin)
	env.addMember(t, kb.ID, owner.ID, reader.ID, model.RoleRead)

	err := env.kbService.RemoveMember(admin.ID, kb.ID, owner.ID)
	assert.ErrorIs(t, err, ErrOwnerImmutable)

	err = env.kbService.RemoveMember(reader.ID, kb.ID, admin.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, env.kbService.RemoveMember(admin.ID, kb.ID, reader.ID))
	member, err := env.memberRepo.Get(kb.ID, reader.ID)
	require.NoError(t, err)
	assert.Nil(t, member)
}

func TestPublicKBReadableButNotEditable(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	stranger := env.createUser(t, "stranger")
	kb := env.createKB(t, owner.ID, "wiki", model.VisibilityPublic)

	view, err := env.kbService.Get(stranger.ID, kb.ID)
	require.NoError(t, err, "public knowledge bases grant implicit read")
	assert.Equal(t, "wiki", view.Name)

	name := "renamed"
	_, err = env.kbService.Update(stranger.ID, kb.ID, UpdateKBInput{Name: &name})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestListMembersSynthesizesOwnerFirst(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	reader := env.createUser(t, "reader")
	kb := env.createKB(t, owner.ID, "research", model.VisibilityPrivate)
	env.addMember(t, kb.ID, owner.ID, reader.ID, model.RoleRead)

	members, err := env.kbService.ListMembers(owner.ID, kb.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, uint(0), members[0].ID)
	assert.Equal(t, owner.ID, members[0].UserID)
	assert.Equal(t, model.RoleOwner, members[0].Role)
	assert.Equal(t, model.RoleRead, members[1].Role)
}
