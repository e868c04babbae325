package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembersAddRejectsUnknownRole(t *testing.T) {
	members := NewMembers(&stubStore{}, NewCatalog())
	_, err := members.Add(context.Background(), "F1", "owner1", "U2", Role("wizard"))
	require.ErrorIs(t, err, ErrUnknownRole)
	assert.Contains(t, err.Error(), "wizard")
}

func TestMembersAddDuplicateIsAnError(t *testing.T) {
	store := &stubStore{}
	members := NewMembers(store, NewCatalog())

	change, err := members.Add(context.Background(), "F1", "owner1", "U2", RoleManager)
	require.NoError(t, err)
	assert.Equal(t, RoleManager, change.NewRole)
	assert.Equal(t, "owner1", change.ActorID)

	// Re-adding with a different role must not silently upsert.
	_, err = members.Add(context.Background(), "F1", "owner1", "U2", RoleWorker)
	require.ErrorIs(t, err, ErrDuplicateMembership)
	assert.Equal(t, RoleManager, store.roles["F1/U2"], "first role must survive")
}

func TestMembersUpdateRoleRequiresExistingMembership(t *testing.T) {
	members := NewMembers(&stubStore{}, NewCatalog())
	_, err := members.UpdateRole(context.Background(), "F1", "owner1", "ghost", RoleMember)
	require.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestMembersOwnerDemotionIsOwnerOnly(t *testing.T) {
	store := &stubStore{roles: map[string]Role{
		"F1/ownerUser": RoleOwner,
		"F1/manager1":  RoleManager,
		"F1/owner2":    RoleOwner,
	}}
	members := NewMembers(store, NewCatalog())

	// A manager passed the upstream farm/manage gate but still cannot
	// demote the owner.
	_, err := members.UpdateRole(context.Background(), "F1", "manager1", "ownerUser", RoleMember)
	require.ErrorIs(t, err, ErrOwnershipRestricted)
	assert.Equal(t, RoleOwner, store.roles["F1/ownerUser"])

	// Another owner can.
	change, err := members.UpdateRole(context.Background(), "F1", "owner2", "ownerUser", RoleMember)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, change.OldRole)
	assert.Equal(t, RoleMember, change.NewRole)
	assert.Equal(t, RoleMember, store.roles["F1/ownerUser"])
}

func TestMembersUpdateRoleKeepingOwnerDoesNotRequireOwnerActor(t *testing.T) {
	store := &stubStore{roles: map[string]Role{
		"F1/worker1": RoleWorker,
		"F1/admin1":  RoleAdmin,
	}}
	members := NewMembers(store, NewCatalog())

	change, err := members.UpdateRole(context.Background(), "F1", "admin1", "worker1", RoleMember)
	require.NoError(t, err)
	assert.Equal(t, RoleWorker, change.OldRole)
	assert.Equal(t, RoleMember, change.NewRole)
}

func TestMembersRemoveOwnerIsOwnerOnly(t *testing.T) {
	store := &stubStore{roles: map[string]Role{
		"F1/ownerUser": RoleOwner,
		"F1/manager1":  RoleManager,
		"F1/owner2":    RoleOwner,
		"F1/worker1":   RoleWorker,
	}}
	members := NewMembers(store, NewCatalog())

	_, err := members.Remove(context.Background(), "F1", "manager1", "ownerUser")
	require.ErrorIs(t, err, ErrOwnershipRestricted)

	// Non-owner rows are removable by the gated caller.
	change, err := members.Remove(context.Background(), "F1", "manager1", "worker1")
	require.NoError(t, err)
	assert.Equal(t, RoleWorker, change.OldRole)

	change, err = members.Remove(context.Background(), "F1", "owner2", "ownerUser")
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, change.OldRole)
	_, ok := store.roles["F1/ownerUser"]
	assert.False(t, ok)
}

func TestMembersRemoveMissingMembership(t *testing.T) {
	members := NewMembers(&stubStore{}, NewCatalog())
	_, err := members.Remove(context.Background(), "F1", "owner1", "ghost")
	require.ErrorIs(t, err, ErrMembershipNotFound)
}
