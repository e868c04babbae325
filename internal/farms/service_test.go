package farms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmwise/farmwise/internal/authz"
)

type memStore struct {
	farms   map[string]Farm
	changes []authz.MemberChange
}

func newMemStore() *memStore {
	return &memStore{farms: make(map[string]Farm)}
}

func (s *memStore) Create(_ context.Context, farm Farm) (Farm, error) {
	farm.ID = "farm-" + farm.Name
	farm.CreatedAt = time.Now().UTC()
	farm.UpdatedAt = farm.CreatedAt
	s.farms[farm.ID] = farm
	return farm, nil
}

func (s *memStore) Get(_ context.Context, farmID string) (Farm, error) {
	farm, ok := s.farms[farmID]
	if !ok {
		return Farm{}, errors.New("not found")
	}
	return farm, nil
}

func (s *memStore) ListForUser(_ context.Context, _ string) ([]FarmSummary, error) {
	return nil, nil
}

func (s *memStore) Update(_ context.Context, farmID string, _ UpdateFarmRequest) (Farm, error) {
	return s.farms[farmID], nil
}

func (s *memStore) RecordMemberChange(_ context.Context, change authz.MemberChange) error {
	s.changes = append(s.changes, change)
	return nil
}

type memMemberships struct {
	roles map[string]authz.Role // "farmID/userID"
}

func (s *memMemberships) key(farmID, userID string) string { return farmID + "/" + userID }

func (s *memMemberships) GetUserFarmRole(_ context.Context, userID, farmID string) (authz.Role, error) {
	role, ok := s.roles[s.key(farmID, userID)]
	if !ok {
		return "", authz.ErrMembershipNotFound
	}
	return role, nil
}

func (s *memMemberships) ListFarmsForUser(_ context.Context, _ string) ([]authz.Membership, error) {
	return nil, nil
}

func (s *memMemberships) ListMembers(_ context.Context, farmID string) ([]authz.Member, error) {
	var out []authz.Member
	for key, role := range s.roles {
		if len(key) > len(farmID) && key[:len(farmID)] == farmID {
			out = append(out, authz.Member{UserID: key[len(farmID)+1:], Role: role})
		}
	}
	return out, nil
}

func (s *memMemberships) Insert(_ context.Context, m authz.Membership) error {
	if _, exists := s.roles[s.key(m.FarmID, m.UserID)]; exists {
		return authz.ErrDuplicateMembership
	}
	s.roles[s.key(m.FarmID, m.UserID)] = m.Role
	return nil
}

func (s *memMemberships) UpdateRole(_ context.Context, farmID, userID string, role authz.Role) error {
	if _, exists := s.roles[s.key(farmID, userID)]; !exists {
		return authz.ErrMembershipNotFound
	}
	s.roles[s.key(farmID, userID)] = role
	return nil
}

func (s *memMemberships) Delete(_ context.Context, farmID, userID string) error {
	if _, exists := s.roles[s.key(farmID, userID)]; !exists {
		return authz.ErrMembershipNotFound
	}
	delete(s.roles, s.key(farmID, userID))
	return nil
}

func newTestService() (*Service, *memStore, *memMemberships) {
	store := newMemStore()
	memberships := &memMemberships{roles: map[string]authz.Role{
		"farm-1/owner-1":   authz.RoleOwner,
		"farm-1/manager-1": authz.RoleManager,
		"farm-1/admin-1":   authz.RoleAdmin,
		"farm-1/worker-1":  authz.RoleWorker,
	}}
	members := authz.NewMembers(memberships, authz.NewCatalog())
	return NewService(store, members, memberships, nil), store, memberships
}

func TestCreateFarmSetsCreator(t *testing.T) {
	svc, _, _ := newTestService()

	farm, err := svc.CreateFarm(context.Background(), "user-9", CreateFarmRequest{Name: "North Field"})
	require.NoError(t, err)
	assert.Equal(t, "user-9", farm.CreatedBy)
	assert.NotEmpty(t, farm.ID)
}

func TestAddMemberTransitionRules(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	// A manager may enroll roles at or below their own rank.
	change, err := svc.AddMember(ctx, "farm-1", "manager-1", authz.RoleManager, AddMemberRequest{UserID: "new-1", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, change.NewRole)
	require.Len(t, store.changes, 1)
	assert.Equal(t, "manager-1", store.changes[0].ActorID)

	// Assigning ownership is reserved for the owner.
	_, err = svc.AddMember(ctx, "farm-1", "manager-1", authz.RoleManager, AddMemberRequest{UserID: "new-2", Role: "owner"})
	var transition *TransitionError
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, authz.BlockedUnauthorizedOwnership, transition.Verdict.Blocked)

	// An admin cannot hand out a role above their own.
	_, err = svc.AddMember(ctx, "farm-1", "admin-1", authz.RoleAdmin, AddMemberRequest{UserID: "new-3", Role: "manager"})
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, authz.BlockedPrivilegeEscalation, transition.Verdict.Blocked)
}

func TestAddMemberDuplicate(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.AddMember(context.Background(), "farm-1", "owner-1", authz.RoleOwner, AddMemberRequest{UserID: "worker-1", Role: "member"})
	assert.True(t, errors.Is(err, authz.ErrDuplicateMembership))
}

func TestUpdateMemberRole(t *testing.T) {
	svc, store, memberships := newTestService()
	ctx := context.Background()

	change, err := svc.UpdateMemberRole(ctx, "farm-1", "manager-1", "worker-1", authz.RoleManager, UpdateMemberRequest{Role: "member"})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleWorker, change.OldRole)
	assert.Equal(t, authz.RoleMember, change.NewRole)
	assert.Equal(t, authz.RoleMember, memberships.roles["farm-1/worker-1"])
	require.Len(t, store.changes, 1)
}

func TestUpdateMemberRoleOwnerDemotionNeedsOwner(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.UpdateMemberRole(context.Background(), "farm-1", "manager-1", "owner-1", authz.RoleManager, UpdateMemberRequest{Role: "member"})
	assert.True(t, errors.Is(err, authz.ErrOwnershipRestricted))
}

func TestRemoveMember(t *testing.T) {
	svc, store, memberships := newTestService()
	ctx := context.Background()

	change, err := svc.RemoveMember(ctx, "farm-1", "manager-1", "worker-1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleWorker, change.OldRole)
	_, exists := memberships.roles["farm-1/worker-1"]
	assert.False(t, exists)
	require.Len(t, store.changes, 1)

	// Removing the owner is owner-only.
	_, err = svc.RemoveMember(ctx, "farm-1", "manager-1", "owner-1")
	assert.True(t, errors.Is(err, authz.ErrOwnershipRestricted))
}
