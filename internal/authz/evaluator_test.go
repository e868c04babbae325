package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	roles    map[string]Role // key "farmID/userID"
	rolesErr error
}

func (s *stubStore) GetUserFarmRole(ctx context.Context, userID, farmID string) (Role, error) {
	if s.rolesErr != nil {
		return "", s.rolesErr
	}
	role, ok := s.roles[farmID+"/"+userID]
	if !ok {
		return "", ErrMembershipNotFound
	}
	return role, nil
}

func (s *stubStore) ListFarmsForUser(ctx context.Context, userID string) ([]Membership, error) {
	return nil, nil
}

func (s *stubStore) ListMembers(ctx context.Context, farmID string) ([]Member, error) {
	return nil, nil
}

func (s *stubStore) Insert(ctx context.Context, m Membership) error {
	key := m.FarmID + "/" + m.UserID
	if _, ok := s.roles[key]; ok {
		return ErrDuplicateMembership
	}
	if s.roles == nil {
		s.roles = make(map[string]Role)
	}
	s.roles[key] = m.Role
	return nil
}

func (s *stubStore) UpdateRole(ctx context.Context, farmID, userID string, role Role) error {
	key := farmID + "/" + userID
	if _, ok := s.roles[key]; !ok {
		return ErrMembershipNotFound
	}
	s.roles[key] = role
	return nil
}

func (s *stubStore) Delete(ctx context.Context, farmID, userID string) error {
	key := farmID + "/" + userID
	if _, ok := s.roles[key]; !ok {
		return ErrMembershipNotFound
	}
	delete(s.roles, key)
	return nil
}

type recordingSink struct {
	entries    []AuditEntry
	privileged []PrivilegedAccess
}

func (r *recordingSink) Record(ctx context.Context, entry AuditEntry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingSink) RecordPrivileged(ctx context.Context, access PrivilegedAccess) {
	r.privileged = append(r.privileged, access)
}

func newTestEvaluator(store MembershipStore, sink DecisionAuditSink) *Evaluator {
	return NewEvaluator(NewCatalog(), NewRegistry(), store, sink, slog.Default())
}

func TestEvaluateRejectsMissingParameters(t *testing.T) {
	sink := &recordingSink{}
	eval := newTestEvaluator(&stubStore{}, sink)

	d := eval.Evaluate(context.Background(), "", ResourceTask, ActionRead, "F1", CheckContext{})
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonInvalidParams, d.Reason)

	d = eval.Evaluate(context.Background(), "U1", "", ActionRead, "F1", CheckContext{})
	assert.False(t, d.Authorized)

	d = eval.Evaluate(context.Background(), "U1", ResourceTask, "", "F1", CheckContext{})
	assert.False(t, d.Authorized)

	require.Len(t, sink.entries, 3, "every rejection still produces an audit record")
}

func TestEvaluateUndeclaredPairsDeniedForEveryRole(t *testing.T) {
	// Undeclared (resource, action) pairs never reach role logic, even
	// for the owner.
	store := &stubStore{roles: map[string]Role{"F1/U1": RoleOwner}}
	eval := newTestEvaluator(store, &recordingSink{})

	for _, check := range []Check{
		{Resource: ResourceUser, Action: ActionDelete, FarmID: "F1"},
		{Resource: "barn", Action: ActionRead, FarmID: "F1"},
		{Resource: ResourceAnimal, Action: "feed", FarmID: "F1"},
	} {
		d := eval.Evaluate(context.Background(), "U1", check.Resource, check.Action, check.FarmID, CheckContext{})
		assert.False(t, d.Authorized, "pair %s must be rejected", check.Key())
		assert.Empty(t, d.Role, "role lookup must not have happened")
	}
}

func TestEvaluateWildcardCoversEveryDeclaredResource(t *testing.T) {
	store := &stubStore{roles: map[string]Role{"F1/U1": RoleManager}}
	eval := newTestEvaluator(store, &recordingSink{})
	registry := NewRegistry()

	for _, res := range registry.Resources() {
		if !registry.Declared(res, ActionWrite) {
			continue
		}
		d := eval.Evaluate(context.Background(), "U1", res, ActionWrite, "F1", CheckContext{})
		assert.True(t, d.Authorized, "manager write scope is the full set, %s must pass", res)
		assert.Equal(t, RoleManager, d.Role)
	}
}

func TestEvaluateTenantIsolation(t *testing.T) {
	store := &stubStore{roles: map[string]Role{"farmA/U1": RoleMember}}
	sink := &recordingSink{}
	eval := newTestEvaluator(store, sink)

	granted := eval.Evaluate(context.Background(), "U1", ResourceAnimal, ActionRead, "farmA", CheckContext{})
	require.True(t, granted.Authorized)

	denied := eval.Evaluate(context.Background(), "U1", ResourceAnimal, ActionRead, "farmB", CheckContext{})
	require.False(t, denied.Authorized)
	assert.Equal(t, ReasonNotMember, denied.Reason)

	require.Len(t, sink.entries, 2)
	assert.Equal(t, OutcomeGranted, sink.entries[0].Outcome)
	assert.Equal(t, OutcomeFarmAccessDenied, sink.entries[1].Outcome)
}

func TestEvaluateWorkerScenarios(t *testing.T) {
	store := &stubStore{roles: map[string]Role{"F1/U1": RoleWorker}}
	eval := newTestEvaluator(store, &recordingSink{})

	// Workers can write tasks.
	d := eval.Evaluate(context.Background(), "U1", ResourceTask, ActionWrite, "F1", CheckContext{})
	assert.True(t, d.Authorized)
	assert.Equal(t, RoleWorker, d.Role)

	// Workers cannot read finance.
	d = eval.Evaluate(context.Background(), "U1", ResourceFinance, ActionRead, "F1", CheckContext{})
	assert.False(t, d.Authorized)
	assert.Equal(t, RoleWorker, d.Role)
	assert.Contains(t, d.Reason, "lacks")
}

func TestEvaluateGlobalScope(t *testing.T) {
	sink := &recordingSink{}
	eval := newTestEvaluator(&stubStore{}, sink)

	// Self-referential user actions pass without a farm.
	d := eval.Evaluate(context.Background(), "U1", ResourceUser, ActionWrite, "", CheckContext{TargetUserID: "U1"})
	assert.True(t, d.Authorized)

	d = eval.Evaluate(context.Background(), "U1", ResourceUser, ActionRead, "", CheckContext{CurrentUserID: "U1"})
	assert.True(t, d.Authorized)

	// Acting on somebody else's record globally is denied, even when the
	// authenticated identity matches the caller.
	d = eval.Evaluate(context.Background(), "U1", ResourceUser, ActionWrite, "", CheckContext{CurrentUserID: "U1", TargetUserID: "U2"})
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonNotSelf, d.Reason)

	// Everything else needs a farm.
	d = eval.Evaluate(context.Background(), "U1", ResourceAnimal, ActionRead, "", CheckContext{})
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonNeedsFarmContext, d.Reason)

	for _, entry := range sink.entries {
		assert.Equal(t, OutcomeGlobal, entry.Outcome)
	}
}

func TestEvaluateUnknownRoleDenies(t *testing.T) {
	store := &stubStore{roles: map[string]Role{"F1/U1": Role("superduper")}}
	sink := &recordingSink{}
	eval := newTestEvaluator(store, sink)

	d := eval.Evaluate(context.Background(), "U1", ResourceTask, ActionRead, "F1", CheckContext{})
	require.False(t, d.Authorized)
	assert.Contains(t, d.Reason, "superduper")
	require.Len(t, sink.entries, 1)
	assert.Equal(t, OutcomeUnknownRole, sink.entries[0].Outcome)
	assert.Equal(t, slog.LevelError, sink.entries[0].Severity)
}

func TestEvaluateStoreFailureBecomesDenial(t *testing.T) {
	store := &stubStore{rolesErr: errors.New("connection reset")}
	eval := newTestEvaluator(store, &recordingSink{})

	d := eval.Evaluate(context.Background(), "U1", ResourceTask, ActionRead, "F1", CheckContext{})
	assert.False(t, d.Authorized)
	assert.Equal(t, "connection reset", d.Reason)
}

func TestEvaluateIsPureOverRepeatedCalls(t *testing.T) {
	store := &stubStore{roles: map[string]Role{"F1/U1": RoleAdmin}}
	eval := newTestEvaluator(store, &recordingSink{})

	first := eval.Evaluate(context.Background(), "U1", ResourceTask, ActionManage, "F1", CheckContext{})
	second := eval.Evaluate(context.Background(), "U1", ResourceTask, ActionManage, "F1", CheckContext{})
	assert.Equal(t, first, second)

	// A role change between calls must be observed immediately.
	store.roles["F1/U1"] = RoleWorker
	third := eval.Evaluate(context.Background(), "U1", ResourceTask, ActionManage, "F1", CheckContext{})
	assert.False(t, third.Authorized)
	assert.Equal(t, RoleWorker, third.Role)
}

func TestEvaluateEmitsPrivilegedAccessEvents(t *testing.T) {
	store := &stubStore{roles: map[string]Role{
		"F1/boss":   RoleOwner,
		"F1/admin":  RoleAdmin,
		"F1/farmer": RoleWorker,
	}}
	sink := &recordingSink{}
	eval := newTestEvaluator(store, sink)

	eval.Evaluate(context.Background(), "boss", ResourceFinance, ActionManage, "F1", CheckContext{})
	eval.Evaluate(context.Background(), "admin", ResourceTask, ActionManage, "F1", CheckContext{})
	eval.Evaluate(context.Background(), "farmer", ResourceTask, ActionWrite, "F1", CheckContext{})
	// Denied elevated decisions never emit privileged events.
	eval.Evaluate(context.Background(), "admin", ResourceFinance, ActionManage, "F1", CheckContext{})

	require.Len(t, sink.entries, 4)
	require.Len(t, sink.privileged, 2)
	assert.Equal(t, RoleOwner, sink.privileged[0].Role)
	assert.Equal(t, RoleAdmin, sink.privileged[1].Role)
}

func TestBatchEvaluateKeysAndIndependence(t *testing.T) {
	store := &stubStore{roles: map[string]Role{"F1/U1": RoleWorker}}
	eval := newTestEvaluator(store, &recordingSink{})

	results := eval.BatchEvaluate(context.Background(), "U1", []Check{
		{Resource: ResourceTask, Action: ActionWrite, FarmID: "F1"},
		{Resource: ResourceFinance, Action: ActionRead, FarmID: "F1"},
		{Resource: ResourceUser, Action: ActionRead},
	}, CheckContext{TargetUserID: "U1"})

	require.Len(t, results, 3)
	assert.True(t, results["task:write:F1"].Authorized)
	assert.False(t, results["finance:read:F1"].Authorized)
	assert.True(t, results["user:read"].Authorized)
}

func TestListRolesExposesMatrix(t *testing.T) {
	eval := newTestEvaluator(&stubStore{}, &recordingSink{})
	grants := eval.ListRoles()
	require.Len(t, grants, 5)
	assert.Equal(t, RoleOwner, grants[0].Name)
	assert.Equal(t, RoleWorker, grants[4].Name)
	assert.True(t, grants[0].Permissions[ActionManage].IsAll())
}
