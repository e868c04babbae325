package authz

import (
	"context"
	"fmt"
	"time"
)

// Membership ties a user to a farm with a role. Rows are uniquely keyed
// by (farm, user); a user with no row has no access to the farm at all.
type Membership struct {
	FarmID   string
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// Member is a membership joined with profile data for admin listings.
type Member struct {
	UserID      string
	Role        Role
	JoinedAt    time.Time
	DisplayName string
	Email       string
}

// MembershipStore is the external membership collaborator. The core
// reads through it on every evaluation (no caching, a revoked role must
// be observed on the very next call) and mutates it only through the
// Members manager below.
type MembershipStore interface {
	// GetUserFarmRole resolves the user's role on a farm. It returns
	// ErrMembershipNotFound when no row exists.
	GetUserFarmRole(ctx context.Context, userID, farmID string) (Role, error)
	// ListFarmsForUser returns every membership the user holds.
	ListFarmsForUser(ctx context.Context, userID string) ([]Membership, error)
	// ListMembers returns a farm's members ordered by role rank then
	// display name.
	ListMembers(ctx context.Context, farmID string) ([]Member, error)
	// Insert creates a membership row. A duplicate (farm, user) key must
	// surface as ErrDuplicateMembership, never merge silently.
	Insert(ctx context.Context, m Membership) error
	// UpdateRole changes an existing row's role, ErrMembershipNotFound
	// when the row is absent.
	UpdateRole(ctx context.Context, farmID, userID string, role Role) error
	// Delete removes a row, ErrMembershipNotFound when absent.
	Delete(ctx context.Context, farmID, userID string) error
}

// MemberChange records a completed membership mutation for the audit
// trail kept by the persistence layer.
type MemberChange struct {
	FarmID  string
	ActorID string
	UserID  string
	OldRole Role
	NewRole Role
	At      time.Time
}

// Members guards membership mutations. Callers must already have passed
// an Evaluate(..., farm, manage, farmID) check before invoking any of
// these; the ownership rules here are defense in depth on top of that.
type Members struct {
	store   MembershipStore
	catalog *Catalog
}

// NewMembers constructs the mutation manager.
func NewMembers(store MembershipStore, catalog *Catalog) *Members {
	return &Members{store: store, catalog: catalog}
}

// Add creates a membership with the given role.
func (m *Members) Add(ctx context.Context, farmID, actorID, userID string, role Role) (MemberChange, error) {
	if !m.catalog.Known(role) {
		return MemberChange{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	now := time.Now().UTC()
	if err := m.store.Insert(ctx, Membership{FarmID: farmID, UserID: userID, Role: role, JoinedAt: now}); err != nil {
		return MemberChange{}, err
	}
	return MemberChange{FarmID: farmID, ActorID: actorID, UserID: userID, NewRole: role, At: now}, nil
}

// UpdateRole changes an existing member's role. Demoting the current
// owner is owner-only regardless of the acting user's own permission
// check upstream.
func (m *Members) UpdateRole(ctx context.Context, farmID, actorID, userID string, newRole Role) (MemberChange, error) {
	if !m.catalog.Known(newRole) {
		return MemberChange{}, fmt.Errorf("%w: %s", ErrUnknownRole, newRole)
	}
	current, err := m.store.GetUserFarmRole(ctx, userID, farmID)
	if err != nil {
		return MemberChange{}, err
	}
	if current == RoleOwner && newRole != RoleOwner {
		if err := m.requireOwner(ctx, farmID, actorID); err != nil {
			return MemberChange{}, err
		}
	}
	if err := m.store.UpdateRole(ctx, farmID, userID, newRole); err != nil {
		return MemberChange{}, err
	}
	return MemberChange{
		FarmID:  farmID,
		ActorID: actorID,
		UserID:  userID,
		OldRole: current,
		NewRole: newRole,
		At:      time.Now().UTC(),
	}, nil
}

// Remove deletes a membership. Removing an owner membership requires
// the acting user to also be owner.
func (m *Members) Remove(ctx context.Context, farmID, actorID, userID string) (MemberChange, error) {
	current, err := m.store.GetUserFarmRole(ctx, userID, farmID)
	if err != nil {
		return MemberChange{}, err
	}
	if current == RoleOwner {
		if err := m.requireOwner(ctx, farmID, actorID); err != nil {
			return MemberChange{}, err
		}
	}
	if err := m.store.Delete(ctx, farmID, userID); err != nil {
		return MemberChange{}, err
	}
	return MemberChange{
		FarmID:  farmID,
		ActorID: actorID,
		UserID:  userID,
		OldRole: current,
		At:      time.Now().UTC(),
	}, nil
}

func (m *Members) requireOwner(ctx context.Context, farmID, actorID string) error {
	actorRole, err := m.store.GetUserFarmRole(ctx, actorID, farmID)
	if err != nil {
		return err
	}
	if actorRole != RoleOwner {
		return ErrOwnershipRestricted
	}
	return nil
}
