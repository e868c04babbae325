package authz

import "errors"

// Mutation errors. These indicate caller programming mistakes against
// already-authorized operations, so unlike decisions they surface as
// errors instead of denials.
var (
	// ErrDuplicateMembership occurs when adding a user who already holds
	// a membership on the farm. Duplicates are an error, never an upsert.
	ErrDuplicateMembership = errors.New("authz: user is already a member of this farm")
	// ErrMembershipNotFound occurs when mutating a membership row that
	// does not exist.
	ErrMembershipNotFound = errors.New("authz: user is not a member of this farm")
	// ErrUnknownRole occurs when a mutation names a role outside the
	// catalog's closed set.
	ErrUnknownRole = errors.New("authz: unknown role")
	// ErrOwnershipRestricted occurs when a non-owner attempts to demote
	// or remove the farm owner.
	ErrOwnershipRestricted = errors.New("authz: only the farm owner can change ownership")
)
