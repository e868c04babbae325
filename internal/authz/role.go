package authz

// Role is a named permission level a user holds per farm membership.
type Role string

// Known roles, highest rank first.
const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
	RoleWorker  Role = "worker"
)

var roleRanks = map[Role]int{
	RoleOwner:   5,
	RoleManager: 4,
	RoleAdmin:   3,
	RoleMember:  2,
	RoleWorker:  1,
}

// Rank returns the role's position in the total order, owner highest.
// Unknown roles rank zero, below every known role.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Known reports whether the role belongs to the closed role set.
func (r Role) Known() bool {
	_, ok := roleRanks[r]
	return ok
}

// Outranks reports whether r sits strictly above other in the hierarchy.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// Roles returns every known role ordered by descending rank.
func Roles() []Role {
	return []Role{RoleOwner, RoleManager, RoleAdmin, RoleMember, RoleWorker}
}
