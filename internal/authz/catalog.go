package authz

import (
	"encoding/json"
	"sort"
)

// Scope describes which resources a role may touch for one action.
// It is either the full resource set or an explicit subset; "grants
// everything" is a tagged state, not a magic string inside a list.
type Scope struct {
	all       bool
	resources map[Resource]struct{}
}

// AllResources returns a scope covering every declared resource.
func AllResources() Scope {
	return Scope{all: true}
}

// Only returns a scope restricted to the listed resources.
func Only(resources ...Resource) Scope {
	set := make(map[Resource]struct{}, len(resources))
	for _, res := range resources {
		set[res] = struct{}{}
	}
	return Scope{resources: set}
}

// Allows reports whether the scope covers the resource. The full scope
// always wins; this is an additive model with no specific-deny override.
func (s Scope) Allows(res Resource) bool {
	if s.all {
		return true
	}
	_, ok := s.resources[res]
	return ok
}

// IsAll reports whether the scope covers every resource.
func (s Scope) IsAll() bool {
	return s.all
}

// Resources lists the explicit subset, nil for the full scope.
func (s Scope) Resources() []Resource {
	if s.all {
		return nil
	}
	out := make([]Resource, 0, len(s.resources))
	for res := range s.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON renders the scope for the introspection endpoint.
func (s Scope) MarshalJSON() ([]byte, error) {
	if s.all {
		return json.Marshal(map[string]any{"all": true})
	}
	resources := s.Resources()
	if resources == nil {
		resources = []Resource{}
	}
	return json.Marshal(map[string]any{"resources": resources})
}

// Catalog is the static role to permission matrix. It is built once at
// process start and never mutated, so concurrent reads need no locking.
type Catalog struct {
	grants map[Role]map[Action]Scope
}

// NewCatalog builds the platform's role matrix.
func NewCatalog() *Catalog {
	return &Catalog{grants: map[Role]map[Action]Scope{
		RoleOwner: {
			ActionRead:   AllResources(),
			ActionWrite:  AllResources(),
			ActionDelete: AllResources(),
			ActionManage: AllResources(),
		},
		RoleManager: {
			ActionRead:   AllResources(),
			ActionWrite:  AllResources(),
			ActionDelete: Only(ResourceAnimal, ResourceCrop, ResourceTask, ResourceInventory, ResourceField),
			ActionManage: Only(ResourceTask, ResourceInventory, ResourceField),
		},
		RoleAdmin: {
			ActionRead:   AllResources(),
			ActionWrite:  Only(ResourceAnimal, ResourceCrop, ResourceTask, ResourceInventory, ResourceField),
			ActionDelete: Only(ResourceTask, ResourceInventory),
			ActionManage: Only(ResourceTask),
		},
		RoleMember: {
			ActionRead:   Only(ResourceAnimal, ResourceCrop, ResourceTask, ResourceInventory, ResourceField),
			ActionWrite:  Only(ResourceAnimal, ResourceCrop, ResourceTask),
			ActionDelete: Only(),
			ActionManage: Only(),
		},
		RoleWorker: {
			ActionRead:   Only(ResourceAnimal, ResourceCrop, ResourceTask),
			ActionWrite:  Only(ResourceAnimal, ResourceTask),
			ActionDelete: Only(),
			ActionManage: Only(),
		},
	}}
}

// Scope returns the role's scope for an action. The second return is
// false when the role is absent from the catalog.
func (c *Catalog) Scope(role Role, action Action) (Scope, bool) {
	actions, ok := c.grants[role]
	if !ok {
		return Scope{}, false
	}
	return actions[action], true
}

// Known reports whether the catalog carries the role.
func (c *Catalog) Known(role Role) bool {
	_, ok := c.grants[role]
	return ok
}

// RoleGrants is the introspection view of one role for admin tooling.
type RoleGrants struct {
	Name        Role             `json:"name"`
	Rank        int              `json:"rank"`
	Permissions map[Action]Scope `json:"permissions"`
}

// Grants returns the full matrix ordered by descending rank.
func (c *Catalog) Grants() []RoleGrants {
	out := make([]RoleGrants, 0, len(c.grants))
	for _, role := range Roles() {
		actions, ok := c.grants[role]
		if !ok {
			continue
		}
		out = append(out, RoleGrants{Name: role, Rank: role.Rank(), Permissions: actions})
	}
	return out
}
