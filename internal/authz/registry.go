package authz

// Resource is a category of protected data belonging to a farm.
type Resource string

// Protected resource vocabulary.
const (
	ResourceFarm      Resource = "farm"
	ResourceAnimal    Resource = "animal"
	ResourceCrop      Resource = "crop"
	ResourceTask      Resource = "task"
	ResourceInventory Resource = "inventory"
	ResourceFinance   Resource = "finance"
	ResourceField     Resource = "field"
	ResourceUser      Resource = "user"
)

// Action is an operation class on a resource.
type Action string

// Supported actions.
const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Registry is the static whitelist of valid (resource, action) pairs.
// Any combination not declared here is rejected before role logic runs,
// so undefined operations can never be silently authorized.
type Registry struct {
	actions map[Resource]map[Action]struct{}
}

// NewRegistry builds the registry with the platform's fixed vocabulary.
// User records cannot be deleted through the permission system.
func NewRegistry() *Registry {
	full := []Action{ActionRead, ActionWrite, ActionDelete, ActionManage}
	reg := &Registry{actions: make(map[Resource]map[Action]struct{})}
	for _, res := range []Resource{
		ResourceFarm, ResourceAnimal, ResourceCrop, ResourceTask,
		ResourceInventory, ResourceFinance, ResourceField,
	} {
		reg.declare(res, full...)
	}
	reg.declare(ResourceUser, ActionRead, ActionWrite, ActionManage)
	return reg
}

// Declared reports whether the (resource, action) pair is whitelisted.
func (r *Registry) Declared(res Resource, act Action) bool {
	acts, ok := r.actions[res]
	if !ok {
		return false
	}
	_, ok = acts[act]
	return ok
}

// Resources returns every declared resource.
func (r *Registry) Resources() []Resource {
	out := make([]Resource, 0, len(r.actions))
	for res := range r.actions {
		out = append(out, res)
	}
	return out
}

// Actions returns the declared actions for a resource, nil when unknown.
func (r *Registry) Actions(res Resource) []Action {
	acts, ok := r.actions[res]
	if !ok {
		return nil
	}
	out := make([]Action, 0, len(acts))
	for act := range acts {
		out = append(out, act)
	}
	return out
}

func (r *Registry) declare(res Resource, acts ...Action) {
	set := make(map[Action]struct{}, len(acts))
	for _, act := range acts {
		set[act] = struct{}{}
	}
	r.actions[res] = set
}
