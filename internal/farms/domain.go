package farms

import (
	"time"

	"github.com/farmwise/farmwise/internal/authz"
)

// Farm is the tenant boundary. Every farm-scoped permission check and
// every membership row hangs off a farm ID.
type Farm struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FarmSummary is a farm joined with the requesting user's role, for
// the "my farms" listing.
type FarmSummary struct {
	Farm
	Role authz.Role `json:"role"`
}

// CreateFarmRequest is the payload for creating a farm.
type CreateFarmRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Location string `json:"location" validate:"max=200"`
}

// UpdateFarmRequest is the payload for renaming or relocating a farm.
type UpdateFarmRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=120"`
	Location *string `json:"location" validate:"omitempty,max=200"`
}

// AddMemberRequest enrolls a user on a farm.
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

// UpdateMemberRequest changes an existing member's role.
type UpdateMemberRequest struct {
	Role string `json:"role" validate:"required"`
}

// MemberView is the admin-facing shape of a membership row.
type MemberView struct {
	UserID      string     `json:"user_id"`
	Role        authz.Role `json:"role"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	JoinedAt    time.Time  `json:"joined_at"`
}
