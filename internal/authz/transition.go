package authz

// BlockReason tags why a role transition was refused so UIs can show a
// specific message.
type BlockReason string

// Block reasons.
const (
	BlockedPrivilegeEscalation   BlockReason = "privilege_escalation"
	BlockedUnauthorizedOwnership BlockReason = "unauthorized_ownership"
)

// TransitionVerdict is the result of a role-change attempt.
type TransitionVerdict struct {
	Valid   bool        `json:"valid"`
	Reason  string      `json:"reason,omitempty"`
	Blocked BlockReason `json:"blocked,omitempty"`
}

// ValidateTransition checks whether a user acting with currentRole may
// grant newRole. Nobody can grant a role above their own station, and
// owner assignment is categorically owner-only. This guards granting a
// role; demoting away from owner is guarded separately by Members.
func ValidateTransition(currentRole, newRole Role) TransitionVerdict {
	// Ownership is checked first: assigning owner is categorically
	// owner-only, and that verdict is more actionable than the generic
	// escalation one it would otherwise collapse into.
	if newRole == RoleOwner && currentRole != RoleOwner {
		return TransitionVerdict{
			Reason:  "Only the farm owner can assign ownership",
			Blocked: BlockedUnauthorizedOwnership,
		}
	}
	if newRole.Outranks(currentRole) {
		return TransitionVerdict{
			Reason:  "Cannot assign a role higher than your own",
			Blocked: BlockedPrivilegeEscalation,
		}
	}
	return TransitionVerdict{Valid: true}
}
