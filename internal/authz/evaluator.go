package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Decision reasons reused across evaluations and tests.
const (
	ReasonInvalidParams    = "Invalid permission check parameters"
	ReasonNeedsFarmContext = "Resource requires farm context"
	ReasonNotMember        = "User is not a member of this farm"
	ReasonSelfService      = "Users may act on their own user record"
	ReasonNotSelf          = "Global access is limited to the user's own record"
)

// CheckContext carries client metadata for the audit trail and, for
// global-scope checks, the target of the action.
type CheckContext struct {
	IP            string `json:"ip,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	CurrentUserID string `json:"current_user_id,omitempty"`
	TargetUserID  string `json:"target_user_id,omitempty"`
}

// Check names one (resource, action) pair, optionally farm scoped.
type Check struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
	FarmID   string   `json:"farm_id,omitempty"`
}

// Key renders the batch map key "{resource}:{action}[:{farmID}]".
func (c Check) Key() string {
	if c.FarmID == "" {
		return fmt.Sprintf("%s:%s", c.Resource, c.Action)
	}
	return fmt.Sprintf("%s:%s:%s", c.Resource, c.Action, c.FarmID)
}

// Decision is the transient verdict of one evaluation. It is produced
// fresh on every call and never cached; roles can change between calls
// and must be observed immediately.
type Decision struct {
	Authorized bool   `json:"authorized"`
	Role       Role   `json:"role,omitempty"`
	Reason     string `json:"reason"`
}

// Evaluator is the core decision function. It is stateless and safe for
// unlimited concurrent use: the catalog and registry are immutable and
// every call re-resolves membership through the store.
type Evaluator struct {
	catalog  *Catalog
	registry *Registry
	store    MembershipStore
	sink     DecisionAuditSink
	logger   *slog.Logger
}

// NewEvaluator wires the evaluator with its collaborators. The sink is
// an explicit dependency so tests can substitute an in-memory recorder.
func NewEvaluator(catalog *Catalog, registry *Registry, store MembershipStore, sink DecisionAuditSink, logger *slog.Logger) *Evaluator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Evaluator{
		catalog:  catalog,
		registry: registry,
		store:    store,
		sink:     sink,
		logger:   logger,
	}
}

// Evaluate decides whether userID may perform action on resource,
// scoped to farmID when present. Security decisions never return an
// error: store failures are logged and converted into denials so
// callers can always branch on the boolean verdict.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, resource Resource, action Action, farmID string, cc CheckContext) Decision {
	if userID == "" || resource == "" || action == "" {
		return e.report(ctx, userID, resource, action, farmID, cc, OutcomeDenied,
			Decision{Reason: ReasonInvalidParams})
	}

	if !e.registry.Declared(resource, action) {
		return e.report(ctx, userID, resource, action, farmID, cc, OutcomeDenied,
			Decision{Reason: fmt.Sprintf("Action %s is not declared for resource %s", action, resource)})
	}

	if farmID == "" {
		return e.report(ctx, userID, resource, action, farmID, cc, OutcomeGlobal,
			e.evaluateGlobal(userID, resource, cc))
	}

	role, err := e.store.GetUserFarmRole(ctx, userID, farmID)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return e.report(ctx, userID, resource, action, farmID, cc, OutcomeFarmAccessDenied,
				Decision{Reason: ReasonNotMember})
		}
		if e.logger != nil {
			e.logger.Error("authz: resolve membership", slog.String("user_id", userID), slog.String("farm_id", farmID), slog.Any("error", err))
		}
		return e.report(ctx, userID, resource, action, farmID, cc, OutcomeDenied,
			Decision{Reason: err.Error()})
	}

	scope, known := e.catalog.Scope(role, action)
	if !known {
		// Membership rows referencing roles outside the catalog indicate
		// corrupted state upstream.
		if e.logger != nil {
			e.logger.Error("authz: membership carries unknown role", slog.String("user_id", userID), slog.String("farm_id", farmID), slog.String("role", string(role)))
		}
		return e.report(ctx, userID, resource, action, farmID, cc, OutcomeUnknownRole,
			Decision{Role: role, Reason: fmt.Sprintf("Unknown role: %s", role)})
	}

	if scope.Allows(resource) {
		return e.report(ctx, userID, resource, action, farmID, cc, OutcomeGranted, Decision{
			Authorized: true,
			Role:       role,
			Reason:     fmt.Sprintf("Role %s may %s %s", role, action, resource),
		})
	}
	return e.report(ctx, userID, resource, action, farmID, cc, OutcomeDenied, Decision{
		Role:   role,
		Reason: fmt.Sprintf("Role %s lacks %s permission for %s", role, action, resource),
	})
}

// BatchEvaluate runs several checks for one user so screens rendering
// conditional controls need a single round trip. Results are keyed by
// Check.Key. Each decision is evaluated independently.
func (e *Evaluator) BatchEvaluate(ctx context.Context, userID string, checks []Check, cc CheckContext) map[string]Decision {
	out := make(map[string]Decision, len(checks))
	for _, check := range checks {
		out[check.Key()] = e.Evaluate(ctx, userID, check.Resource, check.Action, check.FarmID, cc)
	}
	return out
}

// ListRoles exposes the static role matrix for admin tooling.
func (e *Evaluator) ListRoles() []RoleGrants {
	return e.catalog.Grants()
}

// evaluateGlobal handles checks outside any farm context. Only a user's
// own user record is reachable globally: the named target must be the
// caller, or with no explicit target the authenticated identity must
// match. Every other resource requires a farm.
func (e *Evaluator) evaluateGlobal(userID string, resource Resource, cc CheckContext) Decision {
	if resource != ResourceUser {
		return Decision{Reason: ReasonNeedsFarmContext}
	}
	if cc.TargetUserID == userID || (cc.TargetUserID == "" && cc.CurrentUserID == userID) {
		return Decision{Authorized: true, Reason: ReasonSelfService}
	}
	return Decision{Reason: ReasonNotSelf}
}

// report finishes a decision: exactly one audit record per evaluation,
// plus a privileged-access event when an elevated role was granted.
func (e *Evaluator) report(ctx context.Context, userID string, resource Resource, action Action, farmID string, cc CheckContext, outcome Outcome, d Decision) Decision {
	now := time.Now().UTC()
	severity := slog.LevelInfo
	if !d.Authorized {
		severity = slog.LevelWarn
	}
	if outcome == OutcomeUnknownRole {
		severity = slog.LevelError
	}
	e.sink.Record(ctx, AuditEntry{
		At:         now,
		UserID:     userID,
		Resource:   resource,
		Action:     action,
		FarmID:     farmID,
		Authorized: d.Authorized,
		Role:       d.Role,
		Reason:     d.Reason,
		Outcome:    outcome,
		Severity:   severity,
		IP:         cc.IP,
		UserAgent:  cc.UserAgent,
	})
	if d.Authorized && d.Role.Privileged() {
		e.sink.RecordPrivileged(ctx, PrivilegedAccess{
			At:       now,
			UserID:   userID,
			FarmID:   farmID,
			Role:     d.Role,
			Resource: resource,
			Action:   action,
		})
	}
	return d
}
