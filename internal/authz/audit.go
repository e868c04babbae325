package authz

import (
	"context"
	"log/slog"
	"time"
)

// Outcome buckets every audited decision for after-the-fact filtering.
type Outcome string

// Outcome values.
const (
	OutcomeGlobal           Outcome = "global"
	OutcomeFarmAccessDenied Outcome = "farm_access_denied"
	OutcomeUnknownRole      Outcome = "unknown_role"
	OutcomeGranted          Outcome = "granted"
	OutcomeDenied           Outcome = "denied"
)

// AuditEntry is the record handed to the sink for every single
// evaluation, granted or denied.
type AuditEntry struct {
	At         time.Time  `json:"at"`
	UserID     string     `json:"user_id"`
	Resource   Resource   `json:"resource"`
	Action     Action     `json:"action"`
	FarmID     string     `json:"farm_id,omitempty"`
	Authorized bool       `json:"authorized"`
	Role       Role       `json:"role,omitempty"`
	Reason     string     `json:"reason"`
	Outcome    Outcome    `json:"outcome"`
	Severity   slog.Level `json:"severity"`
	IP         string     `json:"ip,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
}

// PrivilegedAccess is emitted in addition to the regular entry whenever
// an elevated role (owner, manager, admin) is granted access. It feeds
// security monitoring of elevated actions independent of whether the
// action itself succeeded downstream.
type PrivilegedAccess struct {
	At       time.Time `json:"at"`
	UserID   string    `json:"user_id"`
	FarmID   string    `json:"farm_id,omitempty"`
	Role     Role      `json:"role"`
	Resource Resource  `json:"resource"`
	Action   Action    `json:"action"`
}

// DecisionAuditSink receives every authorization decision. Sinks are
// fire-and-forget: implementations must swallow their own failures and
// never push errors back into the evaluator's call path.
type DecisionAuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
	RecordPrivileged(ctx context.Context, access PrivilegedAccess)
}

// privilegedRoles are the roles whose granted decisions additionally
// produce a PrivilegedAccess event.
var privilegedRoles = map[Role]struct{}{
	RoleOwner:   {},
	RoleManager: {},
	RoleAdmin:   {},
}

// Privileged reports whether granted access under the role must emit a
// privileged-access event.
func (r Role) Privileged() bool {
	_, ok := privilegedRoles[r]
	return ok
}

// NopSink discards every entry. Useful as a test default.
type NopSink struct{}

// Record implements DecisionAuditSink.
func (NopSink) Record(context.Context, AuditEntry) {}

// RecordPrivileged implements DecisionAuditSink.
func (NopSink) RecordPrivileged(context.Context, PrivilegedAccess) {}
