// Package audit implements decision audit sinks for the authorization
// core. Sinks are fire-and-forget: failures are logged locally and
// swallowed so they can never mask or override a decision.
package audit

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmwise/farmwise/internal/authz"
)

// LogSink writes every decision to the structured log at the entry's
// severity. It is the safety net when no durable sink is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements authz.DecisionAuditSink.
func (s *LogSink) Record(ctx context.Context, entry authz.AuditEntry) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, entry.Severity, "authz decision",
		slog.String("user_id", entry.UserID),
		slog.String("resource", string(entry.Resource)),
		slog.String("action", string(entry.Action)),
		slog.String("farm_id", entry.FarmID),
		slog.Bool("authorized", entry.Authorized),
		slog.String("role", string(entry.Role)),
		slog.String("outcome", string(entry.Outcome)),
		slog.String("reason", entry.Reason),
	)
}

// RecordPrivileged implements authz.DecisionAuditSink.
func (s *LogSink) RecordPrivileged(ctx context.Context, access authz.PrivilegedAccess) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "privileged access",
		slog.String("user_id", access.UserID),
		slog.String("farm_id", access.FarmID),
		slog.String("role", string(access.Role)),
		slog.String("resource", string(access.Resource)),
		slog.String("action", string(access.Action)),
	)
}

// PGSink persists decisions into authz_decisions and privileged events
// into privileged_access. Write failures are logged and dropped.
type PGSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGSink constructs a PGSink.
func NewPGSink(pool *pgxpool.Pool, logger *slog.Logger) *PGSink {
	return &PGSink{pool: pool, logger: logger}
}

// Record implements authz.DecisionAuditSink.
func (s *PGSink) Record(ctx context.Context, entry authz.AuditEntry) {
	if s.pool == nil {
		return
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO authz_decisions
		   (occurred_at, user_id, resource, action, farm_id, authorized, role, reason, outcome, severity, ip, user_agent)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9, $10, $11, $12)`,
		entry.At, entry.UserID, string(entry.Resource), string(entry.Action), entry.FarmID,
		entry.Authorized, string(entry.Role), entry.Reason, string(entry.Outcome),
		entry.Severity.String(), entry.IP, entry.UserAgent,
	)
	if err != nil && s.logger != nil {
		s.logger.Warn("audit: write decision", slog.Any("error", err))
	}
}

// RecordPrivileged implements authz.DecisionAuditSink.
func (s *PGSink) RecordPrivileged(ctx context.Context, access authz.PrivilegedAccess) {
	if s.pool == nil {
		return
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO privileged_access (occurred_at, user_id, farm_id, role, resource, action)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
		access.At, access.UserID, access.FarmID, string(access.Role),
		string(access.Resource), string(access.Action),
	)
	if err != nil && s.logger != nil {
		s.logger.Warn("audit: write privileged access", slog.Any("error", err))
	}
}

// Fanout duplicates every record across the given sinks in order.
type Fanout []authz.DecisionAuditSink

// Record implements authz.DecisionAuditSink.
func (f Fanout) Record(ctx context.Context, entry authz.AuditEntry) {
	for _, sink := range f {
		if sink != nil {
			sink.Record(ctx, entry)
		}
	}
}

// RecordPrivileged implements authz.DecisionAuditSink.
func (f Fanout) RecordPrivileged(ctx context.Context, access authz.PrivilegedAccess) {
	for _, sink := range f {
		if sink != nil {
			sink.RecordPrivileged(ctx, access)
		}
	}
}
