package audit

import (
	"context"
	"log/slog"

	"github.com/farmwise/farmwise/internal/authz"
	"github.com/farmwise/farmwise/jobs"
)

// AsynqSink enqueues decisions onto the job queue so the worker can
// drain them into Postgres off the request path. Enqueue failures are
// logged and dropped, keeping the evaluator latency bounded by one
// redis round trip.
type AsynqSink struct {
	client *jobs.Client
	logger *slog.Logger
}

// NewAsynqSink constructs an AsynqSink.
func NewAsynqSink(client *jobs.Client, logger *slog.Logger) *AsynqSink {
	return &AsynqSink{client: client, logger: logger}
}

// Record implements authz.DecisionAuditSink.
func (s *AsynqSink) Record(ctx context.Context, entry authz.AuditEntry) {
	if s.client == nil {
		return
	}
	task, err := jobs.NewDecisionTask(entry)
	if err != nil {
		s.warn("audit: marshal decision task", err)
		return
	}
	if _, err := s.client.Enqueue(ctx, task); err != nil {
		s.warn("audit: enqueue decision", err)
	}
}

// RecordPrivileged implements authz.DecisionAuditSink.
func (s *AsynqSink) RecordPrivileged(ctx context.Context, access authz.PrivilegedAccess) {
	if s.client == nil {
		return
	}
	task, err := jobs.NewPrivilegedTask(access)
	if err != nil {
		s.warn("audit: marshal privileged task", err)
		return
	}
	if _, err := s.client.Enqueue(ctx, task); err != nil {
		s.warn("audit: enqueue privileged access", err)
	}
}

func (s *AsynqSink) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err))
	}
}
