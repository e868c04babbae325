package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/farmwise/farmwise/internal/authz"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDecisionRecord carries one authorization decision to the
	// durable audit store.
	TaskTypeDecisionRecord = "authz:decision"
	// TaskTypePrivilegedAccess carries an elevated-access event for
	// security monitoring.
	TaskTypePrivilegedAccess = "authz:privileged"
)

// NewDecisionTask packs an audit entry into an Asynq task.
func NewDecisionTask(entry authz.AuditEntry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDecisionRecord, data), nil
}

// NewPrivilegedTask packs a privileged-access event into an Asynq task.
func NewPrivilegedTask(access authz.PrivilegedAccess) (*asynq.Task, error) {
	data, err := json.Marshal(access)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePrivilegedAccess, data), nil
}

// HandleDecisionTask builds the worker handler that drains decision
// records into the given sink (typically the Postgres writer).
func HandleDecisionTask(sink authz.DecisionAuditSink) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry authz.AuditEntry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			return asynq.SkipRetry
		}
		sink.Record(ctx, entry)
		return nil
	}
}

// HandlePrivilegedTask builds the worker handler for privileged-access
// events.
func HandlePrivilegedTask(sink authz.DecisionAuditSink) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var access authz.PrivilegedAccess
		if err := json.Unmarshal(t.Payload(), &access); err != nil {
			return asynq.SkipRetry
		}
		sink.RecordPrivileged(ctx, access)
		return nil
	}
}
