package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads stored decisions from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DecisionsWindow returns a page of decisions, newest first. Zero-value
// filters match everything.
func (r *Repository) DecisionsWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT occurred_at, user_id, resource, action, COALESCE(farm_id, ''), authorized, COALESCE(role, ''), reason, outcome
		   FROM authz_decisions
		  WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		    AND ($2::timestamptz IS NULL OR occurred_at <= $2)
		    AND ($3 = '' OR user_id = $3)
		    AND ($4 = '' OR farm_id = $4)
		    AND ($5 = '' OR outcome = $5)
		  ORDER BY occurred_at DESC
		  OFFSET $6 LIMIT $7`,
		nullableTime(params.From), nullableTime(params.To),
		params.UserID, params.FarmID, params.Outcome,
		params.Offset, params.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: decisions window: %w", err)
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.UserID, &row.Resource, &row.Action, &row.FarmID,
			&row.Authorized, &row.Role, &row.Reason, &row.Outcome); err != nil {
			return nil, fmt.Errorf("audit: scan decision: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: decisions window: %w", err)
	}
	return out, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
