// Package farms manages the farm tenant records and the admin surface
// for farm membership.
package farms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmwise/farmwise/internal/authz"
	"github.com/farmwise/farmwise/internal/platform/db"
	"github.com/farmwise/farmwise/internal/shared"
)

// Repository provides PostgreSQL backed farm persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the farm and its owner membership in one transaction
// so a farm can never exist without an owner.
func (r *Repository) Create(ctx context.Context, farm Farm) (Farm, error) {
	farm.ID = uuid.NewString()
	now := time.Now().UTC()
	farm.CreatedAt = now
	farm.UpdatedAt = now

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO farms (id, name, location, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			farm.ID, farm.Name, farm.Location, farm.CreatedBy, farm.CreatedAt, farm.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("farms: insert farm: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO farm_memberships (farm_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
			farm.ID, farm.CreatedBy, string(authz.RoleOwner), now,
		)
		if err != nil {
			return fmt.Errorf("farms: insert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return Farm{}, err
	}
	return farm, nil
}

// Get fetches one farm by ID.
func (r *Repository) Get(ctx context.Context, farmID string) (Farm, error) {
	var farm Farm
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, location, created_by, created_at, updated_at FROM farms WHERE id = $1`,
		farmID,
	).Scan(&farm.ID, &farm.Name, &farm.Location, &farm.CreatedBy, &farm.CreatedAt, &farm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Farm{}, shared.ErrNotFound
		}
		return Farm{}, fmt.Errorf("farms: get: %w", err)
	}
	return farm, nil
}

// ListForUser returns every farm the user belongs to, with their role.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]FarmSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT f.id, f.name, f.location, f.created_by, f.created_at, f.updated_at, m.role
		   FROM farms f
		   JOIN farm_memberships m ON m.farm_id = f.id
		  WHERE m.user_id = $1
		  ORDER BY f.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("farms: list for user: %w", err)
	}
	defer rows.Close()
	var out []FarmSummary
	for rows.Next() {
		var s FarmSummary
		var role string
		if err := rows.Scan(&s.ID, &s.Name, &s.Location, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &role); err != nil {
			return nil, fmt.Errorf("farms: scan farm: %w", err)
		}
		s.Role = authz.Role(role)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("farms: list for user: %w", err)
	}
	return out, nil
}

// Update applies partial changes to a farm.
func (r *Repository) Update(ctx context.Context, farmID string, req UpdateFarmRequest) (Farm, error) {
	farm, err := r.Get(ctx, farmID)
	if err != nil {
		return Farm{}, err
	}
	if req.Name != nil {
		farm.Name = *req.Name
	}
	if req.Location != nil {
		farm.Location = *req.Location
	}
	farm.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx,
		`UPDATE farms SET name = $2, location = $3, updated_at = $4 WHERE id = $1`,
		farmID, farm.Name, farm.Location, farm.UpdatedAt,
	)
	if err != nil {
		return Farm{}, fmt.Errorf("farms: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Farm{}, shared.ErrNotFound
	}
	return farm, nil
}

// RecordMemberChange appends a membership mutation to the change log.
func (r *Repository) RecordMemberChange(ctx context.Context, change authz.MemberChange) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO membership_changes (farm_id, actor_id, user_id, old_role, new_role, changed_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`,
		change.FarmID, change.ActorID, change.UserID, string(change.OldRole), string(change.NewRole), change.At,
	)
	if err != nil {
		return fmt.Errorf("farms: record member change: %w", err)
	}
	return nil
}
