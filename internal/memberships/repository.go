// Package memberships persists farm membership rows in PostgreSQL and
// implements the authorization core's membership store.
package memberships

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/farmwise/farmwise/internal/authz"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed membership persistence.
type Repository struct {
	pool     *pgxpool.Pool
	collator *collate.Collator
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:     pool,
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
}

// GetUserFarmRole resolves the user's role on a farm.
func (r *Repository) GetUserFarmRole(ctx context.Context, userID, farmID string) (authz.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT role FROM farm_memberships WHERE farm_id = $1 AND user_id = $2`,
		farmID, userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrMembershipNotFound
		}
		return "", fmt.Errorf("memberships: get role: %w", err)
	}
	return authz.Role(role), nil
}

// ListFarmsForUser returns every membership the user holds.
func (r *Repository) ListFarmsForUser(ctx context.Context, userID string) ([]authz.Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT farm_id, user_id, role, joined_at FROM farm_memberships WHERE user_id = $1 ORDER BY joined_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberships: list farms: %w", err)
	}
	defer rows.Close()
	var out []authz.Membership
	for rows.Next() {
		var m authz.Membership
		var role string
		if err := rows.Scan(&m.FarmID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("memberships: scan farm: %w", err)
		}
		m.Role = authz.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberships: list farms: %w", err)
	}
	return out, nil
}

// ListMembers returns a farm's members with profile data, ordered by
// role rank then collated display name for admin UIs.
func (r *Repository) ListMembers(ctx context.Context, farmID string) ([]authz.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.user_id, m.role, m.joined_at, u.name, u.email
		   FROM farm_memberships m
		   JOIN users u ON u.id = m.user_id
		  WHERE m.farm_id = $1`,
		farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberships: list members: %w", err)
	}
	defer rows.Close()
	var members []authz.Member
	for rows.Next() {
		var member authz.Member
		var role string
		if err := rows.Scan(&member.UserID, &role, &member.JoinedAt, &member.DisplayName, &member.Email); err != nil {
			return nil, fmt.Errorf("memberships: scan member: %w", err)
		}
		member.Role = authz.Role(role)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberships: list members: %w", err)
	}
	r.sortMembers(members)
	return members, nil
}

// Insert creates a membership row. Duplicate (farm, user) keys map to
// authz.ErrDuplicateMembership rather than merging.
func (r *Repository) Insert(ctx context.Context, m authz.Membership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO farm_memberships (farm_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		m.FarmID, m.UserID, string(m.Role), m.JoinedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authz.ErrDuplicateMembership
		}
		return fmt.Errorf("memberships: insert: %w", err)
	}
	return nil
}

// UpdateRole changes an existing row's role.
func (r *Repository) UpdateRole(ctx context.Context, farmID, userID string, role authz.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE farm_memberships SET role = $3 WHERE farm_id = $1 AND user_id = $2`,
		farmID, userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("memberships: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrMembershipNotFound
	}
	return nil
}

// Delete removes a membership row.
func (r *Repository) Delete(ctx context.Context, farmID, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM farm_memberships WHERE farm_id = $1 AND user_id = $2`,
		farmID, userID,
	)
	if err != nil {
		return fmt.Errorf("memberships: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrMembershipNotFound
	}
	return nil
}

func (r *Repository) sortMembers(members []authz.Member) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Role.Rank() != members[j].Role.Rank() {
			return members[i].Role.Rank() > members[j].Role.Rank()
		}
		return r.collator.CompareString(members[i].DisplayName, members[j].DisplayName) < 0
	})
}
