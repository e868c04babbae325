package farms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/farmwise/farmwise/internal/authz"
)

// Store is the persistence surface the service needs. It is satisfied
// by *Repository; tests substitute an in-memory stub.
type Store interface {
	Create(ctx context.Context, farm Farm) (Farm, error)
	Get(ctx context.Context, farmID string) (Farm, error)
	ListForUser(ctx context.Context, userID string) ([]FarmSummary, error)
	Update(ctx context.Context, farmID string, req UpdateFarmRequest) (Farm, error)
	RecordMemberChange(ctx context.Context, change authz.MemberChange) error
}

// TransitionError reports a role assignment blocked by the transition
// rules. Handlers render it as a forbidden response.
type TransitionError struct {
	Verdict authz.TransitionVerdict
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("farms: role transition blocked: %s", e.Verdict.Blocked)
}

// Service provides business logic for farm and membership admin.
type Service struct {
	store       Store
	members     *authz.Members
	memberships authz.MembershipStore
	logger      *slog.Logger
}

// NewService constructs a farms service.
func NewService(store Store, members *authz.Members, memberships authz.MembershipStore, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		members:     members,
		memberships: memberships,
		logger:      logger,
	}
}

// CreateFarm creates a farm owned by the creator.
func (s *Service) CreateFarm(ctx context.Context, userID string, req CreateFarmRequest) (Farm, error) {
	return s.store.Create(ctx, Farm{Name: req.Name, Location: req.Location, CreatedBy: userID})
}

// GetFarm fetches one farm.
func (s *Service) GetFarm(ctx context.Context, farmID string) (Farm, error) {
	return s.store.Get(ctx, farmID)
}

// ListFarms returns the caller's farms with their role on each.
func (s *Service) ListFarms(ctx context.Context, userID string) ([]FarmSummary, error) {
	return s.store.ListForUser(ctx, userID)
}

// ListMyMemberships returns the caller's raw membership rows.
func (s *Service) ListMyMemberships(ctx context.Context, userID string) ([]authz.Membership, error) {
	return s.memberships.ListFarmsForUser(ctx, userID)
}

// UpdateFarm applies partial farm changes.
func (s *Service) UpdateFarm(ctx context.Context, farmID string, req UpdateFarmRequest) (Farm, error) {
	return s.store.Update(ctx, farmID, req)
}

// ListMembers returns the farm roster.
func (s *Service) ListMembers(ctx context.Context, farmID string) ([]MemberView, error) {
	members, err := s.memberships.ListMembers(ctx, farmID)
	if err != nil {
		return nil, err
	}
	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		out = append(out, MemberView{
			UserID:      m.UserID,
			Role:        m.Role,
			DisplayName: m.DisplayName,
			Email:       m.Email,
			JoinedAt:    m.JoinedAt,
		})
	}
	return out, nil
}

// AddMember enrolls a user on the farm. The acting user's own role caps
// what they may assign: no role above their own, and ownership only
// when they are the owner.
func (s *Service) AddMember(ctx context.Context, farmID, actorID string, actorRole authz.Role, req AddMemberRequest) (authz.MemberChange, error) {
	newRole := authz.Role(req.Role)
	if verdict := authz.ValidateTransition(actorRole, newRole); !verdict.Valid {
		return authz.MemberChange{}, &TransitionError{Verdict: verdict}
	}
	change, err := s.members.Add(ctx, farmID, actorID, req.UserID, newRole)
	if err != nil {
		return authz.MemberChange{}, err
	}
	s.logChange(ctx, change)
	return change, nil
}

// UpdateMemberRole changes an existing member's role under the same
// transition rules as AddMember.
func (s *Service) UpdateMemberRole(ctx context.Context, farmID, actorID, userID string, actorRole authz.Role, req UpdateMemberRequest) (authz.MemberChange, error) {
	newRole := authz.Role(req.Role)
	if verdict := authz.ValidateTransition(actorRole, newRole); !verdict.Valid {
		return authz.MemberChange{}, &TransitionError{Verdict: verdict}
	}
	change, err := s.members.UpdateRole(ctx, farmID, actorID, userID, newRole)
	if err != nil {
		return authz.MemberChange{}, err
	}
	s.logChange(ctx, change)
	return change, nil
}

// RemoveMember deletes a membership.
func (s *Service) RemoveMember(ctx context.Context, farmID, actorID, userID string) (authz.MemberChange, error) {
	change, err := s.members.Remove(ctx, farmID, actorID, userID)
	if err != nil {
		return authz.MemberChange{}, err
	}
	s.logChange(ctx, change)
	return change, nil
}

// logChange persists the mutation to the change log. Failures are
// logged but do not undo the already-committed mutation.
func (s *Service) logChange(ctx context.Context, change authz.MemberChange) {
	if err := s.store.RecordMemberChange(ctx, change); err != nil && s.logger != nil {
		s.logger.Warn("farms: record member change",
			slog.String("farm_id", change.FarmID),
			slog.String("user_id", change.UserID),
			slog.Any("error", err),
		)
	}
}
