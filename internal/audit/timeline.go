package audit

import (
	"context"
	"fmt"
	"time"
)

// TimelineFilters narrows the decision timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	UserID   string
	FarmID   string
	Outcome  string
	Page     int
	PageSize int
}

// TimelineRow is one audited decision in the admin timeline.
type TimelineRow struct {
	At         time.Time `json:"at"`
	UserID     string    `json:"user_id"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	FarmID     string    `json:"farm_id,omitempty"`
	Authorized bool      `json:"authorized"`
	Role       string    `json:"role,omitempty"`
	Reason     string    `json:"reason"`
	Outcome    string    `json:"outcome"`
}

// PagingInfo carries the timeline paging state.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// WindowParams is the repository-level query window.
type WindowParams struct {
	From    time.Time
	To      time.Time
	UserID  string
	FarmID  string
	Outcome string
	Offset  int
	Limit   int
}

// TimelineRepository provides read access to stored decisions.
type TimelineRepository interface {
	DecisionsWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error)
}

// Service coordinates decision timeline reads.
type Service struct {
	repo TimelineRepository
}

// NewService builds a timeline service.
func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches decisions with paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.DecisionsWindow(ctx, WindowParams{
		From:    filters.From,
		To:      filters.To,
		UserID:  filters.UserID,
		FarmID:  filters.FarmID,
		Outcome: filters.Outcome,
		Offset:  offset,
		Limit:   pageSize + 1,
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}
