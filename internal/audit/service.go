package audit

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository reads audit rows newest first.
type Repository interface {
	Window(ctx context.Context, q Query) ([]Row, error)
}

// Service pages the audit log.
type Service struct {
	repo Repository
}

// NewService constructs an audit listing service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Recent returns one page of entries, newest first.
func (s *Service) Recent(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, Query{
		Actor:      strings.TrimSpace(filters.Actor),
		Action:     strings.TrimSpace(filters.Action),
		EntityType: strings.TrimSpace(filters.EntityType),
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize + 1,
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []Row{}
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
