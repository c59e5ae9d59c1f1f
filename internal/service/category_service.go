package service

import (
	"context"

	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/session"
)

// Stats is the dashboard summary for the current session.
type Stats struct {
	Total      int64                      `json:"total"`
	Active     int64                      `json:"active"`
	Completed  int64                      `json:"completed"`
	ByCategory []repository.CategoryCount `json:"byCategory"`
}

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// List returns every category in display order.
func (s *CategoryService) List() []model.Category {
	return append([]model.Category(nil), model.Categories...)
}

// Stats counts the tasks visible to the session in ctx.
func (s *CategoryService) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.repo.Counts(ctx, session.FromContext(ctx).OwnerFilter())
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ByCategory: counts}
	for _, c := range counts {
		stats.Total += c.Total
		stats.Completed += c.Completed
	}
	stats.Active = stats.Total - stats.Completed
	if stats.ByCategory == nil {
		stats.ByCategory = []repository.CategoryCount{}
	}
	return stats, nil
}
