package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"smart-planner/internal/model"
)

// CategoryCount aggregates tasks of one category.
type CategoryCount struct {
	Category  model.Category `json:"category"`
	Total     int64          `json:"total"`
	Completed int64          `json:"completed"`
}

// CategoryRepository answers per-category questions about tasks.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Counts groups the visible tasks by category. owner nil counts every task.
func (r *CategoryRepository) Counts(ctx context.Context, owner *uint) ([]CategoryCount, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("category, COUNT(*) AS total, SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS completed")
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}

	var counts []CategoryCount
	if err := q.Group("category").Order("category ASC").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	return counts, nil
}
