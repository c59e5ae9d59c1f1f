package service

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"smart-planner/internal/llm"
	"smart-planner/internal/model"
)

// Classification is the (category, priority) pair resolved for a task.
type Classification struct {
	Category model.Category `json:"category"`
	Priority model.Priority `json:"priority"`
}

// ClassificationService maps task text onto the closed category and priority sets.
type ClassificationService struct {
	llm llm.Completer
}

func NewClassificationService(completer llm.Completer) *ClassificationService {
	return &ClassificationService{llm: completer}
}

// Classify resolves category and priority for text. Values set in override are
// returned as-is and the matching model call is skipped. Model failures never
// surface: category falls back to other, priority to medium.
func (s *ClassificationService) Classify(ctx context.Context, text string, override Classification) (Classification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Classification{}, ErrEmptyText
	}

	result := override
	if result.Category != "" && !result.Category.Valid() {
		result.Category = model.CategoryOther
	}
	if result.Priority != "" && !result.Priority.Valid() {
		result.Priority = model.PriorityMedium
	}

	var g errgroup.Group
	if result.Category == "" {
		g.Go(func() error {
			result.Category = s.InferCategory(ctx, text)
			return nil
		})
	}
	if result.Priority == "" {
		g.Go(func() error {
			result.Priority = s.InferPriority(ctx, text)
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

// InferCategory asks the model for a category, coercing anything unknown to other.
func (s *ClassificationService) InferCategory(ctx context.Context, text string) model.Category {
	raw, err := s.llm.Complete(ctx, render(categoryPrompt, struct{ Text string }{text}))
	if err != nil {
		slog.Debug("category inference failed, using fallback", "error", err)
		return model.CategoryOther
	}
	category, ok := model.ParseCategory(raw)
	if !ok {
		slog.Debug("category inference returned unknown value", "raw", raw)
		return model.CategoryOther
	}
	return category
}

// InferPriority asks the model for a priority, defaulting to medium.
func (s *ClassificationService) InferPriority(ctx context.Context, text string) model.Priority {
	raw, err := s.llm.Complete(ctx, render(priorityPrompt, struct{ Text string }{text}))
	if err != nil {
		slog.Debug("priority inference failed, using fallback", "error", err)
		return model.PriorityMedium
	}
	priority, ok := model.ParsePriority(raw)
	if !ok {
		slog.Debug("priority inference returned unknown value", "raw", raw)
		return model.PriorityMedium
	}
	return priority
}
