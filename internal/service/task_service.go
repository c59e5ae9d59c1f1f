package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/session"
)

// TaskInput represents data required to create a task. Empty Category or
// Priority are inferred by the classifier.
type TaskInput struct {
	Text          string
	Category      model.Category
	Priority      model.Priority
	ScheduledDate *time.Time
	ScheduledTime string
}

// TaskService wraps task-related business logic. The acting owner always comes
// from the session stored in ctx.
type TaskService struct {
	taskRepo   *repository.TaskRepository
	classifier *ClassificationService
}

func NewTaskService(taskRepo *repository.TaskRepository, classifier *ClassificationService) *TaskService {
	return &TaskService{taskRepo: taskRepo, classifier: classifier}
}

// CreateTask resolves category and priority exactly once, then persists the task.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	class, err := s.classifier.Classify(ctx, text, Classification{Category: input.Category, Priority: input.Priority})
	if err != nil {
		return nil, err
	}

	task := model.Task{
		Text:          text,
		Category:      class.Category,
		Priority:      class.Priority,
		OwnerID:       session.FromContext(ctx).OwnerFilter(),
		ScheduledDate: input.ScheduledDate,
		ScheduledTime: strings.TrimSpace(input.ScheduledTime),
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	slog.Info("task created", "id", task.ID, "category", task.Category, "priority", task.Priority)
	return &task, nil
}

// List returns the tasks visible to the session in ctx, newest first.
func (s *TaskService) List(ctx context.Context, filter repository.ListFilter) ([]model.Task, error) {
	filter.OwnerID = session.FromContext(ctx).OwnerFilter()
	return s.taskRepo.List(ctx, filter)
}

// Calendar returns the visible tasks scheduled on day, ordered by time with untimed tasks last.
func (s *TaskService) Calendar(ctx context.Context, day time.Time) ([]model.Task, error) {
	tasks, err := s.List(ctx, repository.ListFilter{Date: &day})
	if err != nil {
		return nil, err
	}
	sortByTime(tasks)
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, id)
}

// ResolveTask finds a visible task by full id or unique prefix.
func (s *TaskService) ResolveTask(ctx context.Context, ref string) (*model.Task, error) {
	return s.taskRepo.FindByPrefix(ctx, session.FromContext(ctx).OwnerFilter(), ref)
}

// UpdateTask applies a partial update and returns the stored result.
func (s *TaskService) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if patch.Text != nil {
		text := strings.TrimSpace(*patch.Text)
		if text == "" {
			return nil, ErrEmptyText
		}
		patch.Text = &text
	}
	if patch.Category != nil && !patch.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, *patch.Category)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *patch.Priority)
	}

	if err := s.taskRepo.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.taskRepo.FindByID(ctx, id)
}

// ToggleTask flips the completed flag.
func (s *TaskService) ToggleTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	done := !task.Completed
	return s.UpdateTask(ctx, id, model.TaskPatch{Completed: &done})
}

// MoveTask reschedules a task to day and keeps its time of day.
func (s *TaskService) MoveTask(ctx context.Context, id string, day time.Time) (*model.Task, error) {
	day = model.Day(day)
	return s.UpdateTask(ctx, id, model.TaskPatch{ScheduledDate: &day})
}

// DeleteTask removes a task permanently.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("task deleted", "id", id)
	return nil
}

// Classify runs classification without creating a task.
func (s *TaskService) Classify(ctx context.Context, text string, override Classification) (Classification, error) {
	return s.classifier.Classify(ctx, text, override)
}

// AutoCategory suggests a category for text without touching priority.
func (s *TaskService) AutoCategory(ctx context.Context, text string) (model.Category, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return s.classifier.InferCategory(ctx, text), nil
}

// sortByTime orders tasks by scheduled time of day; untimed tasks go last.
func sortByTime(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].ScheduledTime, tasks[j].ScheduledTime
		switch {
		case a == "":
			return false
		case b == "":
			return true
		default:
			return a < b
		}
	})
}
