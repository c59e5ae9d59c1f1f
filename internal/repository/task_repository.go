package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smart-planner/internal/model"
)

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	// OwnerID scopes visibility; nil lists every owner's tasks.
	OwnerID   *uint
	Category  model.Category
	Date      *time.Time
	Completed *bool
}

// TaskRepository is the record store for tasks.
type TaskRepository struct {
	db  *gorm.DB
	now func() time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

// WithClock replaces the time source used for createdAt/updatedAt.
func (r *TaskRepository) WithClock(now func() time.Time) *TaskRepository {
	r.now = now
	return r
}

// stamp returns a UTC timestamp strictly after the previous one so that
// created_at ordering always follows insertion order.
func (r *TaskRepository) stamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	if !now.After(r.lastSeen) {
		now = r.lastSeen.Add(time.Nanosecond)
	}
	r.lastSeen = now
	return now
}

// Create assigns a new id and timestamps, then persists task.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	task.ID = uuid.NewString()
	now := r.stamp()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.ScheduledDate != nil {
		day := model.Day(*task.ScheduledDate)
		task.ScheduledDate = &day
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// List returns tasks matching filter, newest first.
func (r *TaskRepository) List(ctx context.Context, filter ListFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Date != nil {
		day := model.Day(*filter.Date)
		q = q.Where("scheduled_date >= ? AND scheduled_date < ?", day, day.AddDate(0, 0, 1))
	}
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}

	var tasks []model.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// FindByPrefix resolves a short id typed by a user. owner scopes the lookup when set.
func (r *TaskRepository) FindByPrefix(ctx context.Context, owner *uint, prefix string) (*model.Task, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || strings.ContainsAny(prefix, "%_") {
		return nil, ErrNotFound
	}

	q := r.db.WithContext(ctx).Where("id LIKE ?", prefix+"%")
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}
	var tasks []model.Task
	if err := q.Limit(2).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find task by prefix: %w", err)
	}
	switch len(tasks) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &tasks[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

// Update merges the non-nil fields of patch into the task and refreshes updatedAt.
func (r *TaskRepository) Update(ctx context.Context, id string, patch model.TaskPatch) error {
	updates := map[string]interface{}{
		"updated_at": r.stamp(),
	}
	if patch.Text != nil {
		updates["text"] = *patch.Text
	}
	if patch.Completed != nil {
		updates["completed"] = *patch.Completed
	}
	if patch.Category != nil {
		updates["category"] = *patch.Category
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.Unschedule {
		updates["scheduled_date"] = nil
		updates["scheduled_time"] = ""
	} else {
		if patch.ScheduledDate != nil {
			updates["scheduled_date"] = model.Day(*patch.ScheduledDate)
		}
		if patch.ScheduledTime != nil {
			updates["scheduled_time"] = *patch.ScheduledTime
		}
	}

	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a task permanently.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
