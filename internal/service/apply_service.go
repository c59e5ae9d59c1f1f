package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"smart-planner/internal/model"
	"smart-planner/internal/session"
)

// ApplyItem is one generated item ready to become a task.
type ApplyItem struct {
	Text     string
	Date     *time.Time
	Time     string
	Category model.Category
	Priority model.Priority
}

// ApplyState is the state of a single apply run.
type ApplyState int

const (
	ApplyIdle ApplyState = iota
	ApplyRunning
	ApplyCompleted
	ApplyAborted
)

func (s ApplyState) String() string {
	switch s {
	case ApplyIdle:
		return "idle"
	case ApplyRunning:
		return "running"
	case ApplyCompleted:
		return "completed"
	case ApplyAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Pacing controls the pause between commits and the pause after the last one.
type Pacing struct {
	Pace   time.Duration
	Settle time.Duration
}

// ProgressFunc is called after every commit with the running count.
type ProgressFunc func(committed, total int)

// ApplyResult summarizes a finished run.
type ApplyResult struct {
	State     ApplyState
	Committed int
	Total     int
	Tasks     []model.Task
}

// TaskCreator persists one task. TaskService satisfies it.
type TaskCreator interface {
	CreateTask(ctx context.Context, input TaskInput) (*model.Task, error)
}

// Applier commits generated items one at a time. At most one run per owner is
// in flight; a second Apply for the same owner fails with ErrApplyInFlight.
type Applier struct {
	creator TaskCreator
	sleep   func(ctx context.Context, d time.Duration)

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewApplier(creator TaskCreator) *Applier {
	return &Applier{
		creator:  creator,
		sleep:    sleepContext,
		inFlight: make(map[string]struct{}),
	}
}

// WithSleep replaces the pacing sleep, mainly for tests.
func (a *Applier) WithSleep(sleep func(ctx context.Context, d time.Duration)) *Applier {
	a.sleep = sleep
	return a
}

// Running reports whether the owner in ctx has a run in flight.
func (a *Applier) Running(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inFlight[ownerKey(ctx)]
	return ok
}

// Apply commits items in order. Item k+1 is not started before item k is
// stored. The first failure aborts the run and returns *ApplyError; earlier
// commits stay. Cancelling ctx stops the run before the next item, never
// in the middle of a create.
func (a *Applier) Apply(ctx context.Context, items []ApplyItem, pacing Pacing, progress ProgressFunc) (ApplyResult, error) {
	key := ownerKey(ctx)
	if !a.acquire(key) {
		return ApplyResult{State: ApplyIdle, Total: len(items)}, ErrApplyInFlight
	}
	defer a.release(key)

	total := len(items)
	result := ApplyResult{State: ApplyRunning, Total: total, Tasks: make([]model.Task, 0, total)}

	for i, item := range items {
		if ctx.Err() != nil {
			return abort(result, i, ErrApplyCancelled)
		}

		task, err := a.creator.CreateTask(context.WithoutCancel(ctx), TaskInput{
			Text:          item.Text,
			Category:      item.Category,
			Priority:      item.Priority,
			ScheduledDate: item.Date,
			ScheduledTime: item.Time,
		})
		if err != nil {
			return abort(result, i, err)
		}

		result.Committed++
		result.Tasks = append(result.Tasks, *task)
		if progress != nil {
			progress(result.Committed, total)
		}

		if i < total-1 {
			a.sleep(ctx, pacing.Pace)
		}
	}

	if ctx.Err() == nil {
		a.sleep(ctx, pacing.Settle)
	}
	result.State = ApplyCompleted
	slog.Info("apply completed", "owner", key, "committed", result.Committed)
	return result, nil
}

func abort(result ApplyResult, index int, err error) (ApplyResult, error) {
	result.State = ApplyAborted
	slog.Warn("apply aborted", "index", index, "committed", result.Committed, "error", err)
	return result, &ApplyError{Index: index, Committed: result.Committed, Err: err}
}

func (a *Applier) acquire(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[key]; busy {
		return false
	}
	a.inFlight[key] = struct{}{}
	return true
}

func (a *Applier) release(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, key)
}

func ownerKey(ctx context.Context) string {
	s := session.FromContext(ctx)
	if !s.Authenticated() {
		return "anonymous"
	}
	return fmt.Sprintf("user:%d", *s.UserID)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ScheduleApplyItems places generated schedule items on the calendar from start.
func ScheduleApplyItems(items []ScheduleItem, start time.Time) []ApplyItem {
	start = model.Day(start)
	out := make([]ApplyItem, 0, len(items))
	for _, item := range items {
		date := ScheduleDate(start, item.Day)
		out = append(out, ApplyItem{Text: item.Title, Date: &date, Time: item.Time})
	}
	return out
}

// BreakdownApplyItems turns sub-steps into unscheduled items sharing category.
func BreakdownApplyItems(steps []string, category model.Category) []ApplyItem {
	out := make([]ApplyItem, 0, len(steps))
	for _, step := range steps {
		out = append(out, ApplyItem{Text: step, Category: category})
	}
	return out
}
