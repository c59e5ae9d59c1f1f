package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"smart-planner/internal/model"
	"smart-planner/internal/repository"
)

// ReminderService builds human-readable summaries for periodic notifications.
type ReminderService struct {
	taskRepo *repository.TaskRepository
}

func NewReminderService(taskRepo *repository.TaskRepository) *ReminderService {
	return &ReminderService{taskRepo: taskRepo}
}

// DailySummary renders an HTML digest of the user's open tasks: overdue,
// today's calendar, upcoming and unscheduled.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	open := false
	tasks, err := s.taskRepo.List(ctx, repository.ListFilter{OwnerID: &user.ID, Completed: &open})
	if err != nil {
		return "", err
	}

	today := model.Day(now)
	var overdue, dueToday, upcoming, unscheduled []model.Task
	for _, task := range tasks {
		switch {
		case task.ScheduledDate == nil:
			unscheduled = append(unscheduled, task)
		case task.ScheduledDate.Before(today):
			overdue = append(overdue, task)
		case task.ScheduledDate.Equal(today):
			dueToday = append(dueToday, task)
		default:
			upcoming = append(upcoming, task)
		}
	}

	sortByTime(dueToday)
	sortByDate(overdue)
	sortByDate(upcoming)
	sort.SliceStable(unscheduled, func(i, j int) bool {
		return priorityRank(unscheduled[i].Priority) > priorityRank(unscheduled[j].Priority)
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("Mon, 02 Jan 2006")))

	writeSection(&builder, "⚠️ <b>Overdue</b>", overdue, "nothing overdue", now)
	writeSection(&builder, "📅 <b>Today</b>", dueToday, "nothing on the calendar today", now)
	writeSection(&builder, "🔜 <b>Upcoming</b>", upcoming, "nothing planned ahead", now)
	writeSection(&builder, "📝 <b>Unscheduled</b>", unscheduled, "no open tasks without a date", now)

	return strings.TrimSpace(builder.String()), nil
}

func writeSection(builder *strings.Builder, title string, tasks []model.Task, empty string, now time.Time) {
	builder.WriteString("\n" + title + "\n")
	if len(tasks) == 0 {
		builder.WriteString("— " + empty + "\n")
		return
	}
	for _, task := range tasks {
		builder.WriteString(FormatTask(task, now))
	}
}

// FormatTask renders one task as an HTML line for chat messages.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "⬜️"
	if task.Completed {
		icon = "✅"
	}
	sb.WriteString(fmt.Sprintf("%s %s %s", icon, priorityIcon(task.Priority), html.EscapeString(strings.TrimSpace(task.Text))))

	if task.Category != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(string(task.Category))))
	}

	if task.ScheduledDate != nil {
		date := task.ScheduledDate.Format("2006-01-02")
		if task.ScheduledTime != "" {
			date += " " + html.EscapeString(task.ScheduledTime)
		}
		days := int(task.ScheduledDate.Sub(model.Day(now)).Hours() / 24)
		switch {
		case task.Completed:
			sb.WriteString(fmt.Sprintf("\n   📆 %s", date))
		case days < 0:
			sb.WriteString(fmt.Sprintf("\n   📆 %s · <b>%d d. overdue</b>", date, -days))
		case days == 0:
			sb.WriteString(fmt.Sprintf("\n   📆 %s · today", date))
		default:
			sb.WriteString(fmt.Sprintf("\n   📆 %s · in %d d.", date, days))
		}
	}

	if len(task.ID) >= 8 {
		sb.WriteString(fmt.Sprintf("\n   🆔 <code>%s</code>", task.ID[:8]))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

func priorityRank(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 2
	case model.PriorityMedium:
		return 1
	default:
		return 0
	}
}

func sortByDate(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].ScheduledDate, tasks[j].ScheduledDate
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return tasks[i].ScheduledTime < tasks[j].ScheduledTime
	})
}
