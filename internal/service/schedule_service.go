package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"smart-planner/internal/llm"
)

// MaxScheduleDays caps the day-count a caller may request.
const MaxScheduleDays = 14

// ScheduleItem is one generated step, placed on a day in [1, N].
type ScheduleItem struct {
	Title string `json:"title"`
	Day   int    `json:"day"`
	Time  string `json:"time,omitempty"`
}

// rawScheduleItem mirrors what the model is asked to emit. Pointer fields let
// validation tell a missing key from a zero value.
type rawScheduleItem struct {
	Title *string  `json:"title" validate:"required"`
	Day   *float64 `json:"day" validate:"required,gte=1"`
	Time  any      `json:"time"`
}

var validate = validator.New()

// ScheduleService expands a task description into a multi-day plan.
type ScheduleService struct {
	llm llm.Completer
}

func NewScheduleService(completer llm.Completer) *ScheduleService {
	return &ScheduleService{llm: completer}
}

// Generate asks the model for a schedule over days days. Any transport or
// validation failure yields FallbackSchedule instead; only bad input errors.
func (s *ScheduleService) Generate(ctx context.Context, description string, days int) ([]ScheduleItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyText
	}
	if days < 1 || days > MaxScheduleDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidInput, MaxScheduleDays, days)
	}

	prompt := render(schedulePrompt, struct {
		Description string
		Days        int
	}{description, days})

	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("schedule generation failed, using fallback", "error", err)
		return FallbackSchedule(description, days), nil
	}

	items, err := ParseSchedule(raw, days)
	if err != nil {
		slog.Warn("schedule response rejected, using fallback", "error", err)
		return FallbackSchedule(description, days), nil
	}
	return items, nil
}

// ParseSchedule decodes and validates a model response for a days-day request.
// One bad element rejects the whole batch.
func ParseSchedule(raw string, days int) ([]ScheduleItem, error) {
	body := stripCodeFence(raw)

	dec := json.NewDecoder(strings.NewReader(body))
	var decoded []rawScheduleItem
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after array", ErrValidation)
	}
	if decoded == nil {
		return nil, fmt.Errorf("%w: not an array", ErrValidation)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrValidation)
	}

	items := make([]ScheduleItem, 0, len(decoded))
	for i, item := range decoded {
		if err := validate.Struct(item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrValidation, i, err)
		}
		title := strings.TrimSpace(*item.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: item %d: blank title", ErrValidation, i)
		}
		day := *item.Day
		if day != math.Trunc(day) || day > float64(days) {
			return nil, fmt.Errorf("%w: item %d: day %v outside [1, %d]", ErrValidation, i, day, days)
		}
		clock, err := timeString(item.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrValidation, i, err)
		}
		items = append(items, ScheduleItem{Title: title, Day: int(day), Time: clock})
	}
	return items, nil
}

// FallbackSchedule is the deterministic plan used whenever generation fails.
func FallbackSchedule(description string, days int) []ScheduleItem {
	if days <= 1 {
		return []ScheduleItem{
			{Title: "Start work on: " + description, Day: 1, Time: "09:00"},
			{Title: "Continue and complete: " + description, Day: 1, Time: "14:00"},
		}
	}

	items := []ScheduleItem{{Title: "Plan and research for: " + description, Day: 1, Time: "09:00"}}
	for day := 2; day < days; day++ {
		items = append(items, ScheduleItem{
			Title: fmt.Sprintf("Work on: %s (Day %d)", description, day),
			Day:   day,
			Time:  "09:00",
		})
	}
	return append(items, ScheduleItem{Title: "Finalize and review: " + description, Day: days, Time: "09:00"})
}

// ScheduleDate maps a 1-based day onto the calendar starting at start.
func ScheduleDate(start time.Time, day int) time.Time {
	return start.AddDate(0, 0, day-1)
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// timeString accepts a missing time, any string, or a bare number.
func timeString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("time has unsupported type %T", v)
	}
}
