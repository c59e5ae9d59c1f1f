package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackSchedule(t *testing.T) {
	t.Run("one day", func(t *testing.T) {
		items := FallbackSchedule("Write essay", 1)
		require.Len(t, items, 2)
		assert.Equal(t, ScheduleItem{Title: "Start work on: Write essay", Day: 1, Time: "09:00"}, items[0])
		assert.Equal(t, ScheduleItem{Title: "Continue and complete: Write essay", Day: 1, Time: "14:00"}, items[1])
	})

	t.Run("two days", func(t *testing.T) {
		items := FallbackSchedule("Write essay", 2)
		require.Len(t, items, 2)
		assert.Equal(t, "Plan and research for: Write essay", items[0].Title)
		assert.Equal(t, 1, items[0].Day)
		assert.Equal(t, "Finalize and review: Write essay", items[1].Title)
		assert.Equal(t, 2, items[1].Day)
	})

	t.Run("three days", func(t *testing.T) {
		items := FallbackSchedule("Write essay", 3)
		require.Len(t, items, 3)
		assert.Equal(t, ScheduleItem{Title: "Work on: Write essay (Day 2)", Day: 2, Time: "09:00"}, items[1])
		assert.Equal(t, 3, items[2].Day)
	})

	for n := 1; n <= MaxScheduleDays; n++ {
		t.Run(fmt.Sprintf("days in range for N=%d", n), func(t *testing.T) {
			items := FallbackSchedule("x", n)
			want := n
			if n == 1 {
				want = 2
			}
			assert.Len(t, items, want)
			for _, item := range items {
				assert.GreaterOrEqual(t, item.Day, 1)
				assert.LessOrEqual(t, item.Day, n)
			}
		})
	}
}

func TestParseSchedule(t *testing.T) {
	valid := `[{"title":"Research","day":1,"time":"09:00"},{"title":"Draft","day":2}]`

	t.Run("valid", func(t *testing.T) {
		items, err := ParseSchedule(valid, 2)
		require.NoError(t, err)
		assert.Equal(t, []ScheduleItem{
			{Title: "Research", Day: 1, Time: "09:00"},
			{Title: "Draft", Day: 2},
		}, items)
	})

	t.Run("code fence", func(t *testing.T) {
		items, err := ParseSchedule("```json\n"+valid+"\n```", 2)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("time kept as-is", func(t *testing.T) {
		items, err := ParseSchedule(`[{"title":"Gym","day":1,"time":"after lunch"}]`, 1)
		require.NoError(t, err)
		assert.Equal(t, "after lunch", items[0].Time)
	})

	t.Run("numeric time", func(t *testing.T) {
		items, err := ParseSchedule(`[{"title":"Gym","day":1,"time":9}]`, 1)
		require.NoError(t, err)
		assert.Equal(t, "9", items[0].Time)
	})

	rejected := map[string]string{
		"day past N":       `[{"title":"a","day":1},{"title":"b","day":3}]`,
		"day zero":         `[{"title":"a","day":0}]`,
		"fractional day":   `[{"title":"a","day":1.5}]`,
		"day as string":    `[{"title":"a","day":"1"}]`,
		"missing title":    `[{"day":1}]`,
		"title not string": `[{"title":7,"day":1}]`,
		"blank title":      `[{"title":"  ","day":1}]`,
		"time as object":   `[{"title":"a","day":1,"time":{"a":1}}]`,
		"time as bool":     `[{"title":"a","day":1,"time":true}]`,
		"not an array":     `{"title":"a","day":1}`,
		"null":             `null`,
		"empty array":      `[]`,
		"prose":            `Here is your plan: [{"title":"a","day":1}]`,
		"trailing data":    `[{"title":"a","day":1}] thanks`,
	}
	for name, raw := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchedule(raw, 2)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestScheduleService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("uses model output", func(t *testing.T) {
		completer := replyWith(`[{"title":"Outline","day":1,"time":"10:00"},{"title":"Write","day":2,"time":"10:00"}]`)
		items, err := NewScheduleService(completer).Generate(ctx, "Write blog post", 2)
		require.NoError(t, err)
		assert.Equal(t, "Outline", items[0].Title)
		assert.Equal(t, 1, completer.Calls())
		assert.Contains(t, completer.prompts[0], `"Write blog post"`)
		assert.Contains(t, completer.prompts[0], "2 day(s)")
	})

	t.Run("out of range day rejects the batch", func(t *testing.T) {
		completer := replyWith(`[{"title":"Outline","day":1},{"title":"Extra","day":3}]`)
		items, err := NewScheduleService(completer).Generate(ctx, "Write blog post", 2)
		require.NoError(t, err)
		assert.Equal(t, FallbackSchedule("Write blog post", 2), items)
	})

	t.Run("transport failure falls back", func(t *testing.T) {
		items, err := NewScheduleService(failing()).Generate(ctx, "Move flat", 3)
		require.NoError(t, err)
		assert.Equal(t, FallbackSchedule("Move flat", 3), items)
	})

	t.Run("bad input", func(t *testing.T) {
		svc := NewScheduleService(failing())
		_, err := svc.Generate(ctx, " ", 2)
		assert.ErrorIs(t, err, ErrEmptyText)
		_, err = svc.Generate(ctx, "x", 0)
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = svc.Generate(ctx, "x", MaxScheduleDays+1)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestScheduleApplyItems(t *testing.T) {
	start := time.Date(2026, 1, 30, 18, 0, 0, 0, time.UTC)
	items := ScheduleApplyItems([]ScheduleItem{
		{Title: "a", Day: 1, Time: "09:00"},
		{Title: "b", Day: 3},
	}, start)

	require.Len(t, items, 2)
	assert.Equal(t, time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC), *items[0].Date)
	assert.Equal(t, "09:00", items[0].Time)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *items[1].Date)
}
