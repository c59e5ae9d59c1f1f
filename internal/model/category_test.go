package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	cases := map[string]struct {
		want Category
		ok   bool
	}{
		"work":        {CategoryWork, true},
		"  Health \n": {CategoryHealth, true},
		"LEARNING":    {CategoryLearning, true},
		"sports":      {"", false},
		"":            {"", false},
		"work.":       {"", false},
	}
	for raw, tc := range cases {
		got, ok := ParseCategory(raw)
		assert.Equal(t, tc.ok, ok, raw)
		assert.Equal(t, tc.want, got, raw)
	}
}

func TestParsePriority(t *testing.T) {
	p, ok := ParsePriority(" High ")
	assert.True(t, ok)
	assert.Equal(t, PriorityHigh, p)

	_, ok = ParsePriority("urgent")
	assert.False(t, ok)
}

func TestTaskPatchEmpty(t *testing.T) {
	assert.True(t, TaskPatch{}.Empty())

	done := true
	assert.False(t, TaskPatch{Completed: &done}.Empty())
	assert.False(t, TaskPatch{Unschedule: true}.Empty())
}

func TestDay(t *testing.T) {
	in := time.Date(2026, 3, 14, 23, 45, 12, 99, time.FixedZone("UTC+7", 7*3600))
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), Day(in))
}
