package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-planner/internal/model"
)

func TestClassify_AlwaysInClosedSetWhenCompleterFails(t *testing.T) {
	svc := NewClassificationService(failing())

	for _, text := range []string{"Buy milk", "Finish quarterly report", "???"} {
		got, err := svc.Classify(context.Background(), text, Classification{})
		require.NoError(t, err)
		assert.Equal(t, model.CategoryOther, got.Category)
		assert.Equal(t, model.PriorityMedium, got.Priority)
	}
}

func TestClassify_OverridesSkipCompleter(t *testing.T) {
	completer := failing()
	svc := NewClassificationService(completer)

	got, err := svc.Classify(context.Background(), "Buy milk", Classification{
		Category: model.CategoryShopping,
		Priority: model.PriorityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, Classification{Category: model.CategoryShopping, Priority: model.PriorityLow}, got)
	assert.Zero(t, completer.Calls())
}

func TestClassify_PartialOverrideMakesOneCall(t *testing.T) {
	completer := byPrompt("work", "HIGH\n")
	svc := NewClassificationService(completer)

	got, err := svc.Classify(context.Background(), "Ship release", Classification{Category: model.CategoryLearning})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryLearning, got.Category)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, 1, completer.Calls())
}

func TestClassify_NormalizesAndCoerces(t *testing.T) {
	tests := []struct {
		name         string
		category     string
		priority     string
		wantCategory model.Category
		wantPriority model.Priority
	}{
		{name: "valid with noise", category: "  Health \n", priority: "low", wantCategory: model.CategoryHealth, wantPriority: model.PriorityLow},
		{name: "unknown values", category: "groceries", priority: "urgent", wantCategory: model.CategoryOther, wantPriority: model.PriorityMedium},
		{name: "chatty answer", category: "The category is work.", priority: "medium", wantCategory: model.CategoryOther, wantPriority: model.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewClassificationService(byPrompt(tt.category, tt.priority))
			got, err := svc.Classify(context.Background(), "some task", Classification{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantPriority, got.Priority)
		})
	}
}

func TestClassify_EmptyText(t *testing.T) {
	completer := failing()
	_, err := NewClassificationService(completer).Classify(context.Background(), "   ", Classification{})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, completer.Calls())
}
