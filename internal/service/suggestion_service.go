package service

import (
	"context"
	"log/slog"
	"strings"

	"smart-planner/internal/llm"
	"smart-planner/internal/model"
)

// FallbackSuggestions is shown whenever the model cannot produce anything usable.
var FallbackSuggestions = []string{
	"Review and organize your workspace",
	"Take a 5-minute breathing break",
	"Plan tomorrow's priorities",
	"Drink a glass of water",
	"Send a quick message to a friend or family member",
}

// SuggestionService proposes everyday tasks that complement the current list.
type SuggestionService struct {
	llm llm.Completer
}

func NewSuggestionService(completer llm.Completer) *SuggestionService {
	return &SuggestionService{llm: completer}
}

// Generate returns up to six suggestions that do not repeat existing task text.
// The result is never empty.
func (s *SuggestionService) Generate(ctx context.Context, existing []model.Task) []string {
	texts := make([]string, 0, len(existing))
	seen := make(map[string]struct{}, len(existing))
	for _, task := range existing {
		texts = append(texts, task.Text)
		seen[normalize(task.Text)] = struct{}{}
	}

	raw, err := s.llm.Complete(ctx, render(suggestionPrompt, struct{ Existing string }{strings.Join(texts, ", ")}))
	if err != nil {
		slog.Debug("suggestion generation failed, using fallback", "error", err)
		return fallbackSuggestions()
	}

	// Only numbered lines are dropped here; bullets are unwrapped and kept.
	suggestions := filterLines(raw, numberedLine, maxSuggestionItems*2, nil)
	out := make([]string, 0, maxSuggestionItems)
	for _, line := range suggestions {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*•+"))
		line = strings.Trim(line, `"'`)
		key := normalize(line)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
		if len(out) == maxSuggestionItems {
			break
		}
	}
	if len(out) == 0 {
		slog.Debug("suggestion response had no usable lines, using fallback", "raw", raw)
		return fallbackSuggestions()
	}
	return out
}

func fallbackSuggestions() []string {
	return append([]string(nil), FallbackSuggestions...)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
