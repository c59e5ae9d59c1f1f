package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"smart-planner/internal/llm"
)

const (
	maxBreakdownItems  = 5
	maxSuggestionItems = 6
)

var (
	// markupLine matches lines that start with bullet or numbering markup.
	markupLine   = regexp.MustCompile(`^[-*•+\d.)]`)
	// numberedLine matches only numbered lines such as "1." or "2)".
	numberedLine = regexp.MustCompile(`^\d+[.)\s]`)
)

// BreakdownService splits one task into a handful of sub-steps.
type BreakdownService struct {
	llm llm.Completer
}

func NewBreakdownService(completer llm.Completer) *BreakdownService {
	return &BreakdownService{llm: completer}
}

// Generate returns up to five sub-steps for text. A failed call yields an
// empty result, never an error.
func (s *BreakdownService) Generate(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	raw, err := s.llm.Complete(ctx, render(breakdownPrompt, struct{ Text string }{text}))
	if err != nil {
		slog.Debug("breakdown generation failed", "error", err)
		return []string{}, nil
	}
	return ParseBreakdown(raw), nil
}

// ParseBreakdown applies the line filter used for breakdown responses.
func ParseBreakdown(raw string) []string {
	return filterLines(raw, markupLine, maxBreakdownItems, func(line string) bool {
		lower := strings.ToLower(line)
		return !strings.Contains(lower, "input:") && !strings.Contains(lower, "output:")
	})
}

// filterLines splits raw on newlines, trims each line and drops blanks and
// lines matching drop. keep, when set, is an extra predicate. At most limit lines survive.
func filterLines(raw string, drop *regexp.Regexp, limit int, keep func(string) bool) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, limit)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || drop.MatchString(line) {
			continue
		}
		if keep != nil && !keep(line) {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}
