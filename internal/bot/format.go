package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"smart-planner/internal/model"
	"smart-planner/internal/service"
)

const dateLayout = "2006-01-02"

var errBadClock = errors.New("time must be HH:MM")

func escape(s string) string {
	return html.EscapeString(s)
}

// parseDay accepts YYYY-MM-DD, "today" and "tomorrow" and returns the day at
// UTC midnight.
func parseDay(raw string, now time.Time) (time.Time, error) {
	value := strings.TrimSpace(strings.ToLower(raw))
	switch value {
	case "today":
		return model.Day(now), nil
	case "tomorrow":
		return model.Day(now).AddDate(0, 0, 1), nil
	}
	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return model.Day(day), nil
}

// parseClock normalizes "9:05" to "09:05".
func parseClock(raw string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return "", errBadClock
	}
	return t.Format("15:04"), nil
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isAutoInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnAuto) || value == "auto"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel"
}

func categoryIcon(c model.Category) string {
	switch c {
	case model.CategoryWork:
		return "💼"
	case model.CategoryPersonal:
		return "🧩"
	case model.CategoryShopping:
		return "🛒"
	case model.CategoryHealth:
		return "🩺"
	case model.CategoryLearning:
		return "🎓"
	default:
		return "📁"
	}
}

func categoryLabel(c model.Category) string {
	return fmt.Sprintf("%s %s", categoryIcon(c), normalizeTitle(string(c)))
}

func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴 High"
	case model.PriorityLow:
		return "🟢 Low"
	default:
		return "🟡 Medium"
	}
}

// categoryFromInput accepts a keyboard label or a bare category name.
func categoryFromInput(text string) (model.Category, bool) {
	value := strings.TrimSpace(strings.ToLower(text))
	for _, c := range model.Categories {
		if value == strings.ToLower(categoryLabel(c)) {
			return c, true
		}
	}
	return model.ParseCategory(value)
}

func priorityFromInput(text string) (model.Priority, bool) {
	value := strings.TrimSpace(strings.ToLower(text))
	for _, p := range model.Priorities {
		if value == strings.ToLower(priorityLabel(p)) {
			return p, true
		}
	}
	return model.ParsePriority(value)
}

func categoryNames() string {
	names := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// formatTaskList groups tasks by category in display order and returns the
// message with one done/delete button row per task.
func formatTaskList(title string, tasks []model.Task, now time.Time) (string, [][]tgbotapi.InlineKeyboardButton) {
	groups := make(map[model.Category][]model.Task)
	for _, task := range tasks {
		groups[task.Category] = append(groups[task.Category], task)
	}

	var builder strings.Builder
	builder.WriteString(title)
	builder.WriteString("\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, category := range model.Categories {
		section := groups[category]
		if len(section) == 0 {
			continue
		}
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", categoryLabel(category)))
		for _, task := range section {
			builder.WriteString(service.FormatTask(task, now))

			mark := "✅"
			if task.Completed {
				mark = "↩️"
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", mark, shortTitle(task.Text, 24)), cbDonePrefix+task.ID),
				tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
			))
		}
		builder.WriteByte('\n')
	}

	return strings.TrimSpace(builder.String()), buttons
}

func formatSchedulePreview(draft *planDraft) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>Plan for «%s»</b>\n", escape(draft.description)))

	day := 0
	for _, item := range draft.items {
		if item.Day != day {
			day = item.Day
			date := service.ScheduleDate(model.Day(draft.start), day)
			builder.WriteString(fmt.Sprintf("\n<b>Day %d</b> · %s\n", day, date.Format("Mon, 02 Jan")))
		}
		if item.Time != "" {
			builder.WriteString(fmt.Sprintf("• <code>%s</code> %s\n", escape(item.Time), escape(item.Title)))
		} else {
			builder.WriteString(fmt.Sprintf("• %s\n", escape(item.Title)))
		}
	}
	builder.WriteString("\nApply to add these to your calendar.")
	return builder.String()
}

func formatNumbered(title string, items []string) string {
	var builder strings.Builder
	builder.WriteString(title)
	builder.WriteByte('\n')
	for i, item := range items {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(item)))
	}
	return strings.TrimSpace(builder.String())
}

func formatStats(stats service.Stats) string {
	var builder strings.Builder
	builder.WriteString("📊 <b>Progress</b>\n")
	builder.WriteString(fmt.Sprintf("Total: %d · open: %d · done: %d\n", stats.Total, stats.Active, stats.Completed))
	if len(stats.ByCategory) == 0 {
		builder.WriteString("\nNo tasks yet.")
		return builder.String()
	}
	builder.WriteByte('\n')
	for _, row := range stats.ByCategory {
		builder.WriteString(fmt.Sprintf("%s: %d/%d\n", categoryLabel(row.Category), row.Completed, row.Total))
	}
	return strings.TrimSpace(builder.String())
}
