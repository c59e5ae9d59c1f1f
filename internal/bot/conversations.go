package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"smart-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageText
	stageCategory
	stagePriority
	stageDate
	stageTime
	stagePlanDescription
	stagePlanDays
	stagePlanStart
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput

	planDescription string
	planDays        int
}

// preview keeps generated items a user can still add from inline buttons.
type preview struct {
	plan        *planDraft
	steps       []string
	suggestions []string
}

type planDraft struct {
	description string
	start       time.Time
	items       []service.ScheduleItem
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	slog.Info("start new task conversation", "user", msg.From.ID)
	b.debouncer.Reset(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageText})
	_, err := b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what needs to be done?", cancelKeyboard())
	return err
}

func (b *Bot) startPlanConversation(msg *tgbotapi.Message) error {
	state := &conversationState{stage: stagePlanDescription}
	b.setConversation(msg.From.ID, state)

	if description := strings.TrimSpace(msg.CommandArguments()); description != "" {
		state.planDescription = description
		state.stage = stagePlanDays
		_, err := b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("🗓 Planning «%s».\nOver how many days (1–%d)?", escape(description), service.MaxScheduleDays), cancelKeyboard())
		return err
	}
	_, err := b.sendWithReplyMarkup(msg.Chat.ID, "🗓 Describe the task you want to spread over several days.", cancelKeyboard())
	return err
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageText:
		if text == "" {
			_, err := b.sendWithReplyMarkup(msg.Chat.ID, "The task text cannot be empty. What needs to be done?", cancelKeyboard())
			return err
		}
		state.input.Text = text
		state.stage = stageCategory
		b.debouncer.Trigger(msg.From.ID, text)
		_, err := b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category, or «Auto» to let the assistant decide.", categoryKeyboard())
		return err
	case stageCategory:
		if !isAutoInput(text) {
			category, ok := categoryFromInput(text)
			if !ok {
				_, err := b.sendWithReplyMarkup(msg.Chat.ID, "Unknown category. Use the buttons below.", categoryKeyboard())
				return err
			}
			state.input.Category = category
		}
		state.stage = stagePriority
		_, err := b.sendWithReplyMarkup(msg.Chat.ID, "⚡️ Priority?", priorityKeyboard())
		return err
	case stagePriority:
		if !isAutoInput(text) {
			priority, ok := priorityFromInput(text)
			if !ok {
				_, err := b.sendWithReplyMarkup(msg.Chat.ID, "Unknown priority. Use the buttons below.", priorityKeyboard())
				return err
			}
			state.input.Priority = priority
		}
		state.stage = stageDate
		_, err := b.sendWithReplyMarkup(msg.Chat.ID, "📅 When? Send a date like <code>2026-11-30</code>, «today» or «tomorrow» (or «Skip»).", skipKeyboard())
		return err
	case stageDate:
		if isSkipInput(text) {
			return b.finishTaskCreation(ctx, msg, state.input)
		}
		day, err := parseDay(text, b.now())
		if err != nil {
			_, err := b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30</code>, «today», «tomorrow» or «Skip».", skipKeyboard())
			return err
		}
		state.input.ScheduledDate = &day
		state.stage = stageTime
		_, err = b.sendWithReplyMarkup(msg.Chat.ID, "⏰ At what time? Send <code>HH:MM</code> (or «Skip»).", skipKeyboard())
		return err
	case stageTime:
		if !isSkipInput(text) {
			clock, err := parseClock(text)
			if err != nil {
				_, err := b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that time. Use <code>18:30</code> or «Skip».", skipKeyboard())
				return err
			}
			state.input.ScheduledTime = clock
		}
		return b.finishTaskCreation(ctx, msg, state.input)
	case stagePlanDescription:
		if text == "" {
			_, err := b.sendWithReplyMarkup(msg.Chat.ID, "Describe the task first.", cancelKeyboard())
			return err
		}
		state.planDescription = text
		state.stage = stagePlanDays
		_, err := b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Over how many days (1–%d)?", service.MaxScheduleDays), cancelKeyboard())
		return err
	case stagePlanDays:
		days, err := strconv.Atoi(text)
		if err != nil || days < 1 || days > service.MaxScheduleDays {
			_, err := b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("The number of days must be between 1 and %d.", service.MaxScheduleDays), cancelKeyboard())
			return err
		}
		state.planDays = days
		state.stage = stagePlanStart
		_, err = b.sendWithReplyMarkup(msg.Chat.ID, "📅 Start date? Send <code>2026-11-30</code>, «tomorrow», or «Skip» to start today.", skipKeyboard())
		return err
	case stagePlanStart:
		start := b.now()
		if !isSkipInput(text) {
			day, err := parseDay(text, b.now())
			if err != nil {
				_, err := b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30</code>, «today», «tomorrow» or «Skip».", skipKeyboard())
				return err
			}
			start = day
		}
		b.clearConversation(msg.From.ID)
		return b.draftPlan(ctx, msg.Chat.ID, msg.From.ID, state.planDescription, state.planDays, start)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Conversation reset. Try again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, msg *tgbotapi.Message, input service.TaskInput) error {
	b.clearConversation(msg.From.ID)

	task, err := b.deps.Tasks.CreateTask(ctx, input)
	if err != nil {
		if errors.Is(err, service.ErrEmptyText) {
			return b.sendText(msg.Chat.ID, "The task text cannot be empty.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	text := "✅ <b>Task saved</b>\n" + service.FormatTask(*task, b.now())
	return b.sendText(msg.Chat.ID, strings.TrimSpace(text))
}

func (b *Bot) draftPlan(ctx context.Context, chatID, userID int64, description string, days int, start time.Time) error {
	items, err := b.deps.Schedule.Generate(ctx, description, days)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Cannot plan that: %s", escape(err.Error())))
	}

	draft := &planDraft{description: description, start: start, items: items}
	b.mu.Lock()
	b.previewFor(userID).plan = draft
	b.mu.Unlock()

	_, err = b.sendWithReplyMarkup(chatID, formatSchedulePreview(draft), planKeyboard())
	return err
}

// previewBreakdown runs once the task text settles. It is dropped when the
// conversation no longer holds that text.
func (b *Bot) previewBreakdown(userID int64, text string) {
	state := b.getConversation(userID)
	if state == nil || state.input.Text != text {
		return
	}
	ctx, ok := b.backgroundContext(userID)
	if !ok {
		return
	}

	steps, err := b.deps.Breakdown.Generate(ctx, text)
	if err != nil || len(steps) == 0 {
		return
	}
	if err := b.offerSteps(userID, userID, "💡 This looks like a bigger task. Suggested steps:", steps); err != nil {
		slog.Warn("send breakdown preview", "user", userID, "error", err)
	}
}

func (b *Bot) offerSteps(chatID, userID int64, title string, steps []string) error {
	b.mu.Lock()
	b.previewFor(userID).steps = steps
	b.mu.Unlock()

	_, err := b.sendWithReplyMarkup(chatID, formatNumbered(title, steps), itemsKeyboard(cbStepPrefix, len(steps), true))
	return err
}

func (b *Bot) offerSuggestions(chatID, userID int64, suggestions []string) error {
	b.mu.Lock()
	b.previewFor(userID).suggestions = suggestions
	b.mu.Unlock()

	_, err := b.sendWithReplyMarkup(chatID, formatNumbered("💡 <b>Ideas for your list</b>", suggestions), itemsKeyboard(cbSuggestionPrefix, len(suggestions), false))
	return err
}

// previewFor must be called with b.mu held.
func (b *Bot) previewFor(userID int64) *preview {
	p, ok := b.previews[userID]
	if !ok {
		p = &preview{}
		b.previews[userID] = p
	}
	return p
}
