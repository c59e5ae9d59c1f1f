package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/service"
	"smart-planner/internal/session"
)

const (
	cbDonePrefix          = "done:"
	cbDeletePrefix        = "del:"
	cbConfirmDeletePrefix = "delok:"
	cbKeep                = "keep"
	cbPlanApply           = "plan:apply"
	cbPlanDiscard         = "plan:discard"
	cbStepPrefix          = "step:"
	cbSuggestionPrefix    = "sug:"
	cbAll                 = "all"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	ctx, ok, err := b.withSession(ctx, cb.From)
	if err != nil {
		b.answer(cb, "")
		return err
	}
	if !ok {
		b.answer(cb, "You are signed out. Send /start first.")
		return nil
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	slog.Info("callback", "user", cb.From.ID, "data", data)

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		b.answer(cb, "")
		return b.completeTask(ctx, chatID, strings.TrimPrefix(data, cbDonePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		b.answer(cb, "")
		task, err := b.deps.Tasks.GetTask(ctx, strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return b.sendText(chatID, "Task not found or already deleted.")
			}
			return err
		}
		return b.askDeleteConfirmation(chatID, task)
	case strings.HasPrefix(data, cbConfirmDeletePrefix):
		b.answer(cb, "")
		return b.deleteTask(ctx, cb, strings.TrimPrefix(data, cbConfirmDeletePrefix))
	case data == cbKeep:
		b.answer(cb, "Kept")
		b.dropInlineKeyboard(chatID, cb.Message.MessageID)
		return nil
	case data == cbPlanApply:
		return b.applyPlan(ctx, cb)
	case data == cbPlanDiscard:
		b.mu.Lock()
		b.previewFor(cb.From.ID).plan = nil
		b.mu.Unlock()
		b.answer(cb, "Discarded")
		b.dropInlineKeyboard(chatID, cb.Message.MessageID)
		return nil
	case strings.HasPrefix(data, cbStepPrefix):
		return b.addFromPreview(ctx, cb, strings.TrimPrefix(data, cbStepPrefix), true)
	case strings.HasPrefix(data, cbSuggestionPrefix):
		return b.addFromPreview(ctx, cb, strings.TrimPrefix(data, cbSuggestionPrefix), false)
	default:
		b.answer(cb, "")
		return nil
	}
}

func (b *Bot) deleteTask(ctx context.Context, cb *tgbotapi.CallbackQuery, id string) error {
	chatID := cb.Message.Chat.ID
	b.dropInlineKeyboard(chatID, cb.Message.MessageID)

	task, err := b.deps.Tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return b.sendText(chatID, "Task not found or already deleted.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
	if err := b.deps.Tasks.DeleteTask(ctx, id); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Text))))
}

// applyPlan commits the previewed schedule. A second tap while a run is in
// flight is rejected.
func (b *Bot) applyPlan(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if b.deps.Applier.Running(ctx) {
		b.answer(cb, "Still adding the previous items, please wait.")
		return nil
	}

	b.mu.Lock()
	p := b.previewFor(cb.From.ID)
	draft := p.plan
	p.plan = nil
	b.mu.Unlock()

	if draft == nil {
		b.answer(cb, "This preview has expired.")
		return nil
	}
	b.answer(cb, "Adding to your calendar…")
	b.dropInlineKeyboard(cb.Message.Chat.ID, cb.Message.MessageID)

	items := service.ScheduleApplyItems(draft.items, draft.start)
	b.startApply(cb.From.ID, cb.Message.Chat.ID, items, b.opts.SchedulePacing)
	return nil
}

// addFromPreview adds one previewed step or suggestion, or every step when ref is "all".
func (b *Bot) addFromPreview(ctx context.Context, cb *tgbotapi.CallbackQuery, ref string, steps bool) error {
	b.mu.Lock()
	p := b.previewFor(cb.From.ID)
	items := p.suggestions
	if steps {
		items = p.steps
	}
	b.mu.Unlock()

	if len(items) == 0 {
		b.answer(cb, "This list has expired.")
		return nil
	}

	if ref == cbAll {
		if b.deps.Applier.Running(ctx) {
			b.answer(cb, "Still adding the previous items, please wait.")
			return nil
		}
		b.mu.Lock()
		b.previewFor(cb.From.ID).steps = nil
		b.mu.Unlock()

		b.answer(cb, "Adding all steps…")
		b.dropInlineKeyboard(cb.Message.Chat.ID, cb.Message.MessageID)
		b.startApply(cb.From.ID, cb.Message.Chat.ID, service.BreakdownApplyItems(items, ""), b.opts.BreakdownPacing)
		return nil
	}

	index, err := strconv.Atoi(ref)
	if err != nil || index < 0 || index >= len(items) {
		b.answer(cb, "This list has expired.")
		return nil
	}

	task, err := b.deps.Tasks.CreateTask(ctx, service.TaskInput{Text: items[index]})
	if err != nil {
		b.answer(cb, "Could not add it")
		return err
	}
	b.answer(cb, "Added")
	return b.sendText(cb.Message.Chat.ID, strings.TrimSpace("➕ <b>Added</b>\n"+service.FormatTask(*task, b.now())))
}

// startApply runs the orchestrator off the update loop and reports progress
// by editing a single message.
func (b *Bot) startApply(userID, chatID int64, items []service.ApplyItem, pacing service.Pacing) {
	ctx, ok := b.backgroundContext(userID)
	if !ok {
		return
	}

	go func() {
		if err := b.runApply(ctx, chatID, items, pacing); err != nil {
			slog.Error("apply run", "user", userID, "error", err)
		}
	}()
}

func (b *Bot) runApply(ctx context.Context, chatID int64, items []service.ApplyItem, pacing service.Pacing) error {
	total := len(items)
	progressMsg, err := b.api.Send(newHTMLMessage(chatID, applyingText(0, total)))
	if err != nil {
		return err
	}

	result, err := b.deps.Applier.Apply(ctx, items, pacing, func(committed, total int) {
		if err := b.editText(chatID, progressMsg.MessageID, applyingText(committed, total)); err != nil {
			slog.Debug("edit progress", "error", err)
		}
	})

	var applyErr *service.ApplyError
	switch {
	case errors.Is(err, service.ErrApplyInFlight):
		return b.editText(chatID, progressMsg.MessageID, "⏳ Another batch is still being added. Try again when it finishes.")
	case errors.As(err, &applyErr):
		notice := fmt.Sprintf("⚠️ Some items could not be saved. %d of %d were added before the error: %s",
			result.Committed, result.Total, escape(applyErr.Err.Error()))
		return b.sendText(chatID, notice)
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("⚠️ Adding stopped: %s", escape(err.Error())))
	}

	if err := b.editText(chatID, progressMsg.MessageID, fmt.Sprintf("✅ Added %d of %d", result.Committed, result.Total)); err != nil {
		slog.Debug("edit progress", "error", err)
	}
	return b.sendTaskList(chatID, "🆕 <b>New tasks</b>", result.Tasks)
}

func applyingText(committed, total int) string {
	return fmt.Sprintf("⏳ Applying %d/%d", committed, total)
}

func newHTMLMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if b.isSignedOut(user.TelegramID) {
			continue
		}
		text, err := b.deps.Reminders.DailySummary(ctx, user, now)
		if err != nil {
			slog.Warn("build summary", "user", user.TelegramID, "error", err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			slog.Warn("send summary", "user", user.TelegramID, "error", err)
		}
	}
	return nil
}

// SendDailySuggestions offers every known user a few new task ideas with
// inline add buttons.
func (b *Bot) SendDailySuggestions(ctx context.Context) error {
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if b.isSignedOut(user.TelegramID) {
			continue
		}
		if err := b.suggestFor(ctx, user); err != nil {
			slog.Warn("send suggestions", "user", user.TelegramID, "error", err)
		}
	}
	return nil
}

func (b *Bot) suggestFor(ctx context.Context, user model.User) error {
	ctx = session.WithContext(ctx, session.ForUser(user.ID))
	tasks, err := b.deps.Tasks.List(ctx, repository.ListFilter{})
	if err != nil {
		return err
	}
	return b.offerSuggestions(user.TelegramID, user.TelegramID, b.deps.Suggestions.Generate(ctx, tasks))
}
