package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/service"
	"smart-planner/internal/session"
)

const commandList = "• /newtask — add a task step by step\n" +
	"• /tasks [category] — open tasks, tap to complete\n" +
	"• /today — today's calendar\n" +
	"• /calendar &lt;YYYY-MM-DD&gt; — calendar of a day\n" +
	"• /complete &lt;id&gt; — mark a task done\n" +
	"• /edit &lt;id&gt; &lt;text&gt; — change the text\n" +
	"• /move &lt;id&gt; &lt;YYYY-MM-DD&gt; — reschedule, keeping the time\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /plan [description] — spread a task over several days\n" +
	"• /breakdown &lt;text&gt; — split a task into steps\n" +
	"• /suggest — ideas for new tasks\n" +
	"• /stats — progress by category\n" +
	"• /report — daily report right now\n" +
	"• /logout — sign out\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.signIn(ctx, msg.From)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(user.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I am your smart planner: I keep your tasks and help you plan them.</b>\n\nCommands:\n%s", escape(name), commandList)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+commandList+"\n\nTask ids are the short codes shown next to 🆔.")
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	open := false
	filter := repository.ListFilter{Completed: &open}

	if raw := strings.TrimSpace(msg.CommandArguments()); raw != "" && raw != "all" {
		category, ok := model.ParseCategory(raw)
		if !ok {
			return b.sendText(msg.Chat.ID, "Unknown category. Pick one of: "+categoryNames()+".")
		}
		filter.Category = category
	}

	tasks, err := b.deps.Tasks.List(ctx, filter)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "You have no open tasks. Add one with /newtask.")
	}
	return b.sendTaskList(msg.Chat.ID, "📋 <b>Open tasks</b>", tasks)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendCalendar(ctx, msg.Chat.ID, b.now())
}

func (b *Bot) handleCalendar(ctx context.Context, msg *tgbotapi.Message) error {
	raw := strings.TrimSpace(msg.CommandArguments())
	if raw == "" {
		return b.sendCalendar(ctx, msg.Chat.ID, b.now())
	}
	day, err := parseDay(raw, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Use a date like <code>/calendar 2026-11-30</code>.")
	}
	return b.sendCalendar(ctx, msg.Chat.ID, day)
}

func (b *Bot) sendCalendar(ctx context.Context, chatID int64, day time.Time) error {
	t := model.Day(day)
	tasks, err := b.deps.Tasks.Calendar(ctx, t)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load the calendar: %s", escape(err.Error())))
	}
	title := fmt.Sprintf("📅 <b>%s</b>", t.Format("Mon, 02 Jan 2006"))
	if len(tasks) == 0 {
		return b.sendText(chatID, title+"\nNothing scheduled.")
	}
	return b.sendTaskList(chatID, title, tasks)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the task id: <code>/complete 1a2b3c4d</code>")
	}

	task, ok, err := b.resolveTask(ctx, msg.Chat.ID, ref)
	if !ok {
		return err
	}
	if task.Completed {
		return b.sendText(msg.Chat.ID, "This task is already done.")
	}
	return b.completeTask(ctx, msg.Chat.ID, task.ID)
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	ref, text, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	text = strings.TrimSpace(text)
	if ref == "" || text == "" {
		return b.sendText(msg.Chat.ID, "Usage: <code>/edit 1a2b3c4d new text</code>")
	}

	task, ok, err := b.resolveTask(ctx, msg.Chat.ID, ref)
	if !ok {
		return err
	}
	updated, err := b.deps.Tasks.UpdateTask(ctx, task.ID, model.TaskPatch{Text: &text})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not update the task: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace("✏️ <b>Updated</b>\n"+service.FormatTask(*updated, b.now())))
}

func (b *Bot) handleMove(ctx context.Context, msg *tgbotapi.Message) error {
	ref, rawDay, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	if ref == "" || strings.TrimSpace(rawDay) == "" {
		return b.sendText(msg.Chat.ID, "Usage: <code>/move 1a2b3c4d 2026-11-30</code>")
	}
	day, err := parseDay(rawDay, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30</code>, «today» or «tomorrow».")
	}

	task, ok, err := b.resolveTask(ctx, msg.Chat.ID, ref)
	if !ok {
		return err
	}
	moved, err := b.deps.Tasks.MoveTask(ctx, task.ID, day)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not move the task: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace("📆 <b>Moved</b>\n"+service.FormatTask(*moved, b.now())))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the task id: <code>/delete 1a2b3c4d</code>")
	}

	task, ok, err := b.resolveTask(ctx, msg.Chat.ID, ref)
	if !ok {
		return err
	}
	return b.askDeleteConfirmation(msg.Chat.ID, task)
}

func (b *Bot) handleBreakdown(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		return b.sendText(msg.Chat.ID, "Usage: <code>/breakdown plan a birthday party</code>")
	}

	steps, err := b.deps.Breakdown.Generate(ctx, text)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Cannot break that down: %s", escape(err.Error())))
	}
	if len(steps) == 0 {
		return b.sendText(msg.Chat.ID, "No steps came up for this one. Try describing it in more detail.")
	}
	return b.offerSteps(msg.Chat.ID, msg.From.ID, "🧩 <b>Steps</b>", steps)
}

func (b *Bot) handleSuggest(ctx context.Context, msg *tgbotapi.Message) error {
	tasks, err := b.deps.Tasks.List(ctx, repository.ListFilter{})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	return b.offerSuggestions(msg.Chat.ID, msg.From.ID, b.deps.Suggestions.Generate(ctx, tasks))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	stats, err := b.deps.Categories.Stats(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load statistics: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, formatStats(stats))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	userID := session.FromContext(ctx).OwnerFilter()
	if userID == nil {
		return b.signedOutNotice(msg.Chat.ID, nil)
	}
	user, err := b.deps.Users.FindByID(ctx, *userID)
	if err != nil {
		return err
	}
	text, err := b.deps.Reminders.DailySummary(ctx, *user, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLogout(msg *tgbotapi.Message) error {
	b.mu.Lock()
	b.signedOut[msg.From.ID] = true
	b.mu.Unlock()

	b.deps.Sessions.Clear(msg.From.ID)
	slog.Info("signed out", "user", msg.From.ID)
	return b.sendText(msg.Chat.ID, "👋 Signed out. Send /start to come back.")
}

// resolveTask looks a task up by short id. When ok is false the user has
// already been told why.
func (b *Bot) resolveTask(ctx context.Context, chatID int64, ref string) (*model.Task, bool, error) {
	task, err := b.deps.Tasks.ResolveTask(ctx, ref)
	switch {
	case err == nil:
		return task, true, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, false, b.sendText(chatID, "Task not found.")
	case errors.Is(err, repository.ErrAmbiguous):
		return nil, false, b.sendText(chatID, "Several tasks match that id. Give a few more characters.")
	default:
		return nil, false, err
	}
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, id string) error {
	task, err := b.deps.Tasks.ToggleTask(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return b.sendText(chatID, "Task not found or already deleted.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if task.Completed {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Text))))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» is open again.", escape(normalizeTitle(task.Text))))
}

func (b *Bot) askDeleteConfirmation(chatID int64, task *model.Task) error {
	text := fmt.Sprintf("Delete «%s»?", escape(normalizeTitle(task.Text)))
	_, err := b.sendWithReplyMarkup(chatID, text, confirmDeleteKeyboard(task.ID))
	return err
}

func (b *Bot) sendTaskList(chatID int64, title string, tasks []model.Task) error {
	text, buttons := formatTaskList(title, tasks, b.now())
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.api.Send(msg)
	return err
}
