package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/service"
	"smart-planner/internal/session"
)

// API is the part of the Telegram client the bot talks to.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the services behind the chat surface.
type Deps struct {
	Users       *repository.UserRepository
	Tasks       *service.TaskService
	Categories  *service.CategoryService
	Reminders   *service.ReminderService
	Schedule    *service.ScheduleService
	Breakdown   *service.BreakdownService
	Suggestions *service.SuggestionService
	Applier     *service.Applier
	Sessions    *session.Manager
}

type Options struct {
	SchedulePacing  service.Pacing
	BreakdownPacing service.Pacing
	// Debounce is how long the task text must stay unchanged before a breakdown preview is generated.
	Debounce time.Duration
	Now      func() time.Time
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api       API
	deps      Deps
	opts      Options
	debouncer *service.Debouncer

	mu            sync.Mutex
	ctx           context.Context
	conversations map[int64]*conversationState
	previews      map[int64]*preview
	signedOut     map[int64]bool
}

func New(token string, deps Deps, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	slog.Info("bot authorized", "account", api.Self.UserName)
	return NewWithAPI(api, deps, opts), nil
}

// NewWithAPI builds a bot on an existing client.
func NewWithAPI(api API, deps Deps, opts Options) *Bot {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}

	b := &Bot{
		api:           api,
		deps:          deps,
		opts:          opts,
		ctx:           context.Background(),
		conversations: make(map[int64]*conversationState),
		previews:      make(map[int64]*preview),
		signedOut:     make(map[int64]bool),
	}
	b.debouncer = service.NewDebouncer(opts.Debounce, b.previewBreakdown)
	deps.Sessions.Subscribe(func(ev session.Event) {
		slog.Debug("session changed", "principal", ev.Principal, "kind", ev.Kind)
		b.resetView(ev.Principal)
	})
	return b
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	slog.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.debouncer.Stop()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			slog.Error("handle callback", "error", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			slog.Error("handle message", "error", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.resetView(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		slog.Info("command", "from", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		ctx, ok, err := b.withSession(ctx, msg.From)
		if err != nil || !ok {
			return b.signedOutNotice(msg.Chat.ID, err)
		}
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not catch that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "cancel":
		b.resetView(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	ctx, ok, err := b.withSession(ctx, msg.From)
	if err != nil || !ok {
		return b.signedOutNotice(msg.Chat.ID, err)
	}

	switch msg.Command() {
	case "newtask":
		return b.startNewTaskConversation(msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "calendar":
		return b.handleCalendar(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "move":
		return b.handleMove(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "plan":
		return b.startPlanConversation(msg)
	case "breakdown":
		return b.handleBreakdown(ctx, msg)
	case "suggest":
		return b.handleSuggest(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "logout":
		return b.handleLogout(msg)
	default:
		return b.sendText(msg.Chat.ID, "Unsupported command. Take a look at /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	var command string
	switch text {
	case strings.ToLower(menuLabelNewTask):
		command = "/newtask"
	case strings.ToLower(menuLabelTasks):
		command = "/tasks"
	case strings.ToLower(menuLabelToday):
		command = "/today"
	case strings.ToLower(menuLabelPlan):
		command = "/plan"
	case strings.ToLower(menuLabelSuggest):
		command = "/suggest"
	case strings.ToLower(menuLabelHelp):
		command = "/help"
	default:
		return false, nil
	}

	alias := *msg
	alias.Text = command
	alias.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	return true, b.handleCommand(ctx, &alias)
}

// withSession binds the chat user's session to ctx, signing the user in on
// first contact. ok is false for users who signed out until they /start again.
func (b *Bot) withSession(ctx context.Context, from *tgbotapi.User) (context.Context, bool, error) {
	if b.isSignedOut(from.ID) {
		return ctx, false, nil
	}
	if _, ok := b.deps.Sessions.Current(from.ID); !ok {
		if _, err := b.signIn(ctx, from); err != nil {
			return ctx, false, err
		}
	}
	return session.WithContext(ctx, b.deps.Sessions.Session(from.ID)), true, nil
}

func (b *Bot) signIn(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	user, err := b.deps.Users.UpsertFromTelegram(ctx, model.User{
		TelegramID: from.ID,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
		Username:   from.UserName,
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	b.mu.Lock()
	delete(b.signedOut, from.ID)
	b.mu.Unlock()

	b.deps.Sessions.Establish(from.ID, user.ID)
	return user, nil
}

// backgroundContext is the bot lifetime context carrying principal's session.
func (b *Bot) backgroundContext(principal int64) (context.Context, bool) {
	b.mu.Lock()
	ctx := b.ctx
	signedOut := b.signedOut[principal]
	b.mu.Unlock()

	if signedOut {
		return nil, false
	}
	if _, ok := b.deps.Sessions.Current(principal); !ok {
		return nil, false
	}
	return session.WithContext(ctx, b.deps.Sessions.Session(principal)), true
}

func (b *Bot) signedOutNotice(chatID int64, err error) error {
	if err != nil {
		return err
	}
	return b.sendText(chatID, "You are signed out. Send /start to sign in again.")
}

func (b *Bot) isSignedOut(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signedOut[userID]
}

// resetView drops every piece of per-user chat state.
func (b *Bot) resetView(userID int64) {
	b.debouncer.Reset(userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
	delete(b.previews, userID)
}

func (b *Bot) now() time.Time {
	return b.opts.Now()
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.api.Send(msg)
}

func (b *Bot) editText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) dropInlineKeyboard(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(edit); err != nil {
		slog.Debug("drop inline keyboard", "error", err)
	}
}

func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		slog.Warn("callback ack", "error", err)
	}
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
