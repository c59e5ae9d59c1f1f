package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-planner/internal/llm"
	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/service"
	"smart-planner/internal/session"
)

const userID int64 = 42

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu      sync.Mutex
	next    int
	sent    []tgbotapi.Chattable
	answers []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.next}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb.Text)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) sawText(substr string) bool {
	for _, text := range f.texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

func (f *fakeAPI) sawAnswer(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, text := range f.answers {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

type fixture struct {
	bot  *Bot
	api  *fakeAPI
	deps Deps
}

func reply(text string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, string) (string, error) { return text, nil })
}

func unavailable() llm.Completer {
	return llm.CompleterFunc(func(context.Context, string) (string, error) { return "", llm.ErrTransport })
}

func newFixture(t *testing.T, completer llm.Completer, wrap func(service.TaskCreator) service.TaskCreator) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	taskRepo := repository.NewTaskRepository(db)
	tasks := service.NewTaskService(taskRepo, service.NewClassificationService(completer))
	var creator service.TaskCreator = tasks
	if wrap != nil {
		creator = wrap(tasks)
	}

	deps := Deps{
		Users:       repository.NewUserRepository(db),
		Tasks:       tasks,
		Categories:  service.NewCategoryService(repository.NewCategoryRepository(db)),
		Reminders:   service.NewReminderService(taskRepo),
		Schedule:    service.NewScheduleService(completer),
		Breakdown:   service.NewBreakdownService(completer),
		Suggestions: service.NewSuggestionService(completer),
		Applier:     service.NewApplier(creator).WithSleep(func(context.Context, time.Duration) {}),
		Sessions:    session.NewManager(),
	}
	api := &fakeAPI{}
	b := NewWithAPI(api, deps, Options{
		Debounce: 10 * time.Millisecond,
		Now:      func() time.Time { return fixedNow },
	})
	return &fixture{bot: b, api: api, deps: deps}
}

func (f *fixture) send(t *testing.T, text string) {
	t.Helper()
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Ada", UserName: "ada"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	}
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (f *fixture) tap(t *testing.T, data string) {
	t.Helper()
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID, FirstName: "Ada"},
		Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: userID, Type: "private"}},
		Data:    data,
	}})
}

func (f *fixture) sessionContext(t *testing.T) context.Context {
	t.Helper()
	current, ok := f.deps.Sessions.Current(userID)
	require.True(t, ok, "user should be signed in")
	return session.WithContext(context.Background(), session.ForUser(*current))
}

func (f *fixture) tasks(t *testing.T) []model.Task {
	t.Helper()
	tasks, err := f.deps.Tasks.List(f.sessionContext(t), repository.ListFilter{})
	require.NoError(t, err)
	return tasks
}

// count is safe to call from Eventually conditions.
func (f *fixture) count() int {
	current, ok := f.deps.Sessions.Current(userID)
	if !ok {
		return -1
	}
	tasks, err := f.deps.Tasks.List(session.WithContext(context.Background(), session.ForUser(*current)), repository.ListFilter{})
	if err != nil {
		return -1
	}
	return len(tasks)
}

func TestStartSignsIn(t *testing.T) {
	f := newFixture(t, unavailable(), nil)

	f.send(t, "/start")

	users, err := f.deps.Users.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, userID, users[0].TelegramID)

	current, ok := f.deps.Sessions.Current(userID)
	require.True(t, ok)
	assert.Equal(t, users[0].ID, *current)
	assert.Contains(t, f.api.lastText(), "Hi, Ada")
}

func TestNewTaskConversation(t *testing.T) {
	f := newFixture(t, unavailable(), nil)

	f.send(t, "/newtask")
	f.send(t, "Buy milk")
	f.send(t, "🛒 Shopping")
	f.send(t, "🔴 High")
	f.send(t, "tomorrow")
	f.send(t, "9:05")

	assert.Contains(t, f.api.lastText(), "Task saved")
	assert.False(t, f.bot.hasConversation(userID))

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "Buy milk", task.Text)
	assert.Equal(t, model.CategoryShopping, task.Category)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	require.NotNil(t, task.ScheduledDate)
	assert.Equal(t, "2026-05-02", task.ScheduledDate.UTC().Format(dateLayout))
	assert.Equal(t, "09:05", task.ScheduledTime)
}

func TestNewTaskConversationAutoAndSkip(t *testing.T) {
	f := newFixture(t, unavailable(), nil)

	f.send(t, "/newtask")
	f.send(t, "Call the bank")
	f.send(t, "✨ Auto")
	f.send(t, "auto")
	f.send(t, "next week")
	assert.Contains(t, f.api.lastText(), "Cannot read that date")
	assert.True(t, f.bot.hasConversation(userID))

	f.send(t, "⏭️ Skip")

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.CategoryOther, tasks[0].Category)
	assert.Equal(t, model.PriorityMedium, tasks[0].Priority)
	assert.Nil(t, tasks[0].ScheduledDate)
}

func TestCancelDropsConversation(t *testing.T) {
	f := newFixture(t, unavailable(), nil)

	f.send(t, "/newtask")
	f.send(t, "⏪ Cancel input")

	assert.False(t, f.bot.hasConversation(userID))
	assert.Contains(t, f.api.lastText(), "cancelled")
}

func TestBreakdownPreviewAfterTextSettles(t *testing.T) {
	f := newFixture(t, reply("Book a venue\nSend invitations"), nil)

	f.send(t, "/newtask")
	f.send(t, "Plan a birthday party for Sam")

	require.Eventually(t, func() bool { return f.api.sawText("Suggested steps") }, time.Second, 5*time.Millisecond)

	f.tap(t, "step:all")
	require.Eventually(t, func() bool { return f.count() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.api.sawText("Applying 2/2") }, time.Second, 5*time.Millisecond)

	f.tap(t, "step:0")
	assert.True(t, f.api.sawAnswer("expired"))
}

func TestShortTextDoesNotArmBreakdown(t *testing.T) {
	f := newFixture(t, reply("Book a venue\nSend invitations"), nil)

	f.send(t, "/newtask")
	f.send(t, "Buy milk")

	assert.False(t, f.bot.debouncer.Pending(userID))
}

func TestPlanConversationAndApply(t *testing.T) {
	f := newFixture(t, unavailable(), nil)

	f.send(t, "/plan Move flat")
	f.send(t, "0")
	assert.Contains(t, f.api.lastText(), "between 1 and 14")
	f.send(t, "2")
	f.send(t, "skip")
	assert.Contains(t, f.api.lastText(), "Plan for «Move flat»")

	f.tap(t, "plan:apply")
	require.Eventually(t, func() bool { return f.api.sawText("Added 2 of 2") }, time.Second, 5*time.Millisecond)
	assert.True(t, f.api.sawText("Applying 1/2"))

	tasks := f.tasks(t)
	require.Len(t, tasks, 2)
	days := map[string]bool{}
	for _, task := range tasks {
		days[task.ScheduledDate.UTC().Format(dateLayout)] = true
	}
	assert.Equal(t, map[string]bool{"2026-05-01": true, "2026-05-02": true}, days)

	f.tap(t, "plan:apply")
	assert.True(t, f.api.sawAnswer("expired"))
}

type gatedCreator struct {
	next    service.TaskCreator
	release chan struct{}
}

func (g *gatedCreator) CreateTask(ctx context.Context, input service.TaskInput) (*model.Task, error) {
	<-g.release
	return g.next.CreateTask(ctx, input)
}

func TestApplyLockout(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, unavailable(), func(next service.TaskCreator) service.TaskCreator {
		return &gatedCreator{next: next, release: gate}
	})

	f.send(t, "/plan Move flat")
	f.send(t, "1")
	f.send(t, "skip")
	f.tap(t, "plan:apply")

	ctx := f.sessionContext(t)
	require.Eventually(t, func() bool { return f.deps.Applier.Running(ctx) }, time.Second, 5*time.Millisecond)

	f.send(t, "/plan Paint walls")
	f.send(t, "1")
	f.send(t, "skip")
	f.tap(t, "plan:apply")
	assert.True(t, f.api.sawAnswer("Still adding"))

	close(gate)
	require.Eventually(t, func() bool { return !f.deps.Applier.Running(ctx) }, time.Second, 5*time.Millisecond)
	assert.Len(t, f.tasks(t), 2)
}

func TestCompleteEditMoveDelete(t *testing.T) {
	f := newFixture(t, unavailable(), nil)
	f.send(t, "/start")

	task, err := f.deps.Tasks.CreateTask(f.sessionContext(t), service.TaskInput{Text: "Water plants", Category: model.CategoryPersonal})
	require.NoError(t, err)
	short := task.ID[:8]

	f.send(t, "/complete "+short)
	got, err := f.deps.Tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	f.send(t, "/edit "+short+" Water all plants")
	got, _ = f.deps.Tasks.GetTask(context.Background(), task.ID)
	assert.Equal(t, "Water all plants", got.Text)

	f.send(t, "/move "+short+" 2026-06-10")
	got, _ = f.deps.Tasks.GetTask(context.Background(), task.ID)
	require.NotNil(t, got.ScheduledDate)
	assert.Equal(t, "2026-06-10", got.ScheduledDate.UTC().Format(dateLayout))

	f.send(t, "/complete zzzzzzzz")
	assert.Equal(t, "Task not found.", f.api.lastText())

	f.send(t, "/delete "+short)
	assert.Contains(t, f.api.lastText(), "Delete «Water all plants»?")
	f.tap(t, "delok:"+task.ID)
	assert.Empty(t, f.tasks(t))
}

func TestLogoutBlocksUntilStart(t *testing.T) {
	f := newFixture(t, unavailable(), nil)

	f.send(t, "/start")
	f.send(t, "/logout")
	_, ok := f.deps.Sessions.Current(userID)
	assert.False(t, ok)

	f.send(t, "/tasks")
	assert.Contains(t, f.api.lastText(), "signed out")

	f.send(t, "/start")
	_, ok = f.deps.Sessions.Current(userID)
	assert.True(t, ok)
}

func TestDailyJobs(t *testing.T) {
	f := newFixture(t, unavailable(), nil)
	f.send(t, "/start")

	require.NoError(t, f.bot.SendDailyReports(context.Background()))
	assert.Contains(t, f.api.lastText(), "Daily report")

	require.NoError(t, f.bot.SendDailySuggestions(context.Background()))
	assert.Contains(t, f.api.lastText(), service.FallbackSuggestions[0])

	f.tap(t, "sug:0")
	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, service.FallbackSuggestions[0], tasks[0].Text)
}

func TestStatsAndToday(t *testing.T) {
	f := newFixture(t, unavailable(), nil)
	f.send(t, "/start")

	today := model.Day(fixedNow)
	_, err := f.deps.Tasks.CreateTask(f.sessionContext(t), service.TaskInput{Text: "Stand-up", Category: model.CategoryWork, ScheduledDate: &today, ScheduledTime: "09:30"})
	require.NoError(t, err)

	f.send(t, "/today")
	assert.Contains(t, f.api.lastText(), "Stand-up")

	f.send(t, "/calendar 2026-05-02")
	assert.Contains(t, f.api.lastText(), "Nothing scheduled")

	f.send(t, "/stats")
	assert.Contains(t, f.api.lastText(), "Total: 1 · open: 1 · done: 0")

	f.send(t, "/tasks chores")
	assert.Contains(t, f.api.lastText(), "Unknown category")
}
