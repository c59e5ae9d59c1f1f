package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-planner/internal/llm"
	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/service"
)

func newTestServer(t *testing.T, completer llm.Completer) http.Handler {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	taskRepo := repository.NewTaskRepository(db)
	tasks := service.NewTaskService(taskRepo, service.NewClassificationService(completer))
	srv := New(Deps{
		Tasks:       tasks,
		Categories:  service.NewCategoryService(repository.NewCategoryRepository(db)),
		Schedule:    service.NewScheduleService(completer),
		Breakdown:   service.NewBreakdownService(completer),
		Suggestions: service.NewSuggestionService(completer),
		Applier:     service.NewApplier(tasks),
	}, Options{Addr: ":0", AllowedOrigins: []string{"http://localhost:5173"}})
	return srv.Handler()
}

func downCompleter() llm.Completer {
	return llm.CompleterFunc(func(context.Context, string) (string, error) {
		return "", llm.ErrQuota
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTaskLifecycle(t *testing.T) {
	h := newTestServer(t, downCompleter())

	rec := do(t, h, http.MethodPost, "/api/tasks", `{"text":"Buy milk","scheduledDate":"2026-05-02","scheduledTime":"18:00"}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Task](t, rec)
	assert.Equal(t, model.CategoryOther, created.Category)
	assert.Equal(t, model.PriorityMedium, created.Priority)
	require.NotNil(t, created.OwnerID)

	rec = do(t, h, http.MethodPatch, "/api/tasks/"+created.ID, `{"completed":true,"category":"shopping"}`, "1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Task](t, rec)
	assert.True(t, updated.Completed)
	assert.Equal(t, model.CategoryShopping, updated.Category)

	rec = do(t, h, http.MethodGet, "/api/tasks?date=2026-05-02&completed=true", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[tasksResponse](t, rec).Tasks, 1)

	rec = do(t, h, http.MethodGet, "/api/tasks", "", "2")
	assert.Empty(t, decode[tasksResponse](t, rec).Tasks)

	rec = do(t, h, http.MethodGet, "/api/stats", "", "1")
	stats := decode[service.Stats](t, rec)
	assert.Equal(t, int64(1), stats.Completed)

	rec = do(t, h, http.MethodDelete, "/api/tasks/"+created.ID, "", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/tasks/"+created.ID, "", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "task not found", decode[errorResponse](t, rec).Error)
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, downCompleter())

	cases := []struct {
		method, path, body, user string
	}{
		{http.MethodPost, "/api/tasks", `{"text":""}`, ""},
		{http.MethodPost, "/api/tasks", `{"text":"x","category":"chores"}`, ""},
		{http.MethodPost, "/api/tasks", `not json`, ""},
		{http.MethodPatch, "/api/tasks/abc", `{}`, ""},
		{http.MethodGet, "/api/tasks?date=tomorrow", "", ""},
		{http.MethodGet, "/api/tasks", "", "not-a-number"},
		{http.MethodPost, "/api/schedule", `{"description":"x","days":0}`, ""},
		{http.MethodPost, "/api/schedule/apply", `{"items":[],"startDate":"2026-01-01"}`, ""},
	}
	for _, c := range cases {
		rec := do(t, h, c.method, c.path, c.body, c.user)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s %s", c.method, c.path, c.body)
	}
}

func TestAIEndpointsNeverFailOnModelErrors(t *testing.T) {
	h := newTestServer(t, downCompleter())

	rec := do(t, h, http.MethodPost, "/api/classify", `{"text":"Run 5k","priority":"high"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.Classification{Category: model.CategoryOther, Priority: model.PriorityHigh}, decode[service.Classification](t, rec))

	rec = do(t, h, http.MethodPost, "/api/schedule", `{"description":"Move flat","days":3}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.FallbackSchedule("Move flat", 3), decode[scheduleResponse](t, rec).Items)

	rec = do(t, h, http.MethodPost, "/api/breakdown", `{"text":"Plan a birthday party"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[stepsResponse](t, rec).Items)

	rec = do(t, h, http.MethodPost, "/api/suggestions", `{}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.FallbackSuggestions, decode[stepsResponse](t, rec).Items)
}

func readEvents(t *testing.T, body *bytes.Buffer) []applyEvent {
	t.Helper()
	var events []applyEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var ev applyEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	return events
}

func TestScheduleApplyStream(t *testing.T) {
	h := newTestServer(t, downCompleter())

	body := `{"startDate":"2026-06-01","items":[{"title":"Plan","day":1,"time":"09:00"},{"title":"Finish","day":2}]}`
	rec := do(t, h, http.MethodPost, "/api/schedule/apply", body, "4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body)
	require.Len(t, events, 3)
	assert.Equal(t, applyEvent{Type: "progress", Committed: 1, Total: 2}, events[0])
	assert.Equal(t, applyEvent{Type: "progress", Committed: 2, Total: 2}, events[1])
	assert.Equal(t, "result", events[2].Type)
	assert.Equal(t, "completed", events[2].State)
	require.Len(t, events[2].Tasks, 2)
	assert.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), events[2].Tasks[1].ScheduledDate.UTC())

	rec = do(t, h, http.MethodGet, "/api/tasks?date=2026-06-01", "", "4")
	assert.Len(t, decode[tasksResponse](t, rec).Tasks, 1)
}

func TestBreakdownApplyKeepsCategory(t *testing.T) {
	h := newTestServer(t, downCompleter())

	rec := do(t, h, http.MethodPost, "/api/breakdown/apply", `{"items":["Book venue","Send invites"],"category":"personal"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := readEvents(t, rec.Body)
	require.Len(t, events, 3)
	assert.Equal(t, "completed", events[2].State)
	for _, task := range events[2].Tasks {
		assert.Equal(t, model.CategoryPersonal, task.Category)
	}
}

func TestStreamApplyAbort(t *testing.T) {
	failAfterFirst := &flakyCreator{}
	srv := &Server{deps: Deps{Applier: service.NewApplier(failAfterFirst)}}

	req := httptest.NewRequest(http.MethodPost, "/api/breakdown/apply", nil)
	rec := httptest.NewRecorder()
	srv.streamApply(rec, req, []service.ApplyItem{{Text: "a"}, {Text: "b"}, {Text: "c"}}, service.Pacing{})

	events := readEvents(t, rec.Body)
	require.Len(t, events, 2)
	final := events[1]
	assert.Equal(t, "aborted", final.State)
	require.NotNil(t, final.Index)
	assert.Equal(t, 1, *final.Index)
	assert.Equal(t, 1, final.Committed)
	assert.Contains(t, final.Error, "disk full")
}

type flakyCreator struct{ calls int }

func (f *flakyCreator) CreateTask(_ context.Context, input service.TaskInput) (*model.Task, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("disk full")
	}
	return &model.Task{ID: "t1", Text: input.Text}, nil
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, downCompleter())

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
