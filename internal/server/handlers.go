package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"smart-planner/internal/model"
	"smart-planner/internal/repository"
	"smart-planner/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseCategory(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, ok := model.ParsePriority(fl.Field().String())
		return ok
	})
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, map[string]string{"status": "ok"})
}

// handleListTasks
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter repository.ListFilter

	if raw := q.Get("category"); raw != "" && raw != "all" {
		category, ok := model.ParseCategory(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		filter.Category = category
	}
	if raw := q.Get("date"); raw != "" {
		day, err := time.Parse(DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		filter.Date = &day
	}
	if raw := q.Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		filter.Completed = &completed
	}

	var (
		tasks []model.Task
		err   error
	)
	if filter.Date != nil {
		tasks, err = s.deps.Tasks.Calendar(r.Context(), *filter.Date)
		tasks = narrow(tasks, filter)
	} else {
		tasks, err = s.deps.Tasks.List(r.Context(), filter)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAPIJSON(w, tasksResponse{Tasks: nonNil(tasks)})
}

// handleCreateTask
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input := service.TaskInput{Text: req.Text, ScheduledTime: req.ScheduledTime}
	input.Category, _ = model.ParseCategory(req.Category)
	input.Priority, _ = model.ParsePriority(req.Priority)
	if req.ScheduledDate != "" {
		day, _ := time.Parse(DateLayout, req.ScheduledDate)
		input.ScheduledDate = &day
	}

	task, err := s.deps.Tasks.CreateTask(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(task)
}

// handleUpdateTask
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patch := model.TaskPatch{
		Text:          req.Text,
		Completed:     req.Completed,
		ScheduledTime: req.ScheduledTime,
		Unschedule:    req.Unschedule,
	}
	if req.Category != nil {
		category, _ := model.ParseCategory(*req.Category)
		patch.Category = &category
	}
	if req.Priority != nil {
		priority, _ := model.ParsePriority(*req.Priority)
		patch.Priority = &priority
	}
	if req.ScheduledDate != nil {
		day, _ := time.Parse(DateLayout, *req.ScheduledDate)
		patch.ScheduledDate = &day
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	task, err := s.deps.Tasks.UpdateTask(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAPIJSON(w, task)
}

// handleDeleteTask
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Tasks.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Categories.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAPIJSON(w, stats)
}

// handleClassify
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	override := service.Classification{}
	override.Category, _ = model.ParseCategory(req.Category)
	override.Priority, _ = model.ParsePriority(req.Priority)

	result, err := s.deps.Tasks.Classify(r.Context(), req.Text, override)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAPIJSON(w, result)
}

// handleSchedule
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	items, err := s.deps.Schedule.Generate(r.Context(), req.Description, req.Days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAPIJSON(w, scheduleResponse{Items: items})
}

// handleScheduleApply
func (s *Server) handleScheduleApply(w http.ResponseWriter, r *http.Request) {
	var req scheduleApplyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	start, _ := time.Parse(DateLayout, req.StartDate)

	items := make([]service.ScheduleItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.ScheduleItem{Title: item.Title, Day: item.Day, Time: item.Time})
	}
	s.streamApply(w, r, service.ScheduleApplyItems(items, start), s.opts.SchedulePacing)
}

// handleBreakdown
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	steps, err := s.deps.Breakdown.Generate(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAPIJSON(w, stepsResponse{Items: steps})
}

// handleBreakdownApply
func (s *Server) handleBreakdownApply(w http.ResponseWriter, r *http.Request) {
	var req breakdownApplyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	category, _ := model.ParseCategory(req.Category)
	s.streamApply(w, r, service.BreakdownApplyItems(req.Items, category), s.opts.BreakdownPacing)
}

// handleSuggestions
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.deps.Tasks.List(r.Context(), repository.ListFilter{})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAPIJSON(w, stepsResponse{Items: s.deps.Suggestions.Generate(r.Context(), tasks)})
}

// streamApply runs the orchestrator and reports progress as NDJSON lines. The
// response status is committed with the first line, so a rejected run
// (another one in flight) still gets a plain 409.
func (s *Server) streamApply(w http.ResponseWriter, r *http.Request, items []service.ApplyItem, pacing service.Pacing) {
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	started := false
	emit := func(ev applyEvent) {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		_ = enc.Encode(ev)
		if flusher != nil {
			flusher.Flush()
		}
	}

	result, err := s.deps.Applier.Apply(r.Context(), items, pacing, func(committed, total int) {
		emit(applyEvent{Type: "progress", Committed: committed, Total: total})
	})

	if errors.Is(err, service.ErrApplyInFlight) && !started {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	final := applyEvent{
		Type:      "result",
		State:     result.State.String(),
		Committed: result.Committed,
		Total:     result.Total,
		Tasks:     result.Tasks,
	}
	var applyErr *service.ApplyError
	if errors.As(err, &applyErr) {
		index := applyErr.Index
		final.Index = &index
		final.Error = "some items could not be saved: " + applyErr.Err.Error()
	} else if err != nil {
		final.Error = err.Error()
	}
	emit(final)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrEmptyText), errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrApplyInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeAPIJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// narrow applies the non-date filters to a calendar listing.
func narrow(tasks []model.Task, filter repository.ListFilter) []model.Task {
	out := tasks[:0]
	for _, task := range tasks {
		if filter.Category != "" && task.Category != filter.Category {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		out = append(out, task)
	}
	return out
}

func nonNil(tasks []model.Task) []model.Task {
	if tasks == nil {
		return []model.Task{}
	}
	return tasks
}
