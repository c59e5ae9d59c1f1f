package server

import (
	"smart-planner/internal/model"
	"smart-planner/internal/service"
)

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

type createTaskRequest struct {
	Text          string `json:"text" validate:"required"`
	Category      string `json:"category" validate:"omitempty,category"`
	Priority      string `json:"priority" validate:"omitempty,priority"`
	ScheduledDate string `json:"scheduledDate" validate:"omitempty,datetime=2006-01-02"`
	ScheduledTime string `json:"scheduledTime" validate:"max=32"`
}

type updateTaskRequest struct {
	Text          *string `json:"text" validate:"omitempty,min=1"`
	Completed     *bool   `json:"completed"`
	Category      *string `json:"category" validate:"omitempty,category"`
	Priority      *string `json:"priority" validate:"omitempty,priority"`
	ScheduledDate *string `json:"scheduledDate" validate:"omitempty,datetime=2006-01-02"`
	ScheduledTime *string `json:"scheduledTime" validate:"omitempty,max=32"`
	Unschedule    bool    `json:"unschedule"`
}

type classifyRequest struct {
	Text     string `json:"text" validate:"required"`
	Category string `json:"category" validate:"omitempty,category"`
	Priority string `json:"priority" validate:"omitempty,priority"`
}

type scheduleRequest struct {
	Description string `json:"description" validate:"required"`
	Days        int    `json:"days" validate:"min=1,max=14"`
}

type scheduleItemRequest struct {
	Title string `json:"title" validate:"required"`
	Day   int    `json:"day" validate:"min=1"`
	Time  string `json:"time" validate:"max=32"`
}

type scheduleApplyRequest struct {
	Items     []scheduleItemRequest `json:"items" validate:"required,min=1,dive"`
	StartDate string                `json:"startDate" validate:"required,datetime=2006-01-02"`
}

type breakdownRequest struct {
	Text string `json:"text" validate:"required"`
}

type breakdownApplyRequest struct {
	Items    []string `json:"items" validate:"required,min=1,dive,required"`
	Category string   `json:"category" validate:"omitempty,category"`
}

type scheduleResponse struct {
	Items []service.ScheduleItem `json:"items"`
}

type stepsResponse struct {
	Items []string `json:"items"`
}

type tasksResponse struct {
	Tasks []model.Task `json:"tasks"`
}

// applyEvent is one line of an NDJSON apply stream.
type applyEvent struct {
	Type      string       `json:"type"`
	State     string       `json:"state,omitempty"`
	Committed int          `json:"committed"`
	Total     int          `json:"total"`
	Index     *int         `json:"index,omitempty"`
	Error     string       `json:"error,omitempty"`
	Tasks     []model.Task `json:"tasks,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
