package api

import (
	"encoding/json"
	"time"

	"github.com/slok/rpa/internal/model"
)

// ExecuteRequest is the body of a template execution request. Template is a
// template document, it takes precedence over TemplateID.
type ExecuteRequest struct {
	TemplateID  string          `json:"templateId,omitempty"`
	Template    json.RawMessage `json:"template,omitempty"`
	ProfilePath string          `json:"profilePath"`
	ProfileName string          `json:"profileName,omitempty"`
	Browser     string          `json:"browser,omitempty"`
	Variables   map[string]any  `json:"variables,omitempty"`
}

// ExecuteResponse is the response of a template execution request.
type ExecuteResponse struct {
	TaskID     string `json:"taskId"`
	Status     string `json:"status"`
	TemplateID string `json:"templateId"`
	TotalSteps int    `json:"totalSteps"`
}

// StatusResponse is the API status.
type StatusResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ActiveTasks int    `json:"activeTasks"`
}

// Task is the API representation of a task.
type Task struct {
	ID            string         `json:"id"`
	TemplateID    string         `json:"templateId"`
	TemplateTitle string         `json:"templateTitle"`
	ProfilePath   string         `json:"profilePath"`
	ProfileName   string         `json:"profileName,omitempty"`
	Browser       string         `json:"browser"`
	Status        string         `json:"status"`
	CurrentStep   int            `json:"currentStep"`
	TotalSteps    int            `json:"totalSteps"`
	Progress      int            `json:"progress"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       *time.Time     `json:"endTime"`
	Variables     map[string]any `json:"variables,omitempty"`
	Logs          []LogEntry     `json:"logs"`
	SessionID     string         `json:"sessionId,omitempty"`
}

// LogEntry is the API representation of a task log entry.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Step      int       `json:"step"`
	Message   string    `json:"message"`
}

// TaskEvent is the message sent by the watch stream.
type TaskEvent struct {
	Type string `json:"type"`
	Task Task   `json:"task"`
}

func mapTask(t model.Task) Task {
	logs := make([]LogEntry, 0, len(t.Logs))
	for _, l := range t.Logs {
		logs = append(logs, LogEntry{
			Timestamp: l.Timestamp,
			Level:     string(l.Level),
			Step:      l.Step,
			Message:   l.Message,
		})
	}

	return Task{
		ID:            t.ID,
		TemplateID:    t.TemplateID,
		TemplateTitle: t.TemplateTitle,
		ProfilePath:   t.ProfilePath,
		ProfileName:   t.ProfileName,
		Browser:       t.Browser,
		Status:        string(t.Status),
		CurrentStep:   t.CurrentStep,
		TotalSteps:    t.TotalSteps,
		Progress:      t.Progress,
		StartTime:     t.StartTime,
		EndTime:       t.EndTime,
		Variables:     t.Variables,
		Logs:          logs,
		SessionID:     t.SessionID,
	}
}

func mapTasks(ts []model.Task) []Task {
	res := make([]Task, 0, len(ts))
	for _, t := range ts {
		res = append(res, mapTask(t))
	}
	return res
}
