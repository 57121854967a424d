package model

import (
	"time"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusPaused is part of the lifecycle but never set by the engine.
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal returns true when the status is completed, failed or cancelled.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// IsActive returns true when the status is running or paused.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusRunning || s == TaskStatusPaused
}

// LogLevel is the level of a task log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarn    LogLevel = "warn"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// LogEntry is a single task log line. Step is 0 for task level entries.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Step      int
	Message   string
}

// Task is one execution attempt of a template against a browser profile.
type Task struct {
	ID            string
	TemplateID    string
	TemplateTitle string
	ProfilePath   string
	ProfileName   string
	Browser       string

	Status      TaskStatus
	CurrentStep int
	TotalSteps  int
	Progress    int

	StartTime time.Time
	EndTime   *time.Time

	Variables map[string]any
	Logs      []LogEntry
	// SessionID is empty until the gateway returns a session.
	SessionID string
}

// Copy returns a deep copy of the task so it can be shared with readers.
func (t Task) Copy() Task {
	c := t

	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}

	if t.Variables != nil {
		c.Variables = make(map[string]any, len(t.Variables))
		for k, v := range t.Variables {
			c.Variables[k] = v
		}
	}

	if t.Logs != nil {
		c.Logs = make([]LogEntry, len(t.Logs))
		copy(c.Logs, t.Logs)
	}

	return c
}

// AppendLog appends a log entry, an entry older than the last one is moved
// forward to the last timestamp.
func (t *Task) AppendLog(entry LogEntry) {
	if n := len(t.Logs); n > 0 && entry.Timestamp.Before(t.Logs[n-1].Timestamp) {
		entry.Timestamp = t.Logs[n-1].Timestamp
	}
	t.Logs = append(t.Logs, entry)
}

// TaskEventType is the kind of change a task event notifies.
type TaskEventType string

const (
	TaskEventCreated TaskEventType = "created"
	TaskEventUpdated TaskEventType = "updated"
	TaskEventRemoved TaskEventType = "removed"
)

// TaskEvent notifies a task store change with the task snapshot after the change.
type TaskEvent struct {
	Type TaskEventType
	Task Task
}
