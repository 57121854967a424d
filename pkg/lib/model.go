package lib

import (
	"errors"
	"time"

	"github.com/slok/rpa/internal/model"
)

var (
	// ErrNotFound is returned when a task or template does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a template with the same ID is already in the catalog.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned on invalid input, like a template without steps or a
	// missing required variable.
	ErrNotValid = errors.New("not valid")
	// ErrTaskFinished is returned when cancelling a task that already finished.
	// It also matches [ErrNotValid].
	ErrTaskFinished = errors.New("task already finished")
)

// GatewayType identifies the browser session gateway implementation.
type GatewayType string

const (
	// GatewayCDP launches real browsers and drives them with the Chrome DevTools Protocol.
	GatewayCDP GatewayType = "cdp"

	// GatewayFake uses an in-process simulated page where every selector exists.
	// Use this for testing templates without a browser.
	GatewayFake GatewayType = "fake"
)

// TaskStatus represents the lifecycle state of a task.
//
// The lifecycle is:
//
//	pending -> running -> completed | failed | cancelled
//
// A task can be cancelled while pending or running. Terminal states never change.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal returns true when the task has finished.
func (s TaskStatus) IsTerminal() bool { return model.TaskStatus(s).IsTerminal() }

// LogLevel is the level of a task log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarn    LogLevel = "warn"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// LogEntry is a task log line.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	// Step is the 1-based step number, 0 for task level entries.
	Step    int
	Message string
}

// Task is a snapshot of a template execution on a browser profile.
//
// Use [Client.GetTask] to get the latest state.
type Task struct {
	ID            string
	TemplateID    string
	TemplateTitle string
	ProfilePath   string
	ProfileName   string
	Browser       string
	Status        TaskStatus
	// CurrentStep is the 1-based step being executed, 0 before the first step.
	CurrentStep int
	TotalSteps  int
	// Progress is the percentage of steps started before the current one, 100 once completed.
	Progress  int
	StartTime time.Time
	// EndTime is set once the task reaches a terminal status.
	EndTime   *time.Time
	Variables map[string]any
	Logs      []LogEntry
	// SessionID is the browser session, empty until the browser is launched.
	SessionID string
}

// Template is the summary of a catalog template.
type Template struct {
	ID          string
	Version     string
	Title       string
	Description string
	Platform    string
	Author      string
	Tags        []string
	Steps       int
	Variables   []Variable
}

// Variable is a template variable declaration.
type Variable struct {
	Name string
	// Type is string, number or boolean.
	Type        string
	Required    bool
	Default     any
	Description string
}

// --- Conversion helpers ---

func fromInternalTask(t model.Task) Task {
	task := Task{
		ID:            t.ID,
		TemplateID:    t.TemplateID,
		TemplateTitle: t.TemplateTitle,
		ProfilePath:   t.ProfilePath,
		ProfileName:   t.ProfileName,
		Browser:       t.Browser,
		Status:        TaskStatus(t.Status),
		CurrentStep:   t.CurrentStep,
		TotalSteps:    t.TotalSteps,
		Progress:      t.Progress,
		StartTime:     t.StartTime,
		EndTime:       t.EndTime,
		Variables:     t.Variables,
		SessionID:     t.SessionID,
	}

	task.Logs = make([]LogEntry, 0, len(t.Logs))
	for _, l := range t.Logs {
		task.Logs = append(task.Logs, fromInternalLogEntry(l))
	}

	return task
}

func fromInternalTaskList(ts []model.Task) []Task {
	result := make([]Task, 0, len(ts))
	for _, t := range ts {
		result = append(result, fromInternalTask(t))
	}
	return result
}

func fromInternalLogEntry(l model.LogEntry) LogEntry {
	return LogEntry{
		Timestamp: l.Timestamp,
		Level:     LogLevel(l.Level),
		Step:      l.Step,
		Message:   l.Message,
	}
}

func fromInternalTemplate(t model.Template) Template {
	tpl := Template{
		ID:          t.ID,
		Version:     t.Version,
		Title:       t.Title(),
		Description: t.Metadata.Description,
		Platform:    t.Metadata.Platform,
		Author:      t.Metadata.Author,
		Tags:        t.Metadata.Tags,
		Steps:       len(t.Steps),
	}

	for _, v := range t.Variables {
		tpl.Variables = append(tpl.Variables, Variable{
			Name:        v.Name,
			Type:        string(v.Type),
			Required:    v.Required,
			Default:     v.Default,
			Description: v.Description,
		})
	}

	return tpl
}

func fromInternalTemplateList(ts []model.Template) []Template {
	result := make([]Template, 0, len(ts))
	for _, t := range ts {
		result = append(result, fromInternalTemplate(t))
	}
	return result
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isInternalError(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case isInternalError(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case isInternalError(err, model.ErrTaskFinished):
		return joinErrors(err, ErrTaskFinished, ErrNotValid)
	case isInternalError(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

// isInternalError follows the wrap chain, joined errors included.
func isInternalError(err, target error) bool {
	if err == target {
		return true
	}

	switch u := err.(type) {
	case interface{ Unwrap() error }:
		if next := u.Unwrap(); next != nil {
			return isInternalError(next, target)
		}
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if isInternalError(e, target) {
				return true
			}
		}
	}

	return false
}

func joinErrors(original error, sentinels ...error) error {
	return &mappedError{original: original, sentinels: sentinels}
}

type mappedError struct {
	original  error
	sentinels []error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	for _, s := range e.sentinels {
		if target == s {
			return true
		}
	}
	return false
}

func (e *mappedError) Unwrap() error { return e.original }
