package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/rpa/internal/model"
)

// JSONPrinter prints task and template information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type taskOutput struct {
	ID            string         `json:"id"`
	TemplateID    string         `json:"template_id"`
	TemplateTitle string         `json:"template_title"`
	ProfilePath   string         `json:"profile_path"`
	ProfileName   string         `json:"profile_name,omitempty"`
	Browser       string         `json:"browser"`
	Status        string         `json:"status"`
	CurrentStep   int            `json:"current_step"`
	TotalSteps    int            `json:"total_steps"`
	Progress      int            `json:"progress"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       *time.Time     `json:"end_time"`
	Variables     map[string]any `json:"variables,omitempty"`
	Logs          []logOutput    `json:"logs"`
}

type logOutput struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Step      int       `json:"step"`
	Message   string    `json:"message"`
}

type templateItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Platform string `json:"platform,omitempty"`
	Version  string `json:"version,omitempty"`
	Steps    int    `json:"steps"`
}

type templateOutput struct {
	templateItem
	Description string           `json:"description,omitempty"`
	Author      string           `json:"author,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Variables   []variableOutput `json:"variables,omitempty"`
}

type variableOutput struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// PrintTask prints the task with its logs.
func (j *JSONPrinter) PrintTask(task model.Task) error {
	logs := make([]logOutput, 0, len(task.Logs))
	for _, l := range task.Logs {
		logs = append(logs, mapLog(l))
	}

	return j.encode(taskOutput{
		ID:            task.ID,
		TemplateID:    task.TemplateID,
		TemplateTitle: task.TemplateTitle,
		ProfilePath:   task.ProfilePath,
		ProfileName:   task.ProfileName,
		Browser:       task.Browser,
		Status:        string(task.Status),
		CurrentStep:   task.CurrentStep,
		TotalSteps:    task.TotalSteps,
		Progress:      task.Progress,
		StartTime:     task.StartTime,
		EndTime:       task.EndTime,
		Variables:     task.Variables,
		Logs:          logs,
	})
}

// PrintLog prints a task log line as a single line JSON object.
func (j *JSONPrinter) PrintLog(entry model.LogEntry) error {
	return json.NewEncoder(j.writer).Encode(mapLog(entry))
}

// PrintTemplateList prints templates in JSON format.
func (j *JSONPrinter) PrintTemplateList(templates []model.Template) error {
	items := make([]templateItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, mapTemplateItem(t))
	}

	return j.encode(items)
}

// PrintTemplate prints the template details in JSON format.
func (j *JSONPrinter) PrintTemplate(t model.Template) error {
	out := templateOutput{
		templateItem: mapTemplateItem(t),
		Description:  t.Metadata.Description,
		Author:       t.Metadata.Author,
		Tags:         t.Metadata.Tags,
	}
	for _, v := range t.Variables {
		out.Variables = append(out.Variables, variableOutput{
			Name:     v.Name,
			Type:     string(v.Type),
			Required: v.Required,
			Default:  v.Default,
		})
	}

	return j.encode(out)
}

// PrintMessage prints a message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(map[string]string{"message": msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mapLog(l model.LogEntry) logOutput {
	return logOutput{
		Timestamp: l.Timestamp,
		Level:     string(l.Level),
		Step:      l.Step,
		Message:   l.Message,
	}
}

func mapTemplateItem(t model.Template) templateItem {
	return templateItem{
		ID:       t.ID,
		Title:    t.Title(),
		Platform: t.Metadata.Platform,
		Version:  t.Version,
		Steps:    len(t.Steps),
	}
}
