package printer

import "github.com/slok/rpa/internal/model"

// Printer knows how to print tasks and templates in different formats.
type Printer interface {
	PrintTask(task model.Task) error
	PrintLog(entry model.LogEntry) error
	PrintTemplateList(templates []model.Template) error
	PrintTemplate(template model.Template) error
	PrintMessage(msg string) error
}
