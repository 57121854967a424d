package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/rpa/internal/model"
)

// TablePrinter prints task and template information for humans.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTask prints the task summary.
func (t *TablePrinter) PrintTask(task model.Task) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", task.ID)
	fmt.Fprintf(t.writer, "Template:   %s (%s)\n", task.TemplateTitle, task.TemplateID)
	fmt.Fprintf(t.writer, "Profile:    %s\n", profileName(task))
	fmt.Fprintf(t.writer, "Browser:    %s\n", task.Browser)
	fmt.Fprintf(t.writer, "Status:     %s\n", task.Status)
	fmt.Fprintf(t.writer, "Steps:      %d/%d (%d%%)\n", task.CurrentStep, task.TotalSteps, task.Progress)
	fmt.Fprintf(t.writer, "Started:    %s, %s\n", FormatTimestamp(task.StartTime), TimeAgo(task.StartTime))

	if task.EndTime != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*task.EndTime))
		fmt.Fprintf(t.writer, "Duration:   %s\n", FormatDuration(task.EndTime.Sub(task.StartTime)))
	}

	return nil
}

func profileName(task model.Task) string {
	if task.ProfileName == "" {
		return task.ProfilePath
	}
	return fmt.Sprintf("%s (%s)", task.ProfileName, task.ProfilePath)
}

// PrintLog prints a task log line.
func (t *TablePrinter) PrintLog(entry model.LogEntry) error {
	step := "-"
	if entry.Step > 0 {
		step = fmt.Sprintf("%d", entry.Step)
	}

	fmt.Fprintf(t.writer, "%s  %-7s  [%s] %s\n", entry.Timestamp.UTC().Format("15:04:05"), strings.ToUpper(string(entry.Level)), step, entry.Message)
	return nil
}

// PrintTemplateList prints templates in a table format.
func (t *TablePrinter) PrintTemplateList(templates []model.Template) error {
	if len(templates) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tTITLE\tPLATFORM\tVERSION\tSTEPS")

	// Print rows.
	for _, tpl := range templates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", tpl.ID, tpl.Title(), orDash(tpl.Metadata.Platform), orDash(tpl.Version), len(tpl.Steps))
	}

	return nil
}

// PrintTemplate prints the template details.
func (t *TablePrinter) PrintTemplate(tpl model.Template) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", tpl.ID)
	fmt.Fprintf(t.writer, "Title:      %s\n", tpl.Title())
	fmt.Fprintf(t.writer, "Platform:   %s\n", orDash(tpl.Metadata.Platform))
	fmt.Fprintf(t.writer, "Version:    %s\n", orDash(tpl.Version))

	if len(tpl.Variables) > 0 {
		fmt.Fprintf(t.writer, "Variables:\n")
		for _, v := range tpl.Variables {
			required := ""
			if v.Required {
				required = ", required"
			}
			fmt.Fprintf(t.writer, "  %s (%s%s)\n", v.Name, v.Type, required)
		}
	}

	fmt.Fprintf(t.writer, "Steps:\n")
	for i, s := range tpl.Steps {
		fmt.Fprintf(t.writer, "  %d. %s %s\n", i+1, s.Action, s.Description)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
