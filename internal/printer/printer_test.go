package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/printer"
)

func taskFixture() model.Task {
	start := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	end := start.Add(12*time.Second + 400*time.Millisecond)
	return model.Task{
		ID:            "01HX0000000000000000000000",
		TemplateID:    "search-shoes",
		TemplateTitle: "Search shoes",
		ProfilePath:   "/profiles/p1",
		ProfileName:   "p1",
		Browser:       "chrome",
		Status:        model.TaskStatusCompleted,
		CurrentStep:   3,
		TotalSteps:    3,
		Progress:      100,
		StartTime:     start,
		EndTime:       &end,
		Logs: []model.LogEntry{
			{Timestamp: start, Level: model.LogLevelInfo, Message: "Launching chrome with CDP..."},
			{Timestamp: end, Level: model.LogLevelSuccess, Step: 3, Message: "Step 3 completed"},
		},
	}
}

func templateFixture() model.Template {
	return model.Template{
		ID:       "search-shoes",
		Version:  "1.0.0",
		Metadata: model.TemplateMetadata{Title: "Search shoes", Platform: "shopee"},
		Steps: []model.Step{
			{Action: model.StepActionNavigate, Description: "Open shop"},
			{Action: model.StepActionType, Description: "Search"},
		},
		Variables: []model.Variable{{Name: "keyword", Type: model.VariableTypeString, Required: true}},
	}
}

func TestTablePrinterPrintTask(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintTask(taskFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Template:   Search shoes (search-shoes)")
	assert.Contains(t, out, "Profile:    p1 (/profiles/p1)")
	assert.Contains(t, out, "Steps:      3/3 (100%)")
	assert.Contains(t, out, "Duration:   12.4s")
}

func TestTablePrinterPrintLog(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	for _, l := range taskFixture().Logs {
		require.NoError(t, p.PrintLog(l))
	}

	assert.Equal(t, "10:00:00  INFO     [-] Launching chrome with CDP...\n10:00:12  SUCCESS  [3] Step 3 completed\n", buf.String())
}

func TestTablePrinterPrintTemplateList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintTemplateList([]model.Template{templateFixture(), {ID: "bare", Steps: []model.Step{{Action: model.StepActionWait}}}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "TITLE", "PLATFORM", "VERSION", "STEPS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"search-shoes", "Search", "shoes", "shopee", "1.0.0", "2"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"bare", "bare", "-", "-", "1"}, strings.Fields(lines[2]))
}

func TestTablePrinterPrintTemplate(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintTemplate(templateFixture()))

	out := buf.String()
	assert.Contains(t, out, "  keyword (string, required)")
	assert.Contains(t, out, "  2. type Search")
}

func TestJSONPrinterPrintTask(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintTask(taskFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"template_id": "search-shoes"`)
	assert.Contains(t, out, `"status": "completed"`)
	assert.Contains(t, out, `"end_time": "2026-01-30T10:00:12.4Z"`)
	assert.Contains(t, out, `"message": "Step 3 completed"`)
}

func TestJSONPrinterPrintTemplateList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintTemplateList([]model.Template{templateFixture()}))

	exp := `[
  {
    "id": "search-shoes",
    "title": "Search shoes",
    "platform": "shopee",
    "version": "1.0.0",
    "steps": 2
  }
]
`
	assert.Equal(t, exp, buf.String())
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
