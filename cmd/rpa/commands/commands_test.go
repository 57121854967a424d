package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/rpa/internal/log"
)

const testTemplate = `
id: search-demo
metadata:
  title: Search demo
  platform: web
variables:
  - name: keyword
    type: string
    required: true
steps:
  - action: wait
    waitMs: 10
    humanDelay: [0, 0]
  - action: click
    description: Search {{keyword}}
    selector: "#go"
    timeout: 100
    humanDelay: [0, 0]
`

func newTestRoot(t *testing.T) (*RootCommand, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	return &RootCommand{
		DBPath: filepath.Join(t.TempDir(), "rpa.db"),
		Stdout: &out,
		Stderr: &out,
		Logger: log.Noop,
	}, &out
}

func writeTemplate(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testTemplate), 0o644))
	return path
}

func TestRunCommand(t *testing.T) {
	tests := map[string]struct {
		template     func(t *testing.T) string
		varSpecs     []string
		expErr       bool
		expContained []string
	}{
		"A template file should be executed and its logs streamed.": {
			template: writeTemplate,
			varSpecs: []string{"keyword=shoes"},
			expContained: []string{
				"Step 1/2:",
				"Step 2/2: Search {{keyword}}",
				"[2] Step 2 completed",
				"Status:     completed",
				"Template:   Search demo (search-demo)",
			},
		},
		"A missing required variable should fail before starting.": {
			template: writeTemplate,
			expErr:   true,
		},
		"An unknown catalog template should fail.": {
			template: func(t *testing.T) string { return "does-not-exist" },
			expErr:   true,
		},
		"An invalid variable spec should fail.": {
			template: writeTemplate,
			varSpecs: []string{"1bad=x"},
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			root, out := newTestRoot(t)
			c := RunCommand{
				rootCmd:     root,
				gateway:     &gatewayFlags{gatewayType: gatewayTypeFake},
				template:    test.template(t),
				profilePath: t.TempDir(),
				browser:     "chrome",
				varSpecs:    test.varSpecs,
				format:      formatTable,
			}

			err := c.Run(context.Background())

			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)

			for _, exp := range test.expContained {
				assert.Contains(out.String(), exp)
			}
		})
	}
}

func TestTemplateCommands(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	root, out := newTestRoot(t)
	path := writeTemplate(t)

	// Import.
	imp := TemplateImportCommand{rootCmd: root, path: path}
	require.NoError(imp.Run(ctx))
	assert.Contains(out.String(), "Imported template search-demo (2 steps)")

	// Importing again without replace should fail.
	require.Error(imp.Run(ctx))
	imp.replace = true
	require.NoError(imp.Run(ctx))

	// List.
	out.Reset()
	list := TemplateListCommand{rootCmd: root, format: formatTable}
	require.NoError(list.Run(ctx))
	assert.Contains(out.String(), "search-demo")
	assert.Contains(out.String(), "Search demo")

	// Show.
	out.Reset()
	show := TemplateShowCommand{rootCmd: root, id: "search-demo", format: formatJSON}
	require.NoError(show.Run(ctx))
	assert.Contains(out.String(), `"search-demo"`)

	// Run by catalog ID.
	out.Reset()
	run := RunCommand{
		rootCmd:     root,
		gateway:     &gatewayFlags{gatewayType: gatewayTypeFake},
		template:    "search-demo",
		profilePath: t.TempDir(),
		varSpecs:    []string{"keyword=boots"},
		format:      formatTable,
	}
	require.NoError(run.Run(ctx))
	assert.Contains(out.String(), "Status:     completed")

	// Remove.
	out.Reset()
	rm := TemplateRmCommand{rootCmd: root, id: "search-demo"}
	require.NoError(rm.Run(ctx))
	assert.Contains(out.String(), "Removed template search-demo")
	assert.Error(rm.Run(ctx))

	out.Reset()
	require.NoError(list.Run(ctx))
	assert.Empty(out.String())
}

func TestNewGatewayCDP(t *testing.T) {
	gw, err := newGateway(gatewayFlags{gatewayType: gatewayTypeCDP, execPath: "/usr/bin/chrome"}, log.Noop)
	require.NoError(t, err)
	assert.NotNil(t, gw)
}
