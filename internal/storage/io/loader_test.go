package io_test

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/rpa/internal/model"
	storageio "github.com/slok/rpa/internal/storage/io"
)

const searchTemplateJSON = `{
  "id": "google-search",
  "version": "1.0.0",
  "metadata": {"title": "Google search", "platform": "Other", "tags": ["search"]},
  "steps": [
    {"order": 1, "action": "navigate", "description": "Open Google", "url": "https://www.google.com", "waitForSelector": "textarea[name=q]"},
    {"order": 2, "action": "type", "description": "Type query", "selector": "textarea[name=q]", "fallbackSelectors": ["input[name=q]"], "value": "{{query}}", "humanDelay": [100, 200]},
    {"order": 3, "action": "scroll", "description": "Scroll results", "iterations": 2, "timeout": 5000},
    {"order": 4, "action": "wait", "description": "Wait", "waitMs": 1500}
  ],
  "variables": [
    {"name": "query", "type": "string", "required": true, "description": "Search query"},
    {"name": "pages", "type": "number", "default": 2}
  ]
}`

const searchTemplateYAML = `
id: google-search
version: 1.0.0
metadata:
  title: Google search
  platform: Other
  tags: [search]
steps:
  - action: navigate
    description: Open Google
    url: https://www.google.com
    waitForSelector: textarea[name=q]
  - action: type
    description: Type query
    selector: textarea[name=q]
    fallbackSelectors: ["input[name=q]"]
    value: "{{query}}"
    humanDelay: [100, 200]
  - action: scroll
    description: Scroll results
    iterations: 2
    timeout: 5000
  - action: wait
    description: Wait
    waitMs: 1500
variables:
  - name: query
    type: string
    required: true
    description: Search query
  - name: pages
    type: number
    default: 2
`

func expSearchTemplate() model.Template {
	return model.Template{
		ID:      "google-search",
		Version: "1.0.0",
		Metadata: model.TemplateMetadata{
			Title:    "Google search",
			Platform: "Other",
			Tags:     []string{"search"},
		},
		Steps: []model.Step{
			{Order: 1, Action: model.StepActionNavigate, Description: "Open Google", URL: "https://www.google.com", WaitForSelector: "textarea[name=q]"},
			{
				Order:             2,
				Action:            model.StepActionType,
				Description:       "Type query",
				Selector:          "textarea[name=q]",
				FallbackSelectors: []string{"input[name=q]"},
				Value:             "{{query}}",
				HumanDelay:        &model.DelayRange{Min: 100 * time.Millisecond, Max: 200 * time.Millisecond},
			},
			{Order: 3, Action: model.StepActionScroll, Description: "Scroll results", Iterations: 2, Timeout: 5 * time.Second},
			{Order: 4, Action: model.StepActionWait, Description: "Wait", Wait: 1500 * time.Millisecond},
		},
		Variables: []model.Variable{
			{Name: "query", Type: model.VariableTypeString, Required: true, Description: "Search query"},
			{Name: "pages", Type: model.VariableTypeNumber, Default: float64(2)},
		},
	}
}

func TestTemplateFileRepositoryGetTemplate(t *testing.T) {
	tests := map[string]struct {
		fs          fstest.MapFS
		path        string
		expTemplate *model.Template
		expErr      bool
		errMsg      string
	}{
		"A JSON template should load successfully": {
			fs:   fstest.MapFS{"t.json": &fstest.MapFile{Data: []byte(searchTemplateJSON)}},
			path: "t.json",
			expTemplate: func() *model.Template {
				t := expSearchTemplate()
				return &t
			}(),
		},

		"A YAML template should load successfully and get step orders": {
			fs:   fstest.MapFS{"t.yaml": &fstest.MapFile{Data: []byte(searchTemplateYAML)}},
			path: "t.yaml",
			expTemplate: func() *model.Template {
				t := expSearchTemplate()
				return &t
			}(),
		},

		"Missing variable types should default to string": {
			fs: fstest.MapFS{"t.yaml": &fstest.MapFile{Data: []byte(`
id: t1
steps: [{action: wait}]
variables: [{name: a}]
`)}},
			path: "t.yaml",
			expTemplate: &model.Template{
				ID:        "t1",
				Steps:     []model.Step{{Order: 1, Action: model.StepActionWait}},
				Variables: []model.Variable{{Name: "a", Type: model.VariableTypeString}},
			},
		},

		"Missing file should return error": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.json",
			expErr: true,
			errMsg: "not found",
		},

		"Invalid documents should return error": {
			fs:     fstest.MapFS{"t.yaml": &fstest.MapFile{Data: []byte(`invalid: yaml: content: {}`)}},
			path:   "t.yaml",
			expErr: true,
			errMsg: "parsing template",
		},

		"Missing id should return error": {
			fs:     fstest.MapFS{"t.yaml": &fstest.MapFile{Data: []byte(`steps: [{action: wait}]`)}},
			path:   "t.yaml",
			expErr: true,
			errMsg: "id is required",
		},

		"Bad human delay should return error": {
			fs:     fstest.MapFS{"t.yaml": &fstest.MapFile{Data: []byte(`{"id": "t", "steps": [{"action": "wait", "humanDelay": [1]}]}`)}},
			path:   "t.yaml",
			expErr: true,
			errMsg: "humanDelay",
		},

		"Templates without steps should return error": {
			fs:     fstest.MapFS{"t.yaml": &fstest.MapFile{Data: []byte(`{"id": "t", "steps": []}`)}},
			path:   "t.yaml",
			expErr: true,
			errMsg: "no steps",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storageio.NewTemplateFileRepository(test.fs)
			got, err := repo.GetTemplate(context.Background(), test.path)

			if test.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expTemplate, got)
		})
	}
}

func TestTemplateFileRepositoryContextCancellation(t *testing.T) {
	fs := fstest.MapFS{"t.json": &fstest.MapFile{Data: []byte(searchTemplateJSON)}}

	repo := storageio.NewTemplateFileRepository(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetTemplate(ctx, "t.json")
	assert.Equal(t, context.Canceled, err)
}

func TestEncodeDecodeTemplate(t *testing.T) {
	require := require.New(t)

	exp := expSearchTemplate()
	data, err := storageio.EncodeTemplate(exp)
	require.NoError(err)

	got, err := storageio.DecodeTemplate(data)
	require.NoError(err)
	assert.Equal(t, exp, got)
}

func TestExampleTemplatesAreValid(t *testing.T) {
	req := require.New(t)

	examples := os.DirFS("../../../examples/templates")
	files, err := fs.Glob(examples, "*")
	req.NoError(err)
	req.NotEmpty(files)

	repo := storageio.NewTemplateFileRepository(examples)
	for _, f := range files {
		t.Run(f, func(t *testing.T) {
			tpl, err := repo.GetTemplate(context.Background(), f)
			require.NoError(t, err)
			assert.NoError(t, tpl.Validate())
		})
	}
}
