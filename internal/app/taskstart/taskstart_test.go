package taskstart_test

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/rpa/internal/app/taskstart"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	storageio "github.com/slok/rpa/internal/storage/io"
	"github.com/slok/rpa/internal/storage/storagemock"
	"github.com/slok/rpa/internal/task"
)

type starterMock struct{ mock.Mock }

func (m *starterMock) StartTask(ctx context.Context, req task.StartRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

const templateFile = `
id: search-shoes
steps:
  - action: navigate
    url: https://shop.example.com
`

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config taskstart.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: taskstart.ServiceConfig{Starter: &starterMock{}},
		},
		"missing starter should fail": {
			config: taskstart.ServiceConfig{Catalog: &storagemock.MockTemplateRepository{}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := taskstart.NewService(test.config)

			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestService_Run(t *testing.T) {
	inline := model.Template{ID: "inline", Steps: []model.Step{{Action: model.StepActionWait}}}
	fromFile := model.Template{ID: "search-shoes", Steps: []model.Step{{Order: 1, Action: model.StepActionNavigate, URL: "https://shop.example.com"}}}

	tests := map[string]struct {
		mock      func(s *starterMock, c *storagemock.MockTemplateRepository)
		req       taskstart.Request
		expResult *taskstart.Response
		expErr    error
	}{
		"an inline template should be started": {
			mock: func(s *starterMock, c *storagemock.MockTemplateRepository) {
				s.On("StartTask", mock.Anything, task.StartRequest{
					Template:    inline,
					ProfilePath: "/p1",
					Browser:     "brave",
					Variables:   map[string]any{"q": "x"},
				}).Once().Return("task-1", nil)
			},
			req: taskstart.Request{
				Template:    &inline,
				TemplateID:  "ignored",
				ProfilePath: "/p1",
				Browser:     "brave",
				Variables:   map[string]any{"q": "x"},
			},
			expResult: &taskstart.Response{TaskID: "task-1", Template: inline},
		},
		"a template file should be loaded and started": {
			mock: func(s *starterMock, c *storagemock.MockTemplateRepository) {
				s.On("StartTask", mock.Anything, task.StartRequest{Template: fromFile, ProfilePath: "/p1"}).Once().Return("task-2", nil)
			},
			req:       taskstart.Request{TemplatePath: "templates/search.yaml", ProfilePath: "/p1"},
			expResult: &taskstart.Response{TaskID: "task-2", Template: fromFile},
		},
		"a catalog template should be started": {
			mock: func(s *starterMock, c *storagemock.MockTemplateRepository) {
				c.On("GetTemplate", mock.Anything, "inline").Once().Return(&inline, nil)
				s.On("StartTask", mock.Anything, task.StartRequest{Template: inline, ProfilePath: "/p1"}).Once().Return("task-3", nil)
			},
			req:       taskstart.Request{TemplateID: "inline", ProfilePath: "/p1"},
			expResult: &taskstart.Response{TaskID: "task-3", Template: inline},
		},
		"a missing catalog template should fail": {
			mock: func(s *starterMock, c *storagemock.MockTemplateRepository) {
				c.On("GetTemplate", mock.Anything, "missing").Once().Return(nil, fmt.Errorf("template missing: %w", model.ErrNotFound))
			},
			req:    taskstart.Request{TemplateID: "missing", ProfilePath: "/p1"},
			expErr: model.ErrNotFound,
		},
		"a missing template file should fail": {
			mock:   func(s *starterMock, c *storagemock.MockTemplateRepository) {},
			req:    taskstart.Request{TemplatePath: "templates/missing.yaml", ProfilePath: "/p1"},
			expErr: model.ErrNotFound,
		},
		"a request without template should fail": {
			mock:   func(s *starterMock, c *storagemock.MockTemplateRepository) {},
			req:    taskstart.Request{ProfilePath: "/p1"},
			expErr: model.ErrNotValid,
		},
		"a start error should propagate": {
			mock: func(s *starterMock, c *storagemock.MockTemplateRepository) {
				s.On("StartTask", mock.Anything, mock.Anything).Once().Return("", fmt.Errorf("invalid: %w", model.ErrNotValid))
			},
			req:    taskstart.Request{Template: &inline},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			// Setup
			s := &starterMock{}
			c := &storagemock.MockTemplateRepository{}
			test.mock(s, c)

			svc, err := taskstart.NewService(taskstart.ServiceConfig{
				Starter: s,
				Catalog: c,
				Files: storageio.NewTemplateFileRepository(fstest.MapFS{
					"templates/search.yaml": &fstest.MapFile{Data: []byte(templateFile)},
				}),
				Logger: log.Noop,
			})
			require.NoError(err)

			// Execute
			result, err := svc.Run(context.Background(), test.req)

			// Verify
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else if assert.NoError(err) {
				assert.Equal(test.expResult, result)
			}

			s.AssertExpectations(t)
			c.AssertExpectations(t)
		})
	}
}
