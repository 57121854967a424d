package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/rpa/internal/model"
)

func TestTemplateValidate(t *testing.T) {
	base := model.Template{
		ID:       "etsy-browse",
		Metadata: model.TemplateMetadata{Title: "Etsy browse"},
		Steps: []model.Step{
			{Action: model.StepActionNavigate, URL: "https://www.etsy.com"},
		},
		Variables: []model.Variable{
			{Name: "keyword", Type: model.VariableTypeString},
		},
	}

	tests := map[string]struct {
		template model.Template
		expErr   bool
	}{
		"valid template": {
			template: base,
		},
		"missing id": {
			template: func() model.Template {
				tpl := base
				tpl.ID = ""
				return tpl
			}(),
			expErr: true,
		},
		"no steps": {
			template: func() model.Template {
				tpl := base
				tpl.Steps = nil
				return tpl
			}(),
			expErr: true,
		},
		"step without action": {
			template: func() model.Template {
				tpl := base
				tpl.Steps = []model.Step{{Description: "nothing"}}
				return tpl
			}(),
			expErr: true,
		},
		"inverted human delay": {
			template: func() model.Template {
				tpl := base
				tpl.Steps = []model.Step{{
					Action:     model.StepActionWait,
					HumanDelay: &model.DelayRange{Min: 5 * time.Second, Max: time.Second},
				}}
				return tpl
			}(),
			expErr: true,
		},
		"unknown variable type": {
			template: func() model.Template {
				tpl := base
				tpl.Variables = []model.Variable{{Name: "x", Type: "date"}}
				return tpl
			}(),
			expErr: true,
		},
		"duplicated variable": {
			template: func() model.Template {
				tpl := base
				tpl.Variables = []model.Variable{
					{Name: "x", Type: model.VariableTypeString},
					{Name: "x", Type: model.VariableTypeNumber},
				}
				return tpl
			}(),
			expErr: true,
		},
		"unknown actions are valid": {
			template: func() model.Template {
				tpl := base
				tpl.Steps = []model.Step{{Action: "ai"}}
				return tpl
			}(),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			err := test.template.Validate()
			if test.expErr {
				assert.Error(err)
				assert.True(errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(err)
			}
		})
	}
}

func TestTemplateResolveVariables(t *testing.T) {
	tpl := model.Template{
		ID: "test",
		Variables: []model.Variable{
			{Name: "city", Type: model.VariableTypeString, Default: "Paris"},
			{Name: "count", Type: model.VariableTypeNumber, Default: 3.0},
			{Name: "like", Type: model.VariableTypeBoolean},
			{Name: "query", Type: model.VariableTypeString, Required: true},
		},
	}

	tests := map[string]struct {
		given  map[string]any
		expVar map[string]any
		expErr bool
	}{
		"Defaults should be used for missing values.": {
			given: map[string]any{"query": "lamps"},
			expVar: map[string]any{
				"city":  "Paris",
				"count": 3.0,
				"query": "lamps",
			},
		},
		"Caller values should win over defaults.": {
			given: map[string]any{"query": "lamps", "city": "Tokyo"},
			expVar: map[string]any{
				"city":  "Tokyo",
				"count": 3.0,
				"query": "lamps",
			},
		},
		"String values should be coerced to the declared type.": {
			given: map[string]any{"query": "lamps", "count": "7", "like": "true"},
			expVar: map[string]any{
				"city":  "Paris",
				"count": 7.0,
				"like":  true,
				"query": "lamps",
			},
		},
		"Undeclared values should be kept.": {
			given: map[string]any{"query": "lamps", "extra": "x"},
			expVar: map[string]any{
				"city":  "Paris",
				"count": 3.0,
				"query": "lamps",
				"extra": "x",
			},
		},
		"Missing required values should fail.": {
			given:  map[string]any{},
			expErr: true,
		},
		"Invalid numbers should fail.": {
			given:  map[string]any{"query": "lamps", "count": "many"},
			expErr: true,
		},
		"Invalid booleans should fail.": {
			given:  map[string]any{"query": "lamps", "like": "maybe"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			gotVars, err := tpl.ResolveVariables(test.given)
			if test.expErr {
				assert.Error(err)
				assert.True(errors.Is(err, model.ErrNotValid))
			} else if assert.NoError(err) {
				assert.Equal(test.expVar, gotVars)
			}
		})
	}
}

func TestStepDefaults(t *testing.T) {
	assert := assert.New(t)

	s := model.Step{}
	assert.Equal(10*time.Second, s.TimeoutOrDefault())
	assert.Equal(3*time.Second, s.WaitOrDefault())
	assert.Equal(model.DelayRange{Min: 2 * time.Second, Max: 5 * time.Second}, s.HumanDelayOrDefault())
	assert.Equal(3, s.IterationsOrDefault())
	assert.Empty(s.Selectors())

	s = model.Step{
		Timeout:           time.Second,
		Wait:              500 * time.Millisecond,
		HumanDelay:        &model.DelayRange{Min: 0, Max: 0},
		Iterations:        5,
		Selector:          "#a",
		FallbackSelectors: []string{"", ".b", ".c"},
	}
	assert.Equal(time.Second, s.TimeoutOrDefault())
	assert.Equal(500*time.Millisecond, s.WaitOrDefault())
	assert.Equal(model.DelayRange{}, s.HumanDelayOrDefault())
	assert.Equal(5, s.IterationsOrDefault())
	assert.Equal([]string{"#a", ".b", ".c"}, s.Selectors())
}

func TestTemplateCopy(t *testing.T) {
	assert := assert.New(t)

	tpl := model.Template{
		ID:        "t1",
		Metadata:  model.TemplateMetadata{Tags: []string{"shop"}},
		Variables: []model.Variable{{Name: "keyword"}},
		Steps: []model.Step{{
			Action:            model.StepActionClick,
			FallbackSelectors: []string{".buy"},
			HumanDelay:        &model.DelayRange{Min: time.Second, Max: 2 * time.Second},
		}},
	}

	c := tpl.Copy()
	assert.Equal(tpl, c)

	c.Metadata.Tags[0] = "x"
	c.Variables[0].Name = "x"
	c.Steps[0].Action = model.StepActionWait
	c.Steps[0].FallbackSelectors[0] = "x"
	c.Steps[0].HumanDelay.Min = 0

	assert.Equal("shop", tpl.Metadata.Tags[0])
	assert.Equal("keyword", tpl.Variables[0].Name)
	assert.Equal(model.StepActionClick, tpl.Steps[0].Action)
	assert.Equal(".buy", tpl.Steps[0].FallbackSelectors[0])
	assert.Equal(time.Second, tpl.Steps[0].HumanDelay.Min)
}
