package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultStepTimeout is the selector wait timeout used when a step doesn't set one.
	DefaultStepTimeout = 10 * time.Second
	// DefaultStepWait is the wait used by wait steps without an explicit duration.
	DefaultStepWait = 3 * time.Second
	// DefaultScrollIterations is the number of scrolls of a scroll step without iterations.
	DefaultScrollIterations = 3
)

// DefaultHumanDelay is the pacing range applied after a step that doesn't set one.
var DefaultHumanDelay = DelayRange{Min: 2 * time.Second, Max: 5 * time.Second}

// StepAction is the kind of interaction a step performs.
type StepAction string

const (
	StepActionNavigate StepAction = "navigate"
	StepActionClick    StepAction = "click"
	StepActionType     StepAction = "type"
	StepActionScroll   StepAction = "scroll"
	StepActionWait     StepAction = "wait"
	StepActionExtract  StepAction = "extract"
	StepActionLoop     StepAction = "loop"
)

// VariableType is the declared type of a template variable.
type VariableType string

const (
	VariableTypeString  VariableType = "string"
	VariableTypeNumber  VariableType = "number"
	VariableTypeBoolean VariableType = "boolean"
)

// Template is an immutable automation description: ordered steps plus the
// variables those steps can reference with `{{name}}` tokens.
type Template struct {
	ID        string
	Version   string
	Metadata  TemplateMetadata
	Steps     []Step
	Variables []Variable
}

// TemplateMetadata is the descriptive information of a template.
type TemplateMetadata struct {
	Title       string
	Description string
	Platform    string
	Author      string
	Tags        []string
}

// Variable is a variable declaration of a template.
type Variable struct {
	Name        string
	Type        VariableType
	Required    bool
	Default     any
	Description string
}

// DelayRange is a [Min, Max] duration range.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Step is a single declarative automation step.
type Step struct {
	Order             int
	Action            StepAction
	Description       string
	Selector          string
	FallbackSelectors []string
	URL               string
	Value             string
	// JSExpression is used verbatim when present and takes precedence over
	// selector based handling.
	JSExpression    string
	WaitForSelector string
	Wait            time.Duration
	Timeout         time.Duration
	HumanDelay      *DelayRange
	Iterations      int
}

// TimeoutOrDefault returns the selector wait timeout of the step.
func (s Step) TimeoutOrDefault() time.Duration {
	if s.Timeout <= 0 {
		return DefaultStepTimeout
	}
	return s.Timeout
}

// WaitOrDefault returns the wait duration of the step.
func (s Step) WaitOrDefault() time.Duration {
	if s.Wait <= 0 {
		return DefaultStepWait
	}
	return s.Wait
}

// HumanDelayOrDefault returns the pacing range of the step.
func (s Step) HumanDelayOrDefault() DelayRange {
	if s.HumanDelay == nil {
		return DefaultHumanDelay
	}
	return *s.HumanDelay
}

// IterationsOrDefault returns the number of iterations of the step.
func (s Step) IterationsOrDefault() int {
	if s.Iterations <= 0 {
		return DefaultScrollIterations
	}
	return s.Iterations
}

// Selectors returns the primary selector followed by the fallbacks, skipping empty ones.
func (s Step) Selectors() []string {
	selectors := make([]string, 0, 1+len(s.FallbackSelectors))
	if s.Selector != "" {
		selectors = append(selectors, s.Selector)
	}
	for _, fs := range s.FallbackSelectors {
		if fs != "" {
			selectors = append(selectors, fs)
		}
	}
	return selectors
}

// Copy returns a deep copy of the template so it can be shared with readers.
func (t Template) Copy() Template {
	c := t

	if t.Metadata.Tags != nil {
		c.Metadata.Tags = append([]string(nil), t.Metadata.Tags...)
	}

	if t.Variables != nil {
		c.Variables = append([]Variable(nil), t.Variables...)
	}

	if t.Steps != nil {
		c.Steps = make([]Step, len(t.Steps))
		for i, s := range t.Steps {
			if s.FallbackSelectors != nil {
				s.FallbackSelectors = append([]string(nil), s.FallbackSelectors...)
			}
			if s.HumanDelay != nil {
				d := *s.HumanDelay
				s.HumanDelay = &d
			}
			c.Steps[i] = s
		}
	}

	return c
}

// Title returns the template title, or the ID when the template has no title.
func (t Template) Title() string {
	if t.Metadata.Title != "" {
		return t.Metadata.Title
	}
	return t.ID
}

// Validate validates the template.
func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template id is required: %w", ErrNotValid)
	}

	if len(t.Steps) == 0 {
		return fmt.Errorf("template %s has no steps: %w", t.ID, ErrNotValid)
	}

	for i, s := range t.Steps {
		if s.Action == "" {
			return fmt.Errorf("step %d action is required: %w", i+1, ErrNotValid)
		}
		if s.HumanDelay != nil && (s.HumanDelay.Min < 0 || s.HumanDelay.Min > s.HumanDelay.Max) {
			return fmt.Errorf("step %d human delay range is invalid: %w", i+1, ErrNotValid)
		}
	}

	names := map[string]bool{}
	for _, v := range t.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable name is required: %w", ErrNotValid)
		}
		if names[v.Name] {
			return fmt.Errorf("variable %q is declared more than once: %w", v.Name, ErrNotValid)
		}
		names[v.Name] = true

		switch v.Type {
		case VariableTypeString, VariableTypeNumber, VariableTypeBoolean:
		default:
			return fmt.Errorf("variable %q has unknown type %q: %w", v.Name, v.Type, ErrNotValid)
		}
	}

	return nil
}

// ResolveVariables merges the caller values over the declared defaults, caller values win.
// String values given for number or boolean declarations are coerced to the declared type.
func (t Template) ResolveVariables(given map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(t.Variables)+len(given))
	for k, v := range given {
		resolved[k] = v
	}

	for _, decl := range t.Variables {
		v, ok := resolved[decl.Name]
		if !ok || v == nil {
			if decl.Default == nil {
				if decl.Required {
					return nil, fmt.Errorf("required variable %q is missing: %w", decl.Name, ErrNotValid)
				}
				continue
			}
			v = decl.Default
		}

		cv, err := coerceVariable(decl.Type, v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", decl.Name, err)
		}
		resolved[decl.Name] = cv
	}

	return resolved, nil
}

func coerceVariable(typ VariableType, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}

	switch typ {
	case VariableTypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number: %w", s, ErrNotValid)
		}
		return n, nil
	case VariableTypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean: %w", s, ErrNotValid)
		}
		return b, nil
	}

	return s, nil
}
