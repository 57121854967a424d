package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/rpa/internal/model"
)

// TemplateFileRepository loads templates from YAML or JSON documents.
type TemplateFileRepository struct {
	fs fs.FS
}

// NewTemplateFileRepository creates a new template document repository.
func NewTemplateFileRepository(filesystem fs.FS) *TemplateFileRepository {
	return &TemplateFileRepository{fs: filesystem}
}

// GetTemplate loads a template document and returns a validated domain model.
func (r *TemplateFileRepository) GetTemplate(ctx context.Context, path string) (*model.Template, error) {
	data, err := fs.ReadFile(r.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("template file %s: %w", path, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	t, err := DecodeTemplate(data)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// DecodeTemplate decodes a YAML or JSON template document.
func DecodeTemplate(data []byte) (model.Template, error) {
	var doc TemplateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.Template{}, fmt.Errorf("parsing template: %s: %w", err, model.ErrNotValid)
	}

	if err := doc.validate(); err != nil {
		return model.Template{}, fmt.Errorf("invalid template: %w: %w", err, model.ErrNotValid)
	}

	t := doc.toModel()
	if err := t.Validate(); err != nil {
		return model.Template{}, fmt.Errorf("invalid template: %w", err)
	}

	return t, nil
}

// EncodeTemplate encodes a template as a YAML document.
func EncodeTemplate(t model.Template) ([]byte, error) {
	data, err := yaml.Marshal(fromModel(t))
	if err != nil {
		return nil, fmt.Errorf("could not encode template %s: %w", t.ID, err)
	}

	return data, nil
}

// TemplateDocument represents the document structure of a template.
type TemplateDocument struct {
	ID        string             `yaml:"id" json:"id"`
	Version   string             `yaml:"version,omitempty" json:"version,omitempty"`
	Metadata  MetadataDocument   `yaml:"metadata" json:"metadata"`
	Steps     []StepDocument     `yaml:"steps" json:"steps"`
	Variables []VariableDocument `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// MetadataDocument represents the document structure of the template metadata.
type MetadataDocument struct {
	Title       string   `yaml:"title,omitempty" json:"title,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Platform    string   `yaml:"platform,omitempty" json:"platform,omitempty"`
	Author      string   `yaml:"author,omitempty" json:"author,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// StepDocument represents the document structure of a step. Durations are milliseconds.
type StepDocument struct {
	Order             int      `yaml:"order,omitempty" json:"order,omitempty"`
	Action            string   `yaml:"action" json:"action"`
	Description       string   `yaml:"description,omitempty" json:"description,omitempty"`
	Selector          string   `yaml:"selector,omitempty" json:"selector,omitempty"`
	FallbackSelectors []string `yaml:"fallbackSelectors,omitempty" json:"fallbackSelectors,omitempty"`
	URL               string   `yaml:"url,omitempty" json:"url,omitempty"`
	Value             string   `yaml:"value,omitempty" json:"value,omitempty"`
	JSExpression      string   `yaml:"jsExpression,omitempty" json:"jsExpression,omitempty"`
	WaitForSelector   string   `yaml:"waitForSelector,omitempty" json:"waitForSelector,omitempty"`
	WaitMs            int      `yaml:"waitMs,omitempty" json:"waitMs,omitempty"`
	Timeout           int      `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	HumanDelay        []int    `yaml:"humanDelay,omitempty" json:"humanDelay,omitempty"`
	Iterations        int      `yaml:"iterations,omitempty" json:"iterations,omitempty"`
}

// VariableDocument represents the document structure of a variable declaration.
type VariableDocument struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

func (d TemplateDocument) validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}

	for i, s := range d.Steps {
		if s.Action == "" {
			return fmt.Errorf("step %d action is required", i+1)
		}
		if s.HumanDelay != nil && len(s.HumanDelay) != 2 {
			return fmt.Errorf("step %d humanDelay must be a [min, max] pair, got %d values", i+1, len(s.HumanDelay))
		}
		if s.WaitMs < 0 || s.Timeout < 0 || s.Iterations < 0 {
			return fmt.Errorf("step %d has negative values", i+1)
		}
	}

	return nil
}

func (d TemplateDocument) toModel() model.Template {
	t := model.Template{
		ID:      d.ID,
		Version: d.Version,
		Metadata: model.TemplateMetadata{
			Title:       d.Metadata.Title,
			Description: d.Metadata.Description,
			Platform:    d.Metadata.Platform,
			Author:      d.Metadata.Author,
			Tags:        d.Metadata.Tags,
		},
	}

	for i, s := range d.Steps {
		step := model.Step{
			Order:             s.Order,
			Action:            model.StepAction(s.Action),
			Description:       s.Description,
			Selector:          s.Selector,
			FallbackSelectors: s.FallbackSelectors,
			URL:               s.URL,
			Value:             s.Value,
			JSExpression:      s.JSExpression,
			WaitForSelector:   s.WaitForSelector,
			Wait:              ms(s.WaitMs),
			Timeout:           ms(s.Timeout),
			Iterations:        s.Iterations,
		}
		if step.Order == 0 {
			step.Order = i + 1
		}
		if len(s.HumanDelay) == 2 {
			step.HumanDelay = &model.DelayRange{Min: ms(s.HumanDelay[0]), Max: ms(s.HumanDelay[1])}
		}
		t.Steps = append(t.Steps, step)
	}

	for _, v := range d.Variables {
		typ := model.VariableType(v.Type)
		if typ == "" {
			typ = model.VariableTypeString
		}
		t.Variables = append(t.Variables, model.Variable{
			Name:        v.Name,
			Type:        typ,
			Required:    v.Required,
			Default:     normalizeDefault(typ, v.Default),
			Description: v.Description,
		})
	}

	return t
}

func fromModel(t model.Template) TemplateDocument {
	d := TemplateDocument{
		ID:      t.ID,
		Version: t.Version,
		Metadata: MetadataDocument{
			Title:       t.Metadata.Title,
			Description: t.Metadata.Description,
			Platform:    t.Metadata.Platform,
			Author:      t.Metadata.Author,
			Tags:        t.Metadata.Tags,
		},
	}

	for _, s := range t.Steps {
		step := StepDocument{
			Order:             s.Order,
			Action:            string(s.Action),
			Description:       s.Description,
			Selector:          s.Selector,
			FallbackSelectors: s.FallbackSelectors,
			URL:               s.URL,
			Value:             s.Value,
			JSExpression:      s.JSExpression,
			WaitForSelector:   s.WaitForSelector,
			WaitMs:            int(s.Wait.Milliseconds()),
			Timeout:           int(s.Timeout.Milliseconds()),
			Iterations:        s.Iterations,
		}
		if s.HumanDelay != nil {
			step.HumanDelay = []int{int(s.HumanDelay.Min.Milliseconds()), int(s.HumanDelay.Max.Milliseconds())}
		}
		d.Steps = append(d.Steps, step)
	}

	for _, v := range t.Variables {
		d.Variables = append(d.Variables, VariableDocument{
			Name:        v.Name,
			Type:        string(v.Type),
			Required:    v.Required,
			Default:     v.Default,
			Description: v.Description,
		})
	}

	return d
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// normalizeDefault makes numeric defaults float64 like the values decoded from JSON.
func normalizeDefault(typ model.VariableType, v any) any {
	if typ != model.VariableTypeNumber {
		return v
	}

	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}

	return v
}
