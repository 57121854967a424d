package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/rpa/internal/app/templateimport"
	"github.com/slok/rpa/internal/app/templatelist"
	"github.com/slok/rpa/internal/app/templateremove"
	storageio "github.com/slok/rpa/internal/storage/io"
)

// ImportTemplateOpts are the options to import a template.
type ImportTemplateOpts struct {
	// Replace overwrites a catalog template with the same ID.
	Replace bool
}

// ImportTemplate validates a YAML or JSON template document and stores it in the catalog.
// Pass nil opts for defaults.
//
// Returns [ErrAlreadyExists] when the ID is already in the catalog and Replace
// is not set, and [ErrNotValid] when the document is not valid.
func (c *Client) ImportTemplate(ctx context.Context, path string, opts *ImportTemplateOpts) (*Template, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve template path: %w", err)
	}

	svc, err := templateimport.NewService(templateimport.ServiceConfig{
		Files:      storageio.NewTemplateFileRepository(os.DirFS(filepath.Dir(abs))),
		Repository: c.catalog,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := templateimport.Request{Path: filepath.Base(abs)}
	if opts != nil {
		req.Replace = opts.Replace
	}

	tpl, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTemplate(*tpl)
	return &result, nil
}

// ListTemplatesOpts are the options to list catalog templates.
type ListTemplatesOpts struct {
	// Platform only returns the templates of this platform, case insensitive.
	Platform string
}

// ListTemplates returns the catalog templates. Pass nil opts to list all of them.
func (c *Client) ListTemplates(ctx context.Context, opts *ListTemplatesOpts) ([]Template, error) {
	svc, err := templatelist.NewService(templatelist.ServiceConfig{
		Repository: c.catalog,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := templatelist.Request{}
	if opts != nil {
		req.PlatformFilter = opts.Platform
	}

	tpls, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalTemplateList(tpls), nil
}

// GetTemplate returns a catalog template.
//
// Returns [ErrNotFound] if the template does not exist.
func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	tpl, err := c.catalog.GetTemplate(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTemplate(*tpl)
	return &result, nil
}

// RemoveTemplate removes a template from the catalog and returns it.
//
// Returns [ErrNotFound] if the template does not exist.
func (c *Client) RemoveTemplate(ctx context.Context, id string) (*Template, error) {
	svc, err := templateremove.NewService(templateremove.ServiceConfig{
		Repository: c.catalog,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	tpl, err := svc.Run(ctx, templateremove.Request{ID: id})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTemplate(*tpl)
	return &result, nil
}
