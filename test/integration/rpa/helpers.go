package rpa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/rpa/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
	// Browser is the browser executable used by the CDP tests, they are skipped when empty.
	Browser string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "rpa"
	}

	// go test changes the CWD to the package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("RPA_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("rpa binary not found at %q: %w", c.Binary, err)
	}

	if c.Browser != "" {
		if _, err := os.Stat(c.Browser); err != nil {
			return fmt.Errorf("browser not found at %q: %w", c.Browser, err)
		}
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "RPA_INTEGRATION"
		envBinary     = "RPA_INTEGRATION_BINARY"
		envBrowser    = "RPA_INTEGRATION_BROWSER"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary:  os.Getenv(envBinary),
		Browser: os.Getenv(envBrowser),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// RunRPACmd runs an rpa command with a specific db path and logging disabled.
func RunRPACmd(ctx context.Context, config Config, dbPath string, args ...string) (stdout, stderr []byte, err error) {
	args = append([]string{"--no-log", "--db-path", dbPath}, args...)
	return testutils.RunRPAArgs(ctx, nil, config.Binary, args, true)
}

// RunImport imports a template into the catalog.
func RunImport(ctx context.Context, config Config, dbPath, path string) (stdout, stderr []byte, err error) {
	return RunRPACmd(ctx, config, dbPath, "template", "import", "--replace", path)
}

// RunTemplateList lists the catalog templates in JSON format.
func RunTemplateList(ctx context.Context, config Config, dbPath string) (stdout, stderr []byte, err error) {
	return RunRPACmd(ctx, config, dbPath, "template", "list", "--format", "json")
}

// RunTemplateRm removes a catalog template.
func RunTemplateRm(ctx context.Context, config Config, dbPath, id string) (stdout, stderr []byte, err error) {
	return RunRPACmd(ctx, config, dbPath, "template", "rm", id)
}

// RunFake runs a template with the fake gateway in JSON format.
func RunFake(ctx context.Context, config Config, dbPath, template, profile string, vars ...string) (stdout, stderr []byte, err error) {
	args := []string{"run", template, "--gateway", "fake", "--profile-path", profile, "--format", "json"}
	for _, v := range vars {
		args = append(args, "--var", v)
	}
	return RunRPACmd(ctx, config, dbPath, args...)
}

// RunCDP runs a template with a real browser in JSON format.
func RunCDP(ctx context.Context, config Config, dbPath, template, profile string) (stdout, stderr []byte, err error) {
	return RunRPACmd(ctx, config, dbPath, "run", template, "--exec-path", config.Browser, "--profile-path", profile, "--format", "json")
}
