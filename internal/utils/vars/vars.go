package vars

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var varKeyRegexp = regexp.MustCompile(`^\w+$`)

// ParseSpecs parses `KEY=VALUE` template variable specs. A bare `KEY` takes the
// value from the `RPA_VAR_KEY` environment variable.
func ParseSpecs(specs []string) (map[string]any, error) {
	vars := make(map[string]any, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("variable spec cannot be empty")
		}

		if key, value, ok := strings.Cut(spec, "="); ok {
			if !isValidKey(key) {
				return nil, fmt.Errorf("invalid variable name %q", key)
			}

			vars[key] = value
			continue
		}

		if !isValidKey(spec) {
			return nil, fmt.Errorf("invalid variable name %q", spec)
		}

		value, ok := os.LookupEnv(EnvVarName(spec))
		if !ok {
			return nil, fmt.Errorf("variable %q is not set in %s", spec, EnvVarName(spec))
		}

		vars[spec] = value
	}

	return vars, nil
}

// EnvVarName returns the environment variable that holds a template variable.
func EnvVarName(key string) string {
	return "RPA_VAR_" + key
}

func isValidKey(k string) bool {
	return varKeyRegexp.MatchString(k)
}
