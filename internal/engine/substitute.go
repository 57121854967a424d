package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var variableToken = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Substitute replaces every `{{name}}` token with the string form of the
// variable value. Unbound and nil variables are replaced with an empty string.
func Substitute(s string, vars map[string]any) string {
	if s == "" {
		return s
	}

	return variableToken.ReplaceAllStringFunc(s, func(token string) string {
		name := variableToken.FindStringSubmatch(token)[1]
		return stringify(vars[name])
	})
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
