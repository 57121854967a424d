package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/rpa/internal/engine"
)

func TestSubstitute(t *testing.T) {
	tests := map[string]struct {
		text string
		vars map[string]any
		exp  string
	}{
		"Bound tokens should be replaced.": {
			text: "go to {{city}} now",
			vars: map[string]any{"city": "Tokyo"},
			exp:  "go to Tokyo now",
		},

		"Unbound tokens should be replaced with empty strings.": {
			text: "go to {{missing}} now",
			vars: map[string]any{"city": "Tokyo"},
			exp:  "go to  now",
		},

		"Nil variables should behave as unbound.": {
			text: "a{{x}}b",
			exp:  "ab",
		},

		"Non word tokens should be kept.": {
			text: "{{ city }} {{a-b}} {city}",
			vars: map[string]any{"city": "Tokyo"},
			exp:  "{{ city }} {{a-b}} {city}",
		},

		"Numbers and booleans should be stringified.": {
			text: "{{n}} {{f}} {{i}} {{b}}",
			vars: map[string]any{"n": 3.0, "f": 2.5, "i": 7, "b": true},
			exp:  "3 2.5 7 true",
		},

		"Other values should be stringified as JSON.": {
			text: "{{list}}",
			vars: map[string]any{"list": []string{"a", "b"}},
			exp:  `["a","b"]`,
		},

		"Repeated tokens should all be replaced.": {
			text: "{{a}}{{a}}",
			vars: map[string]any{"a": "x"},
			exp:  "xx",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, engine.Substitute(test.text, test.vars))
		})
	}
}
