package engine

import (
	"encoding/json"
	"fmt"
)

// jsString returns s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func presenceScript(selector string) string {
	return "!!document.querySelector(" + jsString(selector) + ")"
}

// clickScript clicks the first element matching the selectors and returns the
// matched selector, or null when nothing matches.
func clickScript(selectors []string) string {
	return fmt.Sprintf(`(() => {
	for (const sel of %s) {
		const el = document.querySelector(sel);
		if (el) {
			el.scrollIntoView({ behavior: 'smooth', block: 'center' });
			el.click();
			return sel;
		}
	}
	return null;
})()`, jsStrings(selectors))
}

// typeScript sets the value of the element one character at a time so input
// listeners observe every change. Returns the final value length, or null when
// the element is missing.
func typeScript(selector, value string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return null;
	el.scrollIntoView({ behavior: 'smooth', block: 'center' });
	el.focus();
	el.value = '';
	for (const ch of %s) {
		el.value += ch;
		el.dispatchEvent(new InputEvent('input', { bubbles: true, data: ch, inputType: 'insertText' }));
	}
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return el.value.length;
})()`, jsString(selector), jsString(value))
}

func submitScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el || !el.form) return false;
	if (el.form.requestSubmit) el.form.requestSubmit(); else el.form.submit();
	return true;
})()`, jsString(selector))
}

// extractScript returns the inner text of the first element matching the
// selectors, or null when nothing matches.
func extractScript(selectors []string) string {
	return fmt.Sprintf(`(() => {
	for (const sel of %s) {
		const el = document.querySelector(sel);
		if (el) return el.innerText;
	}
	return null;
})()`, jsStrings(selectors))
}

func scrollScript(px int) string {
	return fmt.Sprintf("window.scrollBy({ top: %d, behavior: 'smooth' })", px)
}
