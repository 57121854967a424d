package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slok/rpa/internal/model"
)

const (
	navigateLoadWait   = 3 * time.Second
	searchSettleWait   = 500 * time.Millisecond
	searchResultsWait  = 3 * time.Second
	scrollMinPixels    = 300
	scrollPixelsRange  = 500
	scrollMinPause     = time.Second
	scrollPauseRange   = 2 * time.Second
	maxOutcomeValueLen = 200
)

// outcome is the informative result of a step, it's logged on the task.
type outcome struct {
	message string
	// warn marks benign problems, like a missing element.
	warn bool
}

func info(format string, args ...any) outcome {
	return outcome{message: fmt.Sprintf(format, args...)}
}

func warn(format string, args ...any) outcome {
	return outcome{message: fmt.Sprintf(format, args...), warn: true}
}

// runStep maps a step into gateway calls.
func (x *execution) runStep(ctx context.Context, step model.Step) (outcome, error) {
	switch step.Action {
	case model.StepActionNavigate:
		return x.navigate(ctx, step)
	case model.StepActionClick:
		return x.click(ctx, step)
	case model.StepActionType:
		return x.typeText(ctx, step)
	case model.StepActionScroll:
		return x.scroll(ctx, step)
	case model.StepActionWait:
		d := step.WaitOrDefault()
		if err := x.sleep(ctx, d); err != nil {
			return outcome{}, err
		}
		return info("Waited %s", d), nil
	case model.StepActionExtract:
		return x.extract(ctx, step)
	case model.StepActionLoop:
		return outcome{}, nil
	}

	x.logger.Debugf("Skipping unsupported action %q", step.Action)
	return outcome{}, nil
}

func (x *execution) navigate(ctx context.Context, step model.Step) (outcome, error) {
	url := Substitute(step.URL, x.req.Variables)
	if url == "" {
		return outcome{}, fmt.Errorf("navigate step has no url: %w", model.ErrNotValid)
	}

	err := x.gw.Execute(ctx, x.sessionID, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return outcome{}, fmt.Errorf("could not navigate: %w", err)
	}

	if err := x.sleep(ctx, navigateLoadWait); err != nil {
		return outcome{}, err
	}

	if step.WaitForSelector == "" {
		return info("Navigated to %s", url), nil
	}

	selectors := splitSelectors(step.WaitForSelector)
	found, err := x.waitForAnySelector(ctx, selectors, step.TimeoutOrDefault())
	if err != nil {
		return outcome{}, err
	}
	if found == "" {
		return warn("Navigated to %s, no element found for %s", url, strings.Join(selectors, ", ")), nil
	}

	return info("Navigated to %s", url), nil
}

func (x *execution) click(ctx context.Context, step model.Step) (outcome, error) {
	if step.JSExpression != "" {
		return x.evalExpression(ctx, step.Action, Substitute(step.JSExpression, x.req.Variables))
	}

	selectors := step.Selectors()
	if len(selectors) == 0 {
		return outcome{}, fmt.Errorf("click step has no selector: %w", model.ErrNotValid)
	}

	if _, err := x.waitForAnySelector(ctx, selectors, step.TimeoutOrDefault()); err != nil {
		return outcome{}, err
	}

	res, err := x.gw.Evaluate(ctx, x.sessionID, clickScript(selectors))
	if err != nil {
		return outcome{}, fmt.Errorf("could not click: %w", err)
	}

	clicked, _ := res.Value.(string)
	if clicked == "" {
		return warn("no element found for %s", strings.Join(selectors, ", ")), nil
	}

	return info("Clicked %s", clicked), nil
}

func (x *execution) typeText(ctx context.Context, step model.Step) (outcome, error) {
	if step.JSExpression != "" {
		return x.evalExpression(ctx, step.Action, Substitute(step.JSExpression, x.req.Variables))
	}

	selectors := step.Selectors()
	if len(selectors) == 0 {
		return outcome{}, fmt.Errorf("type step has no selector: %w", model.ErrNotValid)
	}
	value := Substitute(step.Value, x.req.Variables)
	if value == "" {
		return outcome{}, fmt.Errorf("type step has no value: %w", model.ErrNotValid)
	}

	found, err := x.waitForAnySelector(ctx, selectors, step.TimeoutOrDefault())
	if err != nil {
		return outcome{}, err
	}
	if found == "" {
		return warn("no element found for %s", strings.Join(selectors, ", ")), nil
	}

	res, err := x.gw.Evaluate(ctx, x.sessionID, typeScript(found, value))
	if err != nil {
		return outcome{}, fmt.Errorf("could not type: %w", err)
	}
	if res.Value == nil {
		return warn("no element found for %s", found), nil
	}

	if isSearchField(step) {
		if err := x.submitSearch(ctx, found); err != nil {
			return outcome{}, err
		}
	}

	return info("Typed %d character(s) into %s", utf8.RuneCountInString(value), found), nil
}

func isSearchField(step model.Step) bool {
	return strings.Contains(strings.ToLower(step.Selector), "search") ||
		strings.Contains(strings.ToLower(step.Description), "search")
}

func (x *execution) submitSearch(ctx context.Context, selector string) error {
	if err := x.sleep(ctx, searchSettleWait); err != nil {
		return err
	}

	for _, typ := range []string{"keyDown", "keyUp"} {
		err := x.gw.Execute(ctx, x.sessionID, "Input.dispatchKeyEvent", map[string]any{
			"type":                  typ,
			"key":                   "Enter",
			"code":                  "Enter",
			"windowsVirtualKeyCode": 13,
			"nativeVirtualKeyCode":  13,
		})
		if err != nil {
			return fmt.Errorf("could not press enter: %w", err)
		}
	}

	// Pages without a form are fine, Enter already did the job.
	if _, err := x.gw.Evaluate(ctx, x.sessionID, submitScript(selector)); err != nil {
		x.logger.Debugf("Ignoring form submit error: %s", err)
	}

	return x.sleep(ctx, searchResultsWait)
}

func (x *execution) scroll(ctx context.Context, step model.Step) (outcome, error) {
	// Scroll scripts run verbatim, without variables.
	if step.JSExpression != "" {
		return x.evalExpression(ctx, step.Action, step.JSExpression)
	}

	n := step.IterationsOrDefault()
	for i := 0; i < n; i++ {
		px := scrollMinPixels + int(x.rand()*scrollPixelsRange)
		if _, err := x.gw.Evaluate(ctx, x.sessionID, scrollScript(px)); err != nil {
			return outcome{}, fmt.Errorf("could not scroll: %w", err)
		}

		pause := scrollMinPause + time.Duration(x.rand()*float64(scrollPauseRange))
		if err := x.sleep(ctx, pause); err != nil {
			return outcome{}, err
		}
	}

	return info("Scrolled %d time(s)", n), nil
}

func (x *execution) extract(ctx context.Context, step model.Step) (outcome, error) {
	if step.JSExpression != "" {
		return x.evalExpression(ctx, step.Action, Substitute(step.JSExpression, x.req.Variables))
	}

	selectors := step.Selectors()
	if len(selectors) == 0 {
		return warn("no extract expression"), nil
	}

	if _, err := x.waitForAnySelector(ctx, selectors, step.TimeoutOrDefault()); err != nil {
		return outcome{}, err
	}

	res, err := x.gw.Evaluate(ctx, x.sessionID, extractScript(selectors))
	if err != nil {
		return outcome{}, fmt.Errorf("could not extract: %w", err)
	}
	if res.Value == nil {
		return warn("no element found for %s", strings.Join(selectors, ", ")), nil
	}

	return info("Extracted: %s", formatValue(res.Value)), nil
}

func (x *execution) evalExpression(ctx context.Context, action model.StepAction, expr string) (outcome, error) {
	res, err := x.gw.Evaluate(ctx, x.sessionID, expr)
	if err != nil {
		return outcome{}, fmt.Errorf("could not evaluate expression: %w", err)
	}

	if res.Value == nil {
		return outcome{}, nil
	}
	if action == model.StepActionExtract {
		return info("Extracted: %s", formatValue(res.Value)), nil
	}

	return info("Result: %s", formatValue(res.Value)), nil
}

func splitSelectors(s string) []string {
	var selectors []string
	for _, sel := range strings.Split(s, ",") {
		if sel = strings.TrimSpace(sel); sel != "" {
			selectors = append(selectors, sel)
		}
	}
	return selectors
}

func formatValue(v any) string {
	s, ok := v.(string)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprint(v)
		} else {
			s = string(b)
		}
	}

	if utf8.RuneCountInString(s) > maxOutcomeValueLen {
		s = string([]rune(s)[:maxOutcomeValueLen]) + "..."
	}
	return s
}
