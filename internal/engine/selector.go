package engine

import (
	"context"
	"fmt"
	"time"
)

const selectorPollInterval = 500 * time.Millisecond

// waitForAnySelector polls the page until one of the selectors is present and
// returns it. A timeout is not an error, it returns an empty selector.
func (x *execution) waitForAnySelector(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	if len(selectors) == 0 {
		return "", nil
	}

	deadline := x.now().Add(timeout)
	for {
		for _, sel := range selectors {
			res, err := x.gw.Evaluate(ctx, x.sessionID, presenceScript(sel))
			if err != nil {
				return "", fmt.Errorf("could not check selector %q: %w", sel, err)
			}
			if res == nil {
				continue
			}
			if found, _ := res.Value.(bool); found {
				return sel, nil
			}
		}

		remaining := deadline.Sub(x.now())
		if remaining <= 0 {
			x.logger.Debugf("Selectors %v not found after %s", selectors, timeout)
			return "", nil
		}

		if err := x.sleep(ctx, min(selectorPollInterval, remaining)); err != nil {
			return "", err
		}
	}
}
