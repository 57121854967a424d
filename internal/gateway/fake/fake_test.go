package fake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/gateway/fake"
	"github.com/slok/rpa/internal/model"
)

func TestGatewaySessionLifecycle(t *testing.T) {
	tests := map[string]struct {
		config  fake.GatewayConfig
		actions func(ctx context.Context, t *testing.T, gw *fake.Gateway)
	}{
		"Launching and connecting should allow protocol calls": {
			actions: func(ctx context.Context, t *testing.T, gw *fake.Gateway) {
				s, err := gw.Launch(ctx, gateway.LaunchRequest{ProfilePath: "/tmp/p1", Browser: "chrome"})
				require.NoError(t, err)
				assert.NotEmpty(t, s.ID)
				assert.Contains(t, s.Endpoint, s.ID)

				require.NoError(t, gw.Connect(ctx, s.ID, s.Endpoint))
				require.NoError(t, gw.Execute(ctx, s.ID, "Page.enable", map[string]any{}))
				require.NoError(t, gw.Disconnect(ctx, s.ID))
				require.NoError(t, gw.Disconnect(ctx, s.ID))

				assert.Equal(t, []string{"Page.enable"}, gw.ExecutedMethods())
			},
		},

		"Calling a not connected session should fail": {
			actions: func(ctx context.Context, t *testing.T, gw *fake.Gateway) {
				s, err := gw.Launch(ctx, gateway.LaunchRequest{})
				require.NoError(t, err)

				err = gw.Execute(ctx, s.ID, "Page.enable", nil)
				assert.Error(t, err)
				_, err = gw.Evaluate(ctx, s.ID, "1+1")
				assert.Error(t, err)
			},
		},

		"Connecting a missing session should fail with not found": {
			actions: func(ctx context.Context, t *testing.T, gw *fake.Gateway) {
				err := gw.Connect(ctx, "missing", "ws://x")
				assert.ErrorIs(t, err, model.ErrNotFound)
			},
		},

		"Configured launch errors should be returned": {
			config: fake.GatewayConfig{LaunchErr: errors.New("no browser")},
			actions: func(ctx context.Context, t *testing.T, gw *fake.Gateway) {
				_, err := gw.Launch(ctx, gateway.LaunchRequest{})
				assert.EqualError(t, err, "no browser")
			},
		},

		"Configured execute errors should be returned per method": {
			config: fake.GatewayConfig{ExecuteErrs: map[string]error{"Page.navigate": errors.New("nav failed")}},
			actions: func(ctx context.Context, t *testing.T, gw *fake.Gateway) {
				s, err := gw.Launch(ctx, gateway.LaunchRequest{})
				require.NoError(t, err)
				require.NoError(t, gw.Connect(ctx, s.ID, s.Endpoint))

				assert.NoError(t, gw.Execute(ctx, s.ID, "Page.enable", nil))
				assert.EqualError(t, gw.Execute(ctx, s.ID, "Page.navigate", map[string]any{"url": "https://x"}), "nav failed")
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			gw, err := fake.NewGateway(test.config)
			require.NoError(t, err)

			test.actions(context.Background(), t, gw)
		})
	}
}

func TestGatewayEvaluate(t *testing.T) {
	tests := map[string]struct {
		config   fake.GatewayConfig
		expr     string
		expValue any
		expErr   bool
	}{
		"A present selector check should be true": {
			config:   fake.GatewayConfig{Selectors: []string{"#search"}},
			expr:     `!!document.querySelector("#search")`,
			expValue: true,
		},

		"A missing selector check should be false": {
			config:   fake.GatewayConfig{Selectors: []string{"#search"}},
			expr:     `!!document.querySelector(".other")`,
			expValue: false,
		},

		"Selectors with quotes should be decoded": {
			config:   fake.GatewayConfig{Selectors: []string{`input[name="q"]`}},
			expr:     `!!document.querySelector("input[name=\"q\"]")`,
			expValue: true,
		},

		"All selectors present should match any selector": {
			config:   fake.GatewayConfig{AllSelectorsPresent: true},
			expr:     `!!document.querySelector(".anything")`,
			expValue: true,
		},

		"Other scripts without eval func should return nil": {
			expr:     `document.title`,
			expValue: nil,
		},

		"Other scripts should use the eval func": {
			config: fake.GatewayConfig{EvalFunc: func(expression string) (any, error) {
				return "title: " + expression, nil
			}},
			expr:     `document.title`,
			expValue: "title: document.title",
		},

		"Eval func errors should be returned": {
			config: fake.GatewayConfig{EvalFunc: func(expression string) (any, error) {
				return nil, errors.New("ReferenceError")
			}},
			expr:   `foo()`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			gw, err := fake.NewGateway(test.config)
			require.NoError(err)
			s, err := gw.Launch(ctx, gateway.LaunchRequest{})
			require.NoError(err)
			require.NoError(gw.Connect(ctx, s.ID, s.Endpoint))

			res, err := gw.Evaluate(ctx, s.ID, test.expr)
			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expValue, res.Value)
			}
		})
	}
}

func TestGatewayLatencyHonorsContext(t *testing.T) {
	gw, err := fake.NewGateway(fake.GatewayConfig{Latency: 1 << 40})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gw.Launch(ctx, gateway.LaunchRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
