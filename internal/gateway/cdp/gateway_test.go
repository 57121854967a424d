package cdp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/gateway/cdp"
	"github.com/slok/rpa/internal/model"
)

type cdpRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// fakeBrowser serves the target list and a single page websocket speaking CDP.
type fakeBrowser struct {
	t        *testing.T
	srv      *httptest.Server
	port     int
	mu       sync.Mutex
	requests []cdpRequest
	// respond returns the result or the error of a command.
	respond func(req cdpRequest) (result any, errMsg string)
}

func newFakeBrowser(t *testing.T) *fakeBrowser {
	fb := &fakeBrowser{t: t}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"type": "service_worker", "webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/sw"},
			{"type": "page", "webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/page/P1"},
		})
	})
	mux.HandleFunc("/devtools/page/P1", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			var req cdpRequest
			if err := ws.ReadJSON(&req); err != nil {
				return
			}

			fb.mu.Lock()
			fb.requests = append(fb.requests, req)
			respond := fb.respond
			fb.mu.Unlock()

			// Events must be ignored by the client.
			_ = ws.WriteJSON(map[string]any{"method": "Page.loadEventFired", "params": map[string]any{"timestamp": 1}})

			var result any = map[string]any{}
			errMsg := ""
			if respond != nil {
				result, errMsg = respond(req)
			}

			resp := map[string]any{"id": req.ID}
			if errMsg != "" {
				resp["error"] = map[string]any{"code": -32000, "message": errMsg}
			} else {
				resp["result"] = result
			}
			if err := ws.WriteJSON(resp); err != nil {
				return
			}
		}
	})

	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)

	u, err := url.Parse(fb.srv.URL)
	require.NoError(t, err)
	fb.port, err = strconv.Atoi(u.Port())
	require.NoError(t, err)

	return fb
}

func (fb *fakeBrowser) Requests() []cdpRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]cdpRequest{}, fb.requests...)
}

// startBrowser simulates a browser writing its debugging port file.
func (fb *fakeBrowser) startBrowser(profilePath string, gotArgs *[]string) func(path string, args []string) error {
	return func(path string, args []string) error {
		*gotArgs = args
		return os.WriteFile(filepath.Join(profilePath, "DevToolsActivePort"), []byte(strconv.Itoa(fb.port)+"\n/devtools/browser/B1\n"), 0o644)
	}
}

func newConnectedGateway(t *testing.T, fb *fakeBrowser) (*cdp.Gateway, *gateway.Session) {
	profile := t.TempDir()
	var args []string
	root := false
	gw, err := cdp.NewGateway(cdp.GatewayConfig{
		ExecPath:            "/bin/browser",
		PortPollInterval:    time.Millisecond,
		TargetRetryInterval: time.Millisecond,
		StartBrowser:        fb.startBrowser(profile, &args),
		RunningAsRoot:       &root,
	})
	require.NoError(t, err)

	ctx := context.Background()
	s, err := gw.Launch(ctx, gateway.LaunchRequest{ProfilePath: profile, Browser: "chrome"})
	require.NoError(t, err)
	require.NoError(t, gw.Connect(ctx, s.ID, s.Endpoint))
	t.Cleanup(func() { _ = gw.Disconnect(ctx, s.ID) })

	return gw, s
}

func TestGatewayLaunch(t *testing.T) {
	tests := map[string]struct {
		staleFile   bool
		url         string
		root        bool
		expArgs     []string
		expEndpoint string
	}{
		"Launching should use the profile and a random debugging port": {
			expArgs: []string{"--remote-debugging-port=0", "--no-first-run", "--disable-background-networking"},
		},

		"Launching with a URL should open it": {
			url:     "https://example.com",
			expArgs: []string{"--remote-debugging-port=0", "https://example.com"},
		},

		"Launching as root should disable the sandbox": {
			root:    true,
			expArgs: []string{"--no-sandbox"},
		},

		"A stale port file should be removed before launching": {
			staleFile: true,
			expArgs:   []string{"--remote-debugging-port=0"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			fb := newFakeBrowser(t)
			profile := t.TempDir()
			portFile := filepath.Join(profile, "DevToolsActivePort")
			if test.staleFile {
				require.NoError(os.WriteFile(portFile, []byte("1\n"), 0o644))
			}

			var gotArgs []string
			start := fb.startBrowser(profile, &gotArgs)
			root := test.root
			gw, err := cdp.NewGateway(cdp.GatewayConfig{
				ExecPath:            "/bin/browser",
				PortPollInterval:    time.Millisecond,
				TargetRetryInterval: time.Millisecond,
				RunningAsRoot:       &root,
				StartBrowser: func(path string, args []string) error {
					// The stale file must be gone before the browser starts.
					_, err := os.Stat(portFile)
					assert.True(os.IsNotExist(err))
					return start(path, args)
				},
			})
			require.NoError(err)

			s, err := gw.Launch(context.Background(), gateway.LaunchRequest{ProfilePath: profile, Browser: "chrome", URL: test.url})
			require.NoError(err)

			assert.NotEmpty(s.ID)
			assert.Equal("ws://127.0.0.1:"+strconv.Itoa(fb.port)+"/devtools/page/P1", s.Endpoint)
			assert.Contains(gotArgs, "--user-data-dir="+profile)
			for _, a := range test.expArgs {
				assert.Contains(gotArgs, a)
			}
		})
	}
}

func TestGatewayLaunchErrors(t *testing.T) {
	tests := map[string]struct {
		req    gateway.LaunchRequest
		config func(profile string) cdp.GatewayConfig
		expErr error
	}{
		"Missing profile path should fail": {
			req:    gateway.LaunchRequest{},
			config: func(string) cdp.GatewayConfig { return cdp.GatewayConfig{} },
			expErr: model.ErrNotValid,
		},

		"Unsupported browsers should fail": {
			req: gateway.LaunchRequest{Browser: "lynx"},
			config: func(string) cdp.GatewayConfig {
				return cdp.GatewayConfig{LookPath: func(string) (string, error) { return "/bin/x", nil }}
			},
			expErr: model.ErrNotValid,
		},

		"Missing browser executables should fail": {
			req: gateway.LaunchRequest{Browser: "brave"},
			config: func(string) cdp.GatewayConfig {
				return cdp.GatewayConfig{LookPath: func(string) (string, error) { return "", os.ErrNotExist }}
			},
			expErr: model.ErrNotFound,
		},

		"A browser never writing the port file should time out": {
			req: gateway.LaunchRequest{Browser: "chrome"},
			config: func(string) cdp.GatewayConfig {
				return cdp.GatewayConfig{
					ExecPath:         "/bin/browser",
					LaunchTimeout:    20 * time.Millisecond,
					PortPollInterval: time.Millisecond,
					StartBrowser:     func(string, []string) error { return nil },
				}
			},
			expErr: context.DeadlineExceeded,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			profile := t.TempDir()
			if test.req.Browser != "" {
				test.req.ProfilePath = profile
			}

			gw, err := cdp.NewGateway(test.config(profile))
			require.NoError(t, err)

			_, err = gw.Launch(context.Background(), test.req)
			assert.ErrorIs(t, err, test.expErr)
		})
	}
}

func TestGatewayExecute(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fb := newFakeBrowser(t)
	fb.respond = func(req cdpRequest) (any, string) {
		if req.Method == "Page.navigate" {
			return map[string]any{"frameId": "F1"}, ""
		}
		if req.Method == "Unknown.method" {
			return nil, "'Unknown.method' wasn't found"
		}
		return map[string]any{}, ""
	}
	gw, s := newConnectedGateway(t, fb)
	ctx := context.Background()

	require.NoError(gw.Execute(ctx, s.ID, "Page.enable", nil))
	require.NoError(gw.Execute(ctx, s.ID, "Page.navigate", map[string]any{"url": "https://example.com"}))
	err := gw.Execute(ctx, s.ID, "Unknown.method", map[string]any{})
	assert.ErrorContains(err, "wasn't found")

	reqs := fb.Requests()
	require.Len(reqs, 3)
	assert.Equal("Page.enable", reqs[0].Method)
	assert.JSONEq(`{}`, string(reqs[0].Params))
	assert.Equal("Page.navigate", reqs[1].Method)
	assert.JSONEq(`{"url":"https://example.com"}`, string(reqs[1].Params))
	assert.NotEqual(reqs[0].ID, reqs[1].ID)
}

func TestGatewayEvaluate(t *testing.T) {
	tests := map[string]struct {
		result   any
		expValue any
		expErr   string
	}{
		"A number value should be returned": {
			result:   map[string]any{"result": map[string]any{"type": "number", "value": 2}},
			expValue: float64(2),
		},

		"An object value should be returned": {
			result:   map[string]any{"result": map[string]any{"type": "object", "value": map[string]any{"clicked": "#b"}}},
			expValue: map[string]any{"clicked": "#b"},
		},

		"An undefined value should be nil": {
			result:   map[string]any{"result": map[string]any{"type": "undefined"}},
			expValue: nil,
		},

		"A script exception should be an error": {
			result: map[string]any{
				"result": map[string]any{"type": "object"},
				"exceptionDetails": map[string]any{
					"exceptionId":  1,
					"text":         "Uncaught",
					"lineNumber":   0,
					"columnNumber": 0,
					"exception":    map[string]any{"type": "object", "description": "Error: boom"},
				},
			},
			expErr: "Error: boom",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			fb := newFakeBrowser(t)
			fb.respond = func(req cdpRequest) (any, string) { return test.result, "" }
			gw, s := newConnectedGateway(t, fb)

			res, err := gw.Evaluate(context.Background(), s.ID, "1+1")
			if test.expErr != "" {
				assert.ErrorContains(err, test.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(test.expValue, res.Value)

			reqs := fb.Requests()
			require.Len(reqs, 1)
			assert.Equal("Runtime.evaluate", reqs[0].Method)
			assert.JSONEq(`{"expression":"1+1","returnByValue":true,"awaitPromise":true}`, string(reqs[0].Params))
		})
	}
}

func TestGatewayDisconnect(t *testing.T) {
	assert := assert.New(t)

	fb := newFakeBrowser(t)
	gw, s := newConnectedGateway(t, fb)
	ctx := context.Background()

	assert.NoError(gw.Disconnect(ctx, s.ID))
	assert.NoError(gw.Disconnect(ctx, s.ID))
	assert.NoError(gw.Disconnect(ctx, "unknown"))

	err := gw.Execute(ctx, s.ID, "Page.enable", nil)
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestGatewayConnectTwiceFails(t *testing.T) {
	fb := newFakeBrowser(t)
	gw, s := newConnectedGateway(t, fb)

	err := gw.Connect(context.Background(), s.ID, s.Endpoint)
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
}
