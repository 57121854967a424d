package cdp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"
	"github.com/oklog/ulid/v2"

	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
)

// GatewayConfig is the configuration for the CDP gateway.
type GatewayConfig struct {
	// ExecPath overrides the browser executable discovery.
	ExecPath string
	// LaunchTimeout is the max time waiting for the browser debugging port.
	LaunchTimeout    time.Duration
	PortPollInterval time.Duration
	// TargetRetries is the number of attempts resolving the page target.
	TargetRetries       int
	TargetRetryInterval time.Duration
	HandshakeTimeout    time.Duration
	HTTPClient          *http.Client
	LookPath            func(file string) (string, error)
	StartBrowser        func(path string, args []string) error
	RunningAsRoot       *bool
	Logger              log.Logger
}

func (c *GatewayConfig) defaults() error {
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = 15 * time.Second
	}

	if c.PortPollInterval <= 0 {
		c.PortPollInterval = 200 * time.Millisecond
	}

	if c.TargetRetries <= 0 {
		c.TargetRetries = 10
	}

	if c.TargetRetryInterval <= 0 {
		c.TargetRetryInterval = time.Second
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 45 * time.Second
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}

	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}

	if c.StartBrowser == nil {
		c.StartBrowser = startBrowser
	}

	if c.RunningAsRoot == nil {
		root := os.Getuid() == 0
		c.RunningAsRoot = &root
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "gateway.CDP"})

	return nil
}

type session struct {
	endpoint string
	conn     *conn
}

// Gateway is the Chrome DevTools Protocol implementation of gateway.Gateway.
type Gateway struct {
	cfg      GatewayConfig
	sessions map[string]*session
	mu       sync.Mutex
	logger   log.Logger
}

// NewGateway creates a new CDP gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Gateway{
		cfg:      cfg,
		sessions: map[string]*session{},
		logger:   cfg.Logger,
	}, nil
}

// Launch starts the browser with the profile data dir and a random debugging port,
// then resolves the websocket endpoint of its first page.
func (g *Gateway) Launch(ctx context.Context, req gateway.LaunchRequest) (*gateway.Session, error) {
	if req.ProfilePath == "" {
		return nil, fmt.Errorf("profile path is required: %w", model.ErrNotValid)
	}

	execPath := g.cfg.ExecPath
	if execPath == "" {
		p, err := findExecPath(req.Browser, g.cfg.LookPath)
		if err != nil {
			return nil, err
		}
		execPath = p
	}

	if err := removeStalePortFile(req.ProfilePath); err != nil {
		return nil, fmt.Errorf("could not remove stale debugging port file: %w", err)
	}

	args := launchArgs(req.ProfilePath, req.URL, *g.cfg.RunningAsRoot)
	g.logger.Debugf("Launching %s %v", execPath, args)
	if err := g.cfg.StartBrowser(execPath, args); err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	port, err := waitDebuggingPort(ctx, req.ProfilePath, g.cfg.LaunchTimeout, g.cfg.PortPollInterval)
	if err != nil {
		return nil, err
	}

	endpoint, err := resolvePageTarget(ctx, g.cfg.HTTPClient, port, g.cfg.TargetRetries, g.cfg.TargetRetryInterval)
	if err != nil {
		return nil, err
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	g.mu.Lock()
	g.sessions[id] = &session{endpoint: endpoint}
	g.mu.Unlock()

	g.logger.Infof("Browser launched with debugging port %d: %s", port, endpoint)

	return &gateway.Session{ID: id, Endpoint: endpoint}, nil
}

// Connect opens the websocket of a session.
func (g *Gateway) Connect(ctx context.Context, sessionID, endpoint string) error {
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	if ok && s.conn != nil {
		g.mu.Unlock()
		return fmt.Errorf("session %s is already connected: %w", sessionID, model.ErrAlreadyExists)
	}
	g.mu.Unlock()

	c, err := dial(ctx, endpoint, g.cfg.HandshakeTimeout, g.logger.WithValues(log.Kv{"session": sessionID}))
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[sessionID]; ok && s.conn != nil {
		_ = c.Close()
		return fmt.Errorf("session %s is already connected: %w", sessionID, model.ErrAlreadyExists)
	}
	g.sessions[sessionID] = &session{endpoint: endpoint, conn: c}

	return nil
}

// Execute sends a command with untyped params.
func (g *Gateway) Execute(ctx context.Context, sessionID, method string, params map[string]any) error {
	c, err := g.conn(sessionID)
	if err != nil {
		return err
	}

	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("could not encode %s params: %w", method, err)
	}
	raw := easyjson.RawMessage(data)

	return c.Execute(ctx, method, &raw, nil)
}

// Evaluate runs `Runtime.evaluate` awaiting promises and returning the value by value.
func (g *Gateway) Evaluate(ctx context.Context, sessionID, expression string) (*gateway.EvalResult, error) {
	c, err := g.conn(sessionID)
	if err != nil {
		return nil, err
	}

	obj, exc, err := runtime.Evaluate(expression).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(cdp.WithExecutor(ctx, c))
	if err != nil {
		return nil, err
	}

	if exc != nil {
		msg := exc.Text
		if exc.Exception != nil && exc.Exception.Description != "" {
			msg = exc.Exception.Description
		}
		return nil, fmt.Errorf("script exception: %s", msg)
	}

	res := &gateway.EvalResult{}
	if obj != nil && len(obj.Value) > 0 {
		if err := json.Unmarshal(obj.Value, &res.Value); err != nil {
			return nil, fmt.Errorf("could not decode evaluation value: %w", err)
		}
	}

	return res, nil
}

// Disconnect closes the websocket of a session and forgets it. The browser is kept running.
func (g *Gateway) Disconnect(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	delete(g.sessions, sessionID)
	g.mu.Unlock()

	if !ok || s.conn == nil {
		return nil
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("could not close session %s: %w", sessionID, err)
	}

	return nil
}

func (g *Gateway) conn(sessionID string) (*conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
	}
	if s.conn == nil {
		return nil, fmt.Errorf("session %s is not connected", sessionID)
	}

	return s.conn, nil
}
