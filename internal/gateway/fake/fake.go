package fake

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
)

const presenceCheckPrefix = "!!document.querySelector("

// GatewayConfig is the configuration for the fake gateway.
type GatewayConfig struct {
	// Selectors are the CSS selectors that exist in the simulated page.
	Selectors []string
	// AllSelectorsPresent makes every selector presence check succeed.
	AllSelectorsPresent bool
	// EvalFunc overrides the evaluation of scripts that are not selector presence checks.
	EvalFunc func(expression string) (any, error)
	// Latency is applied to every call, it honors the context cancellation.
	Latency time.Duration

	LaunchErr   error
	ConnectErr  error
	ExecuteErrs map[string]error
	Logger      log.Logger
}

func (c *GatewayConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "gateway.Fake"})

	return nil
}

// CallOp is the gateway operation of a recorded call.
type CallOp string

const (
	CallOpLaunch     CallOp = "launch"
	CallOpConnect    CallOp = "connect"
	CallOpExecute    CallOp = "execute"
	CallOpEvaluate   CallOp = "evaluate"
	CallOpDisconnect CallOp = "disconnect"
)

// Call is a recorded gateway call.
type Call struct {
	Op         CallOp
	SessionID  string
	Method     string
	Params     map[string]any
	Expression string
}

type session struct {
	endpoint  string
	connected bool
}

// Gateway is a fake implementation of the gateway.Gateway interface.
// It simulates browser sessions in memory without launching any browser.
type Gateway struct {
	cfg       GatewayConfig
	selectors map[string]bool
	sessions  map[string]*session
	calls     []Call
	mu        sync.Mutex
	logger    log.Logger
}

// NewGateway creates a new fake gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	selectors := make(map[string]bool, len(cfg.Selectors))
	for _, s := range cfg.Selectors {
		selectors[s] = true
	}

	return &Gateway{
		cfg:       cfg,
		selectors: selectors,
		sessions:  map[string]*session{},
		logger:    cfg.Logger,
	}, nil
}

// Launch simulates a browser launch.
func (g *Gateway) Launch(ctx context.Context, req gateway.LaunchRequest) (*gateway.Session, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: CallOpLaunch})
	if g.cfg.LaunchErr != nil {
		return nil, g.cfg.LaunchErr
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	endpoint := "ws://fake/devtools/page/" + id
	g.sessions[id] = &session{endpoint: endpoint}
	g.logger.Debugf("Launched fake %s browser for profile %s: %s", req.Browser, req.ProfilePath, id)

	return &gateway.Session{ID: id, Endpoint: endpoint}, nil
}

// Connect simulates the protocol connection of a launched session.
func (g *Gateway) Connect(ctx context.Context, sessionID, endpoint string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: CallOpConnect, SessionID: sessionID})
	if g.cfg.ConnectErr != nil {
		return g.cfg.ConnectErr
	}

	s, ok := g.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
	}
	if s.endpoint != endpoint {
		return fmt.Errorf("unknown endpoint %q for session %s: %w", endpoint, sessionID, model.ErrNotValid)
	}
	s.connected = true

	return nil
}

// Execute records a protocol command.
func (g *Gateway) Execute(ctx context.Context, sessionID, method string, params map[string]any) error {
	if err := g.wait(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: CallOpExecute, SessionID: sessionID, Method: method, Params: params})
	if err := g.checkConnected(sessionID); err != nil {
		return err
	}

	return g.cfg.ExecuteErrs[method]
}

// Evaluate resolves selector presence checks against the configured selectors.
// Any other script is resolved with the configured evaluation func, or nil.
func (g *Gateway) Evaluate(ctx context.Context, sessionID, expression string) (*gateway.EvalResult, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: CallOpEvaluate, SessionID: sessionID, Expression: expression})
	if err := g.checkConnected(sessionID); err != nil {
		return nil, err
	}

	if sel, ok := presenceCheckSelector(expression); ok {
		return &gateway.EvalResult{Value: g.cfg.AllSelectorsPresent || g.selectors[sel]}, nil
	}

	if g.cfg.EvalFunc == nil {
		return &gateway.EvalResult{}, nil
	}

	v, err := g.cfg.EvalFunc(expression)
	if err != nil {
		return nil, err
	}

	return &gateway.EvalResult{Value: v}, nil
}

// Disconnect closes a simulated connection, unknown or closed sessions are ignored.
func (g *Gateway) Disconnect(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: CallOpDisconnect, SessionID: sessionID})
	if s, ok := g.sessions[sessionID]; ok {
		s.connected = false
	}

	return nil
}

// Calls returns the recorded calls in order.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	calls := make([]Call, len(g.calls))
	copy(calls, g.calls)

	return calls
}

// ExecutedMethods returns the protocol methods sent with Execute in order.
func (g *Gateway) ExecutedMethods() []string {
	methods := []string{}
	for _, c := range g.Calls() {
		if c.Op == CallOpExecute {
			methods = append(methods, c.Method)
		}
	}

	return methods
}

func (g *Gateway) checkConnected(sessionID string) error {
	s, ok := g.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
	}
	if !s.connected {
		return fmt.Errorf("session %s is not connected", sessionID)
	}

	return nil
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.cfg.Latency <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(g.cfg.Latency)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// presenceCheckSelector returns the selector of a `!!document.querySelector("...")` script.
func presenceCheckSelector(expression string) (string, bool) {
	expression = strings.TrimSpace(expression)
	if !strings.HasPrefix(expression, presenceCheckPrefix) || !strings.HasSuffix(expression, ")") {
		return "", false
	}

	raw := strings.TrimSuffix(strings.TrimPrefix(expression, presenceCheckPrefix), ")")
	var sel string
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return "", false
	}

	return sel, true
}
