package gateway

import (
	"context"
)

// LaunchRequest is the information required to launch a browser profile.
type LaunchRequest struct {
	ProfilePath string
	Browser     string
	// URL is the optional first page to open.
	URL string
}

// Session is a launched browser ready to be connected.
type Session struct {
	ID       string
	Endpoint string
}

// EvalResult is the JSON compatible value returned by a script evaluation.
type EvalResult struct {
	Value any
}

//go:generate mockery --case underscore --output gatewaymock --outpkg gatewaymock --name Gateway --structname MockGateway

// Gateway is the remote browser control boundary used by the execution engine.
type Gateway interface {
	// Launch starts the browser for a profile with remote debugging enabled.
	Launch(ctx context.Context, req LaunchRequest) (*Session, error)
	// Connect opens the protocol connection of a launched session.
	Connect(ctx context.Context, sessionID, endpoint string) error
	// Execute sends a protocol command ignoring its result.
	Execute(ctx context.Context, sessionID, method string, params map[string]any) error
	// Evaluate evaluates a script in the session page and returns its value.
	// Script exceptions are returned as errors.
	Evaluate(ctx context.Context, sessionID, expression string) (*EvalResult, error)
	// Disconnect closes the protocol connection. It's idempotent.
	Disconnect(ctx context.Context, sessionID string) error
}
