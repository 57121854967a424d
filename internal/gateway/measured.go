package gateway

import (
	"context"
	"time"

	"github.com/slok/rpa/internal/metrics"
)

type measured struct {
	next Gateway
	rec  metrics.Recorder
	now  func() time.Time
}

// NewMeasured wraps a gateway recording the duration and result of every call.
func NewMeasured(next Gateway, rec metrics.Recorder) Gateway {
	if rec == nil {
		rec = metrics.Noop
	}
	return measured{next: next, rec: rec, now: time.Now}
}

func (m measured) observe(ctx context.Context, op string, start time.Time, err error) {
	m.rec.GatewayCall(ctx, op, err == nil, m.now().Sub(start))
}

func (m measured) Launch(ctx context.Context, req LaunchRequest) (s *Session, err error) {
	defer func(start time.Time) { m.observe(ctx, "launch", start, err) }(m.now())
	return m.next.Launch(ctx, req)
}

func (m measured) Connect(ctx context.Context, sessionID, endpoint string) (err error) {
	defer func(start time.Time) { m.observe(ctx, "connect", start, err) }(m.now())
	return m.next.Connect(ctx, sessionID, endpoint)
}

func (m measured) Execute(ctx context.Context, sessionID, method string, params map[string]any) (err error) {
	defer func(start time.Time) { m.observe(ctx, "execute", start, err) }(m.now())
	return m.next.Execute(ctx, sessionID, method, params)
}

func (m measured) Evaluate(ctx context.Context, sessionID, expression string) (r *EvalResult, err error) {
	defer func(start time.Time) { m.observe(ctx, "evaluate", start, err) }(m.now())
	return m.next.Evaluate(ctx, sessionID, expression)
}

func (m measured) Disconnect(ctx context.Context, sessionID string) (err error) {
	defer func(start time.Time) { m.observe(ctx, "disconnect", start, err) }(m.now())
	return m.next.Disconnect(ctx, sessionID)
}
