package metrics

import (
	"context"
	"time"

	"github.com/slok/rpa/internal/model"
)

// Recorder records the automation execution metrics.
type Recorder interface {
	TaskStarted(ctx context.Context)
	TaskFinished(ctx context.Context, status model.TaskStatus, duration time.Duration)
	StepExecuted(ctx context.Context, action model.StepAction, success bool, duration time.Duration)
	GatewayCall(ctx context.Context, op string, success bool, duration time.Duration)
}

// Noop is a recorder that doesn't record anything.
const Noop = noop(0)

type noop int

func (noop) TaskStarted(context.Context) {}
func (noop) TaskFinished(context.Context, model.TaskStatus, time.Duration) {}
func (noop) StepExecuted(context.Context, model.StepAction, bool, time.Duration) {}
func (noop) GatewayCall(context.Context, string, bool, time.Duration) {}
