package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slok/rpa/internal/model"
)

const namespace = "rpa"

// Recorder is the Prometheus implementation of metrics.Recorder.
type Recorder struct {
	tasksStarted    prometheus.Counter
	tasksRunning    prometheus.Gauge
	tasksFinished   *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	stepsTotal      *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewRecorder registers the metrics on the registerer, prometheus.DefaultRegisterer when nil.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		tasksStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Number of automation tasks started.",
		}),
		tasksRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Number of automation tasks being executed.",
		}),
		tasksFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Number of automation tasks finished by final status.",
		}, []string{"status"}),
		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of the automation tasks.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"}),
		stepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Number of template steps executed by action and result.",
		}, []string{"action", "result"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of the template steps without the pacing delay.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		gatewayCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Number of browser session gateway calls by operation and result.",
		}, []string{"op", "result"}),
		gatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Duration of the browser session gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (r *Recorder) TaskStarted(ctx context.Context) {
	r.tasksStarted.Inc()
	r.tasksRunning.Inc()
}

func (r *Recorder) TaskFinished(ctx context.Context, status model.TaskStatus, duration time.Duration) {
	r.tasksRunning.Dec()
	r.tasksFinished.WithLabelValues(string(status)).Inc()
	r.taskDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

func (r *Recorder) StepExecuted(ctx context.Context, action model.StepAction, success bool, duration time.Duration) {
	r.stepsTotal.WithLabelValues(string(action), result(success)).Inc()
	r.stepDuration.WithLabelValues(string(action)).Observe(duration.Seconds())
}

func (r *Recorder) GatewayCall(ctx context.Context, op string, success bool, duration time.Duration) {
	r.gatewayCalls.WithLabelValues(op, result(success)).Inc()
	r.gatewayDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
