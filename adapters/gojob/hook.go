package gojob

import (
	"context"

	"github.com/goliatone/go-webhooks/core"

	"github.com/goliatone/go-job/queue/worker"
)

const (
	MetricJobsTotal      = "webhooks.jobs.total"
	MetricJobDurationMS  = "webhooks.job.duration_ms"
	jobStatusStarted     = "started"
	jobStatusSucceeded   = "succeeded"
	jobStatusFailed      = "failed"
	jobStatusRetry       = "retry"
	unknownJobIdentifier = "unknown"
)

// WorkerHookAdapter reports go-job worker lifecycle events as webhook job
// metrics and log lines.
type WorkerHookAdapter struct {
	logger  core.Logger
	metrics core.MetricsRecorder
}

func NewWorkerHookAdapter(logger core.Logger, metrics core.MetricsRecorder) *WorkerHookAdapter {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &WorkerHookAdapter{logger: logger, metrics: metrics}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	a.record(ctx, event, jobStatusStarted)
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	a.record(ctx, event, jobStatusSucceeded)
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	a.record(ctx, event, jobStatusFailed)
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	a.record(ctx, event, jobStatusRetry)
}

func (a *WorkerHookAdapter) record(ctx context.Context, event worker.Event, status string) {
	if a == nil {
		return
	}
	jobID := eventJobID(event)
	tags := map[string]string{"job_id": jobID, "status": status}
	a.metrics.IncCounter(ctx, MetricJobsTotal, 1, tags)
	if status != jobStatusStarted && event.Duration > 0 {
		a.metrics.ObserveHistogram(ctx, MetricJobDurationMS, float64(event.Duration.Milliseconds()), tags)
	}

	if a.logger == nil {
		return
	}
	fields := []any{"job_id", jobID, "attempt", event.Attempt, "status", status}
	switch status {
	case jobStatusFailed:
		a.logger.Error("webhook job failed", append(fields, "error", event.Err)...)
	case jobStatusRetry:
		a.logger.Warn("webhook job retry scheduled", append(fields, "delay", event.Delay.String(), "error", event.Err)...)
	default:
		a.logger.Debug("webhook job "+status, fields...)
	}
}

func eventJobID(event worker.Event) string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message == nil || message.JobID == "" {
		return unknownJobIdentifier
	}
	return message.JobID
}
