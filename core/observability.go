package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	s.recordCounter(ctx, "webhooks."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "webhooks."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		s.logError(ctx, operation+" failed", contextFields)
		return
	}
	s.logInfo(ctx, operation+" succeeded", contextFields)
}

// observeDelivery logs one line per outbound attempt and feeds the
// delivery counters.
func (s *Service) observeDelivery(
	ctx context.Context,
	operation string,
	webhook Webhook,
	delivery Delivery,
	outcome Outcome,
	err error,
) {
	if s == nil {
		return
	}
	status := deliveryStatus(outcome, err)
	fields := map[string]any{
		"operation":   operation,
		"webhook_id":  webhook.ID,
		"webhook_url": webhook.URL,
		"delivery_id": delivery.ID,
		"token":       delivery.Token,
		"status_code": outcome.StatusCode,
		"duration_ms": outcome.Duration.Milliseconds(),
		"status":      status,
	}
	if len(delivery.RequestHeader) > 0 {
		fields["request_headers"] = RedactHeaders(delivery.RequestHeader)
	}
	if outcome.Err != nil {
		fields["transport_error"] = outcome.TransportError()
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": normalizeOperation(operation),
		"status":    status,
	}
	s.recordCounter(ctx, MetricDeliveriesTotal, 1, tags)
	s.recordHistogram(ctx, MetricDeliveryDurationMS, float64(outcome.Duration.Milliseconds()), tags)

	switch status {
	case "success":
		s.logInfo(ctx, "webhook delivered", fields)
	case "record_error":
		s.logError(ctx, "webhook delivery not recorded", fields)
	default:
		s.logWarn(ctx, "webhook delivery failed", fields)
	}
}

func deliveryStatus(outcome Outcome, err error) string {
	switch {
	case err != nil:
		return "record_error"
	case outcome.Err != nil:
		return "transport_error"
	case outcome.StatusCode == 200:
		return "success"
	default:
		return "http_error"
	}
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "warn", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
