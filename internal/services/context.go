package services

import "context"

type contextKey string

const (
	jobIDKey         contextKey = "job_id"
	stageKey         contextKey = "stage"
	correlationIDKey contextKey = "correlation_id"
)

// WithJobID annotates context with the comparison job identifier.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the comparison job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(jobIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithCorrelationID annotates context with a correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
