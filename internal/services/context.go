package services

import "context"

type contextKey int

const (
	taskIDKey contextKey = iota
	sessionIDKey
	stageKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithTaskID annotates ctx with the task being processed. Blank ids leave
// ctx unchanged, as do blank values for the other helpers.
func WithTaskID(ctx context.Context, id string) context.Context { return withValue(ctx, taskIDKey, id) }

func TaskIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, taskIDKey) }

// WithSessionID annotates ctx with the submitting session.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, sessionIDKey) }

// WithStage annotates ctx with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, stageKey) }

// WithRequestID annotates ctx with the HTTP request id used for correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, requestIDKey) }
