package contextx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrNoValue = errors.New("no value in context")

type (
	contextKeyLogger  struct{}
	contextKeyTraceID struct{}
	contextKeyUserID  struct{}
)

type TraceID string

func (t TraceID) String() string { return string(t) }

type UserID string

func (u UserID) String() string { return string(u) }

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKeyLogger{}, l)
}

func LoggerFromContext(ctx context.Context) (*slog.Logger, error) {
	l, ok := ctx.Value(contextKeyLogger{}).(*slog.Logger)
	if !ok {
		return nil, fmt.Errorf("logger: %w", ErrNoValue)
	}
	return l, nil
}

// LoggerFromContextOrDefault never returns nil.
func LoggerFromContextOrDefault(ctx context.Context) *slog.Logger {
	if l, err := LoggerFromContext(ctx); err == nil {
		return l
	}
	return slog.Default()
}

func WithTraceID(ctx context.Context, traceID TraceID) context.Context {
	return context.WithValue(ctx, contextKeyTraceID{}, traceID)
}

func TraceIDFromContext(ctx context.Context) (TraceID, error) {
	traceID, ok := ctx.Value(contextKeyTraceID{}).(TraceID)
	if !ok {
		return "", fmt.Errorf("trace id: %w", ErrNoValue)
	}
	return traceID, nil
}

func WithUserID(ctx context.Context, userID UserID) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

func UserIDFromContext(ctx context.Context) (UserID, error) {
	userID, ok := ctx.Value(contextKeyUserID{}).(UserID)
	if !ok {
		return "", fmt.Errorf("user id: %w", ErrNoValue)
	}
	return userID, nil
}
