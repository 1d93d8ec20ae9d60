package requestctx

import (
	"context"

	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/domain"
)

type contextKey string

const (
	loggerContextKey    contextKey = "github.com/linguadesk/translator/internal/platform/requestctx/logger"
	traceContextKey     contextKey = "github.com/linguadesk/translator/internal/platform/requestctx/trace"
	principalContextKey contextKey = "github.com/linguadesk/translator/internal/platform/requestctx/principal"
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores the trace metadata on the context.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceContextKey, info)
}

// Trace retrieves the trace metadata from context when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceContextKey).(TraceInfo)
	return info, ok
}

// TraceID extracts the trace identifier from context when present.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithPrincipal records the signed-in user for the remainder of the request.
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey, principal)
}

// Principal returns the signed-in user, if any.
func Principal(ctx context.Context) (domain.Principal, bool) {
	if ctx == nil {
		return domain.Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey).(domain.Principal)
	if !ok || principal.IsZero() {
		return domain.Principal{}, false
	}
	return principal, true
}
