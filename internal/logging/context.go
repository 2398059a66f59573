package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type namespaceCtxKey struct{}
type requestCtxKey struct{}

// WithNamespace stores the resolved namespace string in context for log
// correlation.
func WithNamespace(ctx context.Context, ns string) context.Context {
	if ns == "" {
		return ctx
	}
	return context.WithValue(ctx, namespaceCtxKey{}, ns)
}

// NamespaceFromContext extracts the namespace from context.
func NamespaceFromContext(ctx context.Context) string {
	if ns, ok := ctx.Value(namespaceCtxKey{}).(string); ok {
		return ns
	}
	return ""
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// ContextFields extracts correlation data from context: active trace span,
// namespace, and request ID.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if ns := NamespaceFromContext(ctx); ns != "" {
		fields = append(fields, zap.String("namespace", ns))
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	return fields
}
