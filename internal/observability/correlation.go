package observability

import (
	"context"
	"strings"
)

type correlationKey struct{}

// WithCorrelation returns ctx carrying the request correlation identifier.
func WithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationFromContext returns the identifier stored by WithCorrelation.
func CorrelationFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
