package services

import (
	"context"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("bom-analytics-helper/services")

// PersistentContext keeps values (trace, request id) but drops cancellation,
// so work started by a request survives the client going away.
func PersistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
