package telemetry

import (
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics begins collecting Go runtime metrics (GC, heap,
// goroutines) into the global MeterProvider.
func StartRuntimeMetrics() error {
	return runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second))
}
