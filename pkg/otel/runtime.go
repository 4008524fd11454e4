package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics starts runtime (memory, GC) and host (CPU, network)
// metrics collection on the configured meter provider.
func StartRuntimeMetrics(readMemStatsInterval time.Duration) error {
	if readMemStatsInterval <= 0 {
		readMemStatsInterval = 30 * time.Second
	}

	if err := runtime.Start(
		runtime.WithMeterProvider(GetMeterProvider()),
		runtime.WithMinimumReadMemStatsInterval(readMemStatsInterval),
	); err != nil {
		return err
	}

	return hostmetrics.Start(hostmetrics.WithMeterProvider(GetMeterProvider()))
}
