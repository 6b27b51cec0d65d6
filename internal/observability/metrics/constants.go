// Package metrics provides custom Prometheus metrics for the DiSensor service.
package metrics

import "time"

// Namespace prefixes every metric name.
const Namespace = "disensor"

// ShutdownTimeout bounds graceful shutdown of the metrics listener.
const ShutdownTimeout = 5 * time.Second

// Change stream message results.
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultMalformed = "malformed"
)
