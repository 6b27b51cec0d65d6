package observability

import "github.com/qubitrhythm/disensor/internal/logging"

// Package-level cached logger instance.
var log = logging.ForService("telemetry")
