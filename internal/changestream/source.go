package changestream

import (
	"context"

	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/logging"
	"github.com/qubitrhythm/disensor/internal/observability/metrics"
)

var log = logging.ForService("changestream")

// Sink accepts decoded changes. It must not block; *live.Coordinator satisfies it.
type Sink interface {
	Submit(change events.Change)
}

// Source delivers changes to a Sink until its context is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// Recorder counts messages per source and result. *metrics.ChangeStreamMetrics satisfies it.
type Recorder interface {
	Message(source, result string)
}

type noopRecorder struct{}

func (noopRecorder) Message(string, string) {}

// handle decodes payload and submits it, returning the metrics result.
func handle(source string, sink Sink, rec Recorder, payload []byte, table string) string {
	change, err := Decode(payload, table)
	result := metrics.ResultApplied
	switch {
	case err == nil:
		sink.Submit(change)
	case errors.Is(err, ErrIgnored):
		result = metrics.ResultIgnored
		log.Debug("change ignored", "source", source, "reason", err)
	default:
		result = metrics.ResultMalformed
		log.Warn("dropping undecodable change", "source", source, "table", table, "error", err)
	}
	rec.Message(source, result)
	return result
}
