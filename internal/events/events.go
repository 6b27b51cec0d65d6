// Package events defines the change events delivered by the backend change
// stream and the named triggers that cause the dashboard view to be recomputed.
package events

import (
	"time"
)

// Op is the row operation a change was produced by.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
)

// Change is a single row level change. It is one of ReadingInserted or NodeChanged.
type Change interface {
	// ChangeID identifies the delivery for deduplication, empty when the source has none.
	ChangeID() string
	// Table is the backend table the change came from.
	Table() string
	isChange()
}

// ReadingInserted is emitted for every new reading row.
type ReadingInserted struct {
	ID          string
	ReadingID   uint64
	NodeID      string
	DecibelDB   float64
	PressureHpa float64
	Location    string
	Timestamp   time.Time
}

func (e ReadingInserted) ChangeID() string { return e.ID }
func (ReadingInserted) Table() string      { return TableReadings }
func (ReadingInserted) isChange()          {}

// NodeChanged is emitted when a node row is inserted or updated. The payload
// is informational only; the node directory is always re-queried.
type NodeChanged struct {
	ID         string
	NodeID     string
	ReferredBy *string
	Op         Op
}

func (e NodeChanged) ChangeID() string { return e.ID }
func (NodeChanged) Table() string      { return TableNodes }
func (NodeChanged) isChange()          {}

// Backend table names.
const (
	TableReadings = "readings"
	TableNodes    = "nodes"
)

// Trigger names why a view was recomputed.
type Trigger string

const (
	// TriggerSnapshotLoaded follows the initial full load: ledger counts reset,
	// graph rebuilt, stats seeded, then one full render.
	TriggerSnapshotLoaded Trigger = "snapshot_loaded"
	// TriggerReadingRecorded follows a reading insert: one pulse recorded, every
	// node's earnings recomputed because any inviter's bonus may have moved, then render.
	TriggerReadingRecorded Trigger = "reading_recorded"
	// TriggerGraphRebuilt follows a node change: node directory re-queried, graph
	// rebuilt, every node's earnings recomputed, then render. It completes before
	// any later reading is applied.
	TriggerGraphRebuilt Trigger = "graph_rebuilt"
)

// TriggerFor returns the trigger a successfully applied change produces.
func TriggerFor(c Change) Trigger {
	switch c.(type) {
	case ReadingInserted, *ReadingInserted:
		return TriggerReadingRecorded
	default:
		return TriggerGraphRebuilt
	}
}
