// Package changestream turns row level change notifications from the backend
// into events for the live coordinator.
//
// Every source carries the same JSON envelope:
//
//	{"id":"...","type":"INSERT","table":"readings","record":{...}}
//
// Delivery is at least once; the coordinator deduplicates on the change id.
package changestream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/qubitrhythm/disensor/internal/datastore"
	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/events"
)

var (
	// ErrUnknownTable is returned for changes of tables nothing consumes.
	ErrUnknownTable = errors.NewStd("unknown change table")
	// ErrMalformedPayload is returned when a message is not a valid envelope.
	ErrMalformedPayload = errors.NewStd("malformed change payload")
	// ErrIgnored is returned for well formed changes that carry no work, such as reading updates.
	ErrIgnored = errors.NewStd("change ignored")
)

// Envelope is the wire form of one change.
type Envelope struct {
	ID     string          `json:"id"`
	Type   events.Op       `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

type readingRecord struct {
	ID          json.Number `json:"id"`
	NodeID      string      `json:"node_id"`
	Location    string      `json:"location"`
	PressureHpa *float64    `json:"pressure_hpa"`
	DecibelDB   *float64    `json:"decibel_db"`
	Timestamp   string      `json:"timestamp"`
}

type nodeRecord struct {
	ID         string  `json:"id"`
	ReferredBy *string `json:"referred_by"`
}

// Decode parses one envelope. table, when not empty, is used if the
// envelope leaves its own table unset (MQTT sources know it from the topic).
func Decode(payload []byte, table string) (events.Change, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Table == "" {
		env.Table = table
	}
	env.Type = events.Op(strings.ToUpper(string(env.Type)))
	if len(env.Record) == 0 || bytes.Equal(env.Record, []byte("null")) {
		return nil, fmt.Errorf("%w: record missing", ErrMalformedPayload)
	}

	switch env.Table {
	case events.TableReadings:
		return decodeReading(env)
	case events.TableNodes:
		return decodeNode(env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, env.Table)
	}
}

func decodeReading(env Envelope) (events.Change, error) {
	if env.Type != events.OpInsert {
		return nil, fmt.Errorf("%w: %s on readings", ErrIgnored, env.Type)
	}

	var rec readingRecord
	dec := json.NewDecoder(bytes.NewReader(env.Record))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: reading record: %v", ErrMalformedPayload, err)
	}
	if rec.NodeID == "" {
		return nil, fmt.Errorf("%w: reading without node_id", ErrMalformedPayload)
	}

	ev := events.ReadingInserted{
		ID:       env.ID,
		NodeID:   rec.NodeID,
		Location: rec.Location,
	}
	if rec.ID != "" {
		id, err := strconv.ParseUint(rec.ID.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: reading id %q", ErrMalformedPayload, rec.ID)
		}
		ev.ReadingID = id
		if ev.ID == "" {
			ev.ID = strconv.FormatUint(id, 10)
		}
	}
	if rec.DecibelDB != nil {
		ev.DecibelDB = *rec.DecibelDB
	}
	if rec.PressureHpa != nil {
		ev.PressureHpa = *rec.PressureHpa
	}
	if rec.Timestamp != "" {
		ts, err := datastore.ParseTimestamp(rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		ev.Timestamp = ts
	}
	return ev, nil
}

func decodeNode(env Envelope) (events.Change, error) {
	if env.Type != events.OpInsert && env.Type != events.OpUpdate {
		return nil, fmt.Errorf("%w: %s on nodes", ErrIgnored, env.Type)
	}

	var rec nodeRecord
	if err := json.Unmarshal(env.Record, &rec); err != nil {
		return nil, fmt.Errorf("%w: node record: %v", ErrMalformedPayload, err)
	}
	return events.NodeChanged{
		ID:         env.ID,
		NodeID:     rec.ID,
		ReferredBy: rec.ReferredBy,
		Op:         env.Type,
	}, nil
}
