// Package ledger keeps per-node pulse counts and derives earnings with a
// one level referral bonus.
package ledger

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/qubitrhythm/disensor/internal/referral"
)

// Default reward rates.
const (
	DefaultBaseRate  = 0.001
	DefaultBonusRate = 0.10
	DefaultPrecision = 4
)

// Rates are the tokens paid per pulse and the share of an invitee's base paid to its inviter.
type Rates struct {
	Base  float64
	Bonus float64
}

// DefaultRates returns the standard rates.
func DefaultRates() Rates {
	return Rates{Base: DefaultBaseRate, Bonus: DefaultBonusRate}
}

// Earnings of one node.
type Earnings struct {
	Base  float64 `json:"base"`
	Bonus float64 `json:"bonus"`
	Total float64 `json:"total"`
}

// Ledger counts pulses per node. Bonus is only ever paid from direct invitees,
// so cycles in the referral graph cannot make it diverge.
//
// A Ledger and its Graph are owned by a single goroutine and are not safe for concurrent use.
type Ledger struct {
	pulses map[string]int64
	graph  *referral.Graph
	rates  Rates
}

// New returns an empty ledger reading invitees from graph.
func New(graph *referral.Graph, rates Rates) *Ledger {
	if graph == nil {
		graph = referral.NewGraph()
	}
	return &Ledger{
		pulses: make(map[string]int64),
		graph:  graph,
		rates:  rates,
	}
}

// Graph returns the referral graph the ledger reads.
func (l *Ledger) Graph() *referral.Graph {
	return l.graph
}

// Rates returns the configured rates.
func (l *Ledger) Rates() Rates {
	return l.rates
}

// Record adds one pulse for id, creating the entry on first use, and returns the new count.
func (l *Ledger) Record(id string) int64 {
	l.pulses[id]++
	return l.pulses[id]
}

// Track makes ids known with zero pulses without touching existing counts.
func (l *Ledger) Track(ids ...string) {
	for _, id := range ids {
		if _, ok := l.pulses[id]; !ok && id != "" {
			l.pulses[id] = 0
		}
	}
}

// Pulses returns the pulse count of id, zero if unknown.
func (l *Ledger) Pulses(id string) int64 {
	return l.pulses[id]
}

// Reset replaces every count with a fresh snapshot. Negative counts are clamped to zero.
func (l *Ledger) Reset(counts map[string]int64) {
	clear(l.pulses)
	for id, n := range counts {
		l.pulses[id] = max(n, 0)
	}
}

// Len returns the number of known nodes.
func (l *Ledger) Len() int {
	return len(l.pulses)
}

// Nodes returns every known node id, sorted.
func (l *Ledger) Nodes() []string {
	ids := make([]string, 0, len(l.pulses))
	for id := range l.pulses {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Earnings computes base, bonus and total for id at full float precision.
func (l *Ledger) Earnings(id string) Earnings {
	base := float64(l.pulses[id]) * l.rates.Base

	var bonus float64
	l.graph.EachInvitee(id, func(invitee string) {
		bonus += float64(l.pulses[invitee]) * l.rates.Base * l.rates.Bonus
	})

	return Earnings{Base: base, Bonus: bonus, Total: base + bonus}
}

// Row is one leaderboard entry.
type Row struct {
	Rank      int     `json:"rank"`
	ID        string  `json:"id"`
	Pulses    int64   `json:"pulses"`
	Base      float64 `json:"base"`
	Bonus     float64 `json:"bonus"`
	Total     float64 `json:"total"`
	IsInviter bool    `json:"is_inviter"`
	HasBonus  bool    `json:"has_bonus"`
}

// Leaderboard recomputes earnings for every node, including inviters with no
// pulses of their own, and sorts by total descending then id ascending.
func (l *Ledger) Leaderboard() []Row {
	ids := l.Nodes()
	for _, id := range l.graph.Members() {
		if _, ok := l.pulses[id]; !ok {
			ids = append(ids, id)
		}
	}

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		e := l.Earnings(id)
		rows = append(rows, Row{
			ID:        id,
			Pulses:    l.pulses[id],
			Base:      e.Base,
			Bonus:     e.Bonus,
			Total:     e.Total,
			IsInviter: l.graph.IsInviter(id),
			HasBonus:  e.Bonus > 0,
		})
	}

	slices.SortFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// DisplayRow is a Row with amounts rendered for display.
type DisplayRow struct {
	Rank      int    `json:"rank"`
	ID        string `json:"id"`
	Pulses    int64  `json:"pulses"`
	Base      string `json:"base"`
	Bonus     string `json:"bonus"`
	Total     string `json:"total"`
	IsInviter bool   `json:"is_inviter"`
	HasBonus  bool   `json:"has_bonus"`
}

// Display rounds amounts to precision decimals. Only presented values are rounded.
func (r Row) Display(precision int) DisplayRow {
	return DisplayRow{
		Rank:      r.Rank,
		ID:        r.ID,
		Pulses:    r.Pulses,
		Base:      FormatAmount(r.Base, precision),
		Bonus:     FormatAmount(r.Bonus, precision),
		Total:     FormatAmount(r.Total, precision),
		IsInviter: r.IsInviter,
		HasBonus:  r.HasBonus,
	}
}

// DisplayRows renders a whole leaderboard.
func DisplayRows(rows []Row, precision int) []DisplayRow {
	out := make([]DisplayRow, len(rows))
	for i, r := range rows {
		out[i] = r.Display(precision)
	}
	return out
}

// FormatAmount renders v with a fixed number of decimals.
func FormatAmount(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}
