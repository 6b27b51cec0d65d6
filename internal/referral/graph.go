// Package referral indexes who invited whom.
//
// The graph is rebuilt wholesale from the node directory every time a node
// changes; it never applies individual edge diffs.
package referral

import (
	"slices"
)

// Edge records that Invitee was referred by Inviter. A nil Inviter marks a root node.
type Edge struct {
	Invitee string
	Inviter *string
}

// RebuildStats summarizes what Rebuild did with its input.
type RebuildStats struct {
	Edges       int // edges indexed
	Roots       int // edges without an inviter
	SelfLoops   int // rejected self referrals
	MultiParent int // ignored second inviters for an already indexed invitee
	Invalid     int // edges with an empty id
}

// Graph is a forward (invitee to inviter) and inverse (inviter to invitees) index.
// Every invitee in the inverse index is a key of the forward index pointing
// back at the same inviter. A Graph is not safe for concurrent use.
type Graph struct {
	inviterOf map[string]string
	invitees  map[string]map[string]struct{}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		inviterOf: make(map[string]string),
		invitees:  make(map[string]map[string]struct{}),
	}
}

// Rebuild clears the graph and indexes edges. Self referrals are rejected and
// the first inviter seen for an invitee wins. Rebuilding twice from the same
// edges yields the same graph.
func (g *Graph) Rebuild(edges []Edge) RebuildStats {
	clear(g.inviterOf)
	clear(g.invitees)

	var stats RebuildStats
	for _, e := range edges {
		if e.Inviter == nil {
			stats.Roots++
			continue
		}
		inviter := *e.Inviter
		switch {
		case e.Invitee == "" || inviter == "":
			stats.Invalid++
			continue
		case e.Invitee == inviter:
			stats.SelfLoops++
			continue
		}
		if _, seen := g.inviterOf[e.Invitee]; seen {
			stats.MultiParent++
			continue
		}

		g.inviterOf[e.Invitee] = inviter
		set, ok := g.invitees[inviter]
		if !ok {
			set = make(map[string]struct{})
			g.invitees[inviter] = set
		}
		set[e.Invitee] = struct{}{}
		stats.Edges++
	}
	return stats
}

// Invitees returns the direct invitees of id, sorted. It is empty, not nil, when there are none.
func (g *Graph) Invitees(id string) []string {
	set := g.invitees[id]
	out := make([]string, 0, len(set))
	for invitee := range set {
		out = append(out, invitee)
	}
	slices.Sort(out)
	return out
}

// EachInvitee calls fn for every direct invitee of id in no particular order.
func (g *Graph) EachInvitee(id string, fn func(invitee string)) {
	for invitee := range g.invitees[id] {
		fn(invitee)
	}
}

// InviteeCount returns the out-degree of id.
func (g *Graph) InviteeCount(id string) int {
	return len(g.invitees[id])
}

// Inviter returns who referred id.
func (g *Graph) Inviter(id string) (string, bool) {
	inviter, ok := g.inviterOf[id]
	return inviter, ok
}

// IsInviter reports whether id has at least one invitee.
func (g *Graph) IsInviter(id string) bool {
	return len(g.invitees[id]) > 0
}

// Len returns the number of indexed edges.
func (g *Graph) Len() int {
	return len(g.inviterOf)
}

// Members returns every id that appears in the graph as invitee or inviter, sorted.
func (g *Graph) Members() []string {
	seen := make(map[string]struct{}, len(g.inviterOf)*2)
	for invitee, inviter := range g.inviterOf {
		seen[invitee] = struct{}{}
		seen[inviter] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
