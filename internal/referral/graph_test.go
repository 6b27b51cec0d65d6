package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func sampleEdges() []Edge {
	return []Edge{
		{Invitee: "alice", Inviter: nil},
		{Invitee: "bob", Inviter: ptr("alice")},
		{Invitee: "carol", Inviter: ptr("alice")},
		{Invitee: "dave", Inviter: ptr("bob")},
	}
}

func TestRebuildIndexesBothDirections(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	stats := g.Rebuild(sampleEdges())

	assert.Equal(t, RebuildStats{Edges: 3, Roots: 1}, stats)
	assert.Equal(t, []string{"bob", "carol"}, g.Invitees("alice"))
	assert.Equal(t, []string{"dave"}, g.Invitees("bob"))
	assert.Equal(t, 2, g.InviteeCount("alice"))

	inviter, ok := g.Inviter("dave")
	require.True(t, ok)
	assert.Equal(t, "bob", inviter)

	_, ok = g.Inviter("alice")
	assert.False(t, ok)

	assert.True(t, g.IsInviter("alice"))
	assert.False(t, g.IsInviter("carol"))
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, g.Members())
}

func TestInviteesOfUnknownIsEmpty(t *testing.T) {
	t.Parallel()

	got := NewGraph().Invitees("nobody")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRebuildIsIdempotent(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.Rebuild(sampleEdges())
	first := snapshot(g)

	g.Rebuild(sampleEdges())
	assert.Equal(t, first, snapshot(g))
}

func TestRebuildReplacesPreviousState(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.Rebuild(sampleEdges())
	g.Rebuild([]Edge{{Invitee: "erin", Inviter: ptr("frank")}})

	assert.Empty(t, g.Invitees("alice"))
	assert.Equal(t, []string{"erin"}, g.Invitees("frank"))
	assert.Equal(t, 1, g.Len())
}

func TestRebuildRejectsInvalidEdges(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	stats := g.Rebuild([]Edge{
		{Invitee: "zed", Inviter: ptr("zed")},
		{Invitee: "bob", Inviter: ptr("alice")},
		{Invitee: "bob", Inviter: ptr("carol")},
		{Invitee: "", Inviter: ptr("alice")},
		{Invitee: "x", Inviter: ptr("")},
	})

	assert.Equal(t, RebuildStats{Edges: 1, SelfLoops: 1, MultiParent: 1, Invalid: 2}, stats)
	assert.False(t, g.IsInviter("zed"))
	assert.Empty(t, g.Invitees("carol"))
	inviter, _ := g.Inviter("bob")
	assert.Equal(t, "alice", inviter)
}

func TestTwoCycleIsRepresentable(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.Rebuild([]Edge{
		{Invitee: "a", Inviter: ptr("b")},
		{Invitee: "b", Inviter: ptr("a")},
	})

	assert.Equal(t, []string{"b"}, g.Invitees("a"))
	assert.Equal(t, []string{"a"}, g.Invitees("b"))
}

// snapshot flattens the inverse index and checks it agrees with the forward index.
func snapshot(g *Graph) map[string][]string {
	out := make(map[string][]string)
	for _, id := range g.Members() {
		if invitees := g.Invitees(id); len(invitees) > 0 {
			out[id] = invitees
			for _, invitee := range invitees {
				inviter, ok := g.Inviter(invitee)
				if !ok || inviter != id {
					panic("forward and inverse index disagree")
				}
			}
		}
	}
	return out
}
