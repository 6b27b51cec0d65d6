package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubitrhythm/disensor/internal/referral"
)

func ptr(s string) *string { return &s }

func newLedger(edges ...referral.Edge) *Ledger {
	g := referral.NewGraph()
	g.Rebuild(edges)
	return New(g, DefaultRates())
}

func TestRecordCreatesOnFirstWrite(t *testing.T) {
	t.Parallel()

	l := newLedger()
	for range 7 {
		l.Record("fresh")
	}
	assert.Equal(t, int64(7), l.Pulses("fresh"))
	assert.Equal(t, int64(0), l.Pulses("unknown"))
}

func TestNoInviteesMeansNoBonus(t *testing.T) {
	t.Parallel()

	l := newLedger()
	l.Reset(map[string]int64{"solo": 1234})

	e := l.Earnings("solo")
	assert.Zero(t, e.Bonus)
	assert.Equal(t, e.Base, e.Total)
	assert.Equal(t, "1.2340", FormatAmount(e.Total, DefaultPrecision))
}

func TestOneLevelBonus(t *testing.T) {
	t.Parallel()

	l := newLedger(referral.Edge{Invitee: "child", Inviter: ptr("parent")})
	l.Reset(map[string]int64{"parent": 100, "child": 50})

	e := l.Earnings("parent")
	assert.Equal(t, "0.1000", FormatAmount(e.Base, 4))
	assert.Equal(t, "0.0050", FormatAmount(e.Bonus, 4))
	assert.Equal(t, "0.1050", FormatAmount(e.Total, 4))
	assert.GreaterOrEqual(t, e.Total, e.Base)
}

func TestBonusDoesNotReachGrandparent(t *testing.T) {
	t.Parallel()

	l := newLedger(
		referral.Edge{Invitee: "parent", Inviter: ptr("grandparent")},
		referral.Edge{Invitee: "child", Inviter: ptr("parent")},
	)
	l.Reset(map[string]int64{"grandparent": 0, "parent": 0, "child": 10000})

	assert.InDelta(t, 1.0, l.Earnings("parent").Bonus, 1e-12)
	assert.Zero(t, l.Earnings("grandparent").Bonus)
}

func TestBonusMatchesSumOfChildPulses(t *testing.T) {
	t.Parallel()

	l := newLedger(
		referral.Edge{Invitee: "c1", Inviter: ptr("p")},
		referral.Edge{Invitee: "c2", Inviter: ptr("p")},
		referral.Edge{Invitee: "c3", Inviter: ptr("p")},
	)
	l.Reset(map[string]int64{"p": 3, "c1": 17, "c2": 250, "c3": 0})

	assert.InDelta(t, 0.0001*float64(17+250), l.Earnings("p").Bonus, 1e-12)
}

func TestTwoCyclePaysSymmetrically(t *testing.T) {
	t.Parallel()

	l := newLedger(
		referral.Edge{Invitee: "a", Inviter: ptr("b")},
		referral.Edge{Invitee: "b", Inviter: ptr("a")},
	)
	l.Reset(map[string]int64{"a": 100, "b": 100})

	assert.Equal(t, l.Earnings("a"), l.Earnings("b"))
	assert.InDelta(t, 0.11, l.Earnings("a").Total, 1e-12)
}

func TestLeaderboardOrdering(t *testing.T) {
	t.Parallel()

	l := newLedger(referral.Edge{Invitee: "worker", Inviter: ptr("recruiter")})
	l.Reset(map[string]int64{"worker": 100, "beta": 50, "alpha": 50})

	rows := l.Leaderboard()
	require.Len(t, rows, 4)

	ids := []string{rows[0].ID, rows[1].ID, rows[2].ID, rows[3].ID}
	assert.Equal(t, []string{"worker", "alpha", "beta", "recruiter"}, ids)
	for i, r := range rows {
		assert.Equal(t, i+1, r.Rank)
	}

	recruiter := rows[3]
	assert.True(t, recruiter.IsInviter)
	assert.True(t, recruiter.HasBonus)
	assert.Equal(t, int64(0), recruiter.Pulses)

	d := recruiter.Display(DefaultPrecision)
	assert.Equal(t, "0.0000", d.Base)
	assert.Equal(t, "0.0100", d.Bonus)
	assert.Equal(t, "0.0100", d.Total)
}

func TestRecordChangesParentBonus(t *testing.T) {
	t.Parallel()

	l := newLedger(referral.Edge{Invitee: "child", Inviter: ptr("parent")})
	before := l.Earnings("parent").Total

	l.Record("child")
	assert.Greater(t, l.Earnings("parent").Total, before)
}

func TestResetAndTrack(t *testing.T) {
	t.Parallel()

	l := newLedger()
	l.Record("old")
	l.Reset(map[string]int64{"new": 5, "broken": -3})

	assert.Equal(t, int64(0), l.Pulses("old"))
	assert.Equal(t, int64(0), l.Pulses("broken"))

	l.Track("new", "idle", "")
	assert.Equal(t, int64(5), l.Pulses("new"))
	assert.Equal(t, []string{"broken", "idle", "new"}, l.Nodes())
	assert.Equal(t, 3, l.Len())
}
