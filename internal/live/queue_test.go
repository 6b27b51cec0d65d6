package live

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qubitrhythm/disensor/internal/events"
)

func TestQueueIsFIFO(t *testing.T) {
	q := newQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.push(events.ReadingInserted{ID: id})
	}
	assert.Len(t, q.ready, 1)

	for _, want := range []string{"a", "b", "c"} {
		c, _, ok := q.pop()
		assert.True(t, ok)
		assert.Equal(t, want, c.ChangeID())
	}
	_, _, ok := q.pop()
	assert.False(t, ok)
}
