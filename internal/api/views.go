package api

import (
	"context"
	"sync/atomic"

	"github.com/qubitrhythm/disensor/internal/live"
)

// Broadcaster fans a view out to live feed subscribers.
type Broadcaster interface {
	Broadcast(view live.View) error
}

// ViewStore keeps the latest coordinator view for HTTP reads. It is a
// live.Renderer: the coordinator stores into it, handlers load from it.
type ViewStore struct {
	current     atomic.Pointer[live.View]
	broadcaster Broadcaster
}

// NewViewStore returns an empty store. broadcaster may be nil.
func NewViewStore(broadcaster Broadcaster) *ViewStore {
	return &ViewStore{broadcaster: broadcaster}
}

// Render stores view and pushes it to live subscribers.
func (s *ViewStore) Render(_ context.Context, view live.View) error {
	s.current.Store(&view)
	if s.broadcaster == nil {
		return nil
	}
	return s.broadcaster.Broadcast(view)
}

// Current returns the latest view, false until the first render.
func (s *ViewStore) Current() (live.View, bool) {
	v := s.current.Load()
	if v == nil {
		return live.View{}, false
	}
	return *v, true
}
