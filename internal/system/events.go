// Package system holds the maintenance systems that run off the room
// tick path: event dispatch, directory and statistics writes, and TTL
// sweeps. One goroutine drives them all through the phase runner, so
// the systems themselves need no locking.
package system

import (
	"time"

	"github.com/ghostrush/server/internal/core/event"
	coresys "github.com/ghostrush/server/internal/core/system"
)

// EventSystem rotates the bus buffers and delivers last cycle's events
// to their subscribers. Runs in the Events phase so every later system
// sees a settled batch.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
