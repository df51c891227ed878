package system

import "time"

// Phase defines execution ordering within a single maintenance cycle.
type Phase int

const (
	PhaseEvents    Phase = iota // 0: swap + dispatch the event bus
	PhaseDirectory              // 1: room directory writes
	PhaseStats                  // 2: match statistics writes
	PhaseSweep                  // 3: TTL sweeps, local rooms and directory rows
)

// System is the interface every maintenance system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
