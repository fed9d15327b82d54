package system

import "github.com/cardshifter/server/internal/core/event"

// Phase orders system installation. Systems subscribe to the bus in phase
// order, so within one event phase their handlers run in this order too.
type Phase int

const (
	PhaseSync   Phase = iota // 0: client synchronization
	PhaseRecord              // 1: results, statistics
	PhaseRules               // 2: rule reactions that publish follow-up events
)

func (p Phase) String() string {
	switch p {
	case PhaseSync:
		return "sync"
	case PhaseRecord:
		return "record"
	case PhaseRules:
		return "rules"
	default:
		return "unknown"
	}
}

// System is the interface every event-driven game system implements.
type System interface {
	Phase() Phase
	Install(bus *event.Bus) error
}
