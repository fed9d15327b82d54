package system

import (
	"fmt"
	"sort"

	"github.com/cardshifter/server/internal/core/event"
)

// Runner installs systems on a bus in phase order.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Install subscribes every registered system. Registration order is kept
// within a phase.
func (r *Runner) Install(bus *event.Bus) error {
	r.ensureSorted()
	for _, s := range r.systems {
		if err := s.Install(bus); err != nil {
			return fmt.Errorf("install %T (%s): %w", s, s.Phase(), err)
		}
	}
	return nil
}

// Systems returns the registered systems in installation order.
func (r *Runner) Systems() []System {
	r.ensureSorted()
	return r.systems
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
