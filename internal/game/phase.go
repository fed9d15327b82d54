package game

import (
	"errors"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
)

// PhaseController passes the turn round-robin among players in seat order.
// Players for which active reports false are skipped.
type PhaseController struct {
	bus     *event.Bus
	order   []ecs.EntityID
	active  func(ecs.EntityID) bool
	current int
	turn    int
}

func NewPhaseController(bus *event.Bus, order []ecs.EntityID, active func(ecs.EntityID) bool) *PhaseController {
	if active == nil {
		active = func(ecs.EntityID) bool { return true }
	}
	return &PhaseController{bus: bus, order: order, active: active, current: -1}
}

// Current returns the turn holder, zero before Begin.
func (p *PhaseController) Current() ecs.EntityID {
	if p.current < 0 {
		return 0
	}
	return p.order[p.current]
}

// Turn counts turns started, beginning at 1.
func (p *PhaseController) Turn() int { return p.turn }

// Begin gives the turn to the first active player.
func (p *PhaseController) Begin() error {
	if p.current >= 0 {
		return errors.New("phase controller already begun")
	}
	return p.moveTo(p.nextFrom(-1))
}

// Advance passes the turn to the next active player.
func (p *PhaseController) Advance() error {
	if p.current < 0 {
		return errors.New("phase controller not begun")
	}
	return p.moveTo(p.nextFrom(p.current))
}

func (p *PhaseController) nextFrom(i int) int {
	for step := 1; step <= len(p.order); step++ {
		j := (i + step) % len(p.order)
		if p.active(p.order[j]) {
			return j
		}
	}
	return -1
}

func (p *PhaseController) moveTo(next int) error {
	if next < 0 {
		return errors.New("no active player to take the turn")
	}
	ev := event.PhaseChanged{Previous: p.Current(), Next: p.order[next]}
	return p.bus.Publish(ev, func() {
		p.current = next
		p.turn++
	})
}
