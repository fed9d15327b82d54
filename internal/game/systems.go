package game

import (
	"github.com/cardshifter/server/internal/core/event"
	"github.com/cardshifter/server/internal/core/system"
)

// turnStartSystem applies the ruleset's turn-start effects to each new
// turn holder.
type turnStartSystem struct{ g *Game }

func (s *turnStartSystem) Phase() system.Phase { return system.PhaseRules }

func (s *turnStartSystem) Install(bus *event.Bus) error {
	event.On(bus, event.After, func(ev event.PhaseChanged) error {
		return s.g.runEffects(s.g.turnStart, &effectContext{actor: ev.Next, source: ev.Next})
	})
	return nil
}

// deathSystem removes cards whose death resource dropped to zero, or moves
// them to the graveyard zone when the ruleset has one.
type deathSystem struct{ g *Game }

func (s *deathSystem) Phase() system.Phase { return system.PhaseRules }

func (s *deathSystem) Install(bus *event.Bus) error {
	event.On(bus, event.After, func(ev event.ResourceChanged) error {
		g := s.g
		if ev.Resource != g.ruleset.DeathResource || ev.New > 0 {
			return nil
		}
		c, ok := g.cards.Get(ev.Entity)
		if !ok {
			return nil
		}
		if g.ruleset.Graveyard != "" {
			grave := g.playerZone(c.Owner, g.ruleset.Graveyard)
			if c.Zone == grave {
				return nil
			}
			return g.moveEntity(ev.Entity, c.Zone, grave)
		}
		return g.removeEntity(ev.Entity)
	})
	return nil
}

// loseSystem eliminates players whose lose resource dropped to zero and ends
// the game when one player is left.
type loseSystem struct{ g *Game }

func (s *loseSystem) Phase() system.Phase { return system.PhaseRules }

func (s *loseSystem) Install(bus *event.Bus) error {
	event.On(bus, event.After, func(ev event.ResourceChanged) error {
		g := s.g
		if ev.Resource != g.ruleset.LoseResource || ev.New > 0 {
			return nil
		}
		p, ok := g.players.Get(ev.Entity)
		if !ok || p.Eliminated {
			return nil
		}
		p.Eliminated = true
		var alive []int
		for i, id := range g.order {
			if pl, _ := g.players.Get(id); !pl.Eliminated {
				alive = append(alive, i)
			}
		}
		switch len(alive) {
		case 0:
			return g.end(0, "all players eliminated")
		case 1:
			return g.end(g.order[alive[0]], "last player standing")
		}
		return nil
	})
	return nil
}
