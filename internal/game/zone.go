package game

import (
	"fmt"
	"slices"

	"github.com/cardshifter/server/internal/component"
	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
)

type zoneKey struct {
	owner ecs.EntityID
	name  string
}

// moveEntity moves card from one zone to another. Both zones and the card's
// zone reference change in the same step, so handlers never observe a card
// in zero or two zones.
func (g *Game) moveEntity(card, from, to ecs.EntityID) error {
	c, ok := g.cards.Get(card)
	if !ok {
		return fmt.Errorf("move %d: not a card: %w", card, ecs.ErrNoSuchEntity)
	}
	src, ok := g.zones.Get(from)
	if !ok {
		return fmt.Errorf("move %d: source zone %d: %w", card, from, ecs.ErrNoSuchEntity)
	}
	dst, ok := g.zones.Get(to)
	if !ok {
		return fmt.Errorf("move %d: destination zone %d: %w", card, to, ecs.ErrNoSuchEntity)
	}
	if c.Zone != from || !slices.Contains(src.Cards, card) {
		return fmt.Errorf("move %d: card is not in zone %d", card, from)
	}
	ev := event.ZoneChanged{Entity: card, From: from, To: to}
	return g.bus.Publish(ev, func() {
		src.Cards = slices.DeleteFunc(src.Cards, func(id ecs.EntityID) bool { return id == card })
		dst.Cards = append(dst.Cards, card)
		c.Zone = to
	})
}

// removeEntity publishes the removal, then drops the entity from its zone and
// the world.
func (g *Game) removeEntity(id ecs.EntityID) error {
	if !g.world.Alive(id) {
		return fmt.Errorf("remove %d: %w", id, ecs.ErrNoSuchEntity)
	}
	var removeErr error
	err := g.bus.Publish(event.EntityRemoved{Entity: id}, func() {
		if c, ok := g.cards.Get(id); ok {
			if z, ok := g.zones.Get(c.Zone); ok {
				z.Cards = slices.DeleteFunc(z.Cards, func(e ecs.EntityID) bool { return e == id })
			}
		}
		removeErr = g.world.Remove(id)
	})
	if removeErr != nil {
		return fmt.Errorf("remove %d: %w", id, removeErr)
	}
	return err
}

// RevealZone lets player see the cards of zone from now on.
func (g *Game) RevealZone(zone, player ecs.EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.revealZone(zone, player)
}

// revealZone grants knowledge of zone to player. Granting it twice publishes
// nothing.
func (g *Game) revealZone(zone, player ecs.EntityID) error {
	z, ok := g.zones.Get(zone)
	if !ok {
		return fmt.Errorf("reveal %d: not a zone: %w", zone, ecs.ErrNoSuchEntity)
	}
	if !g.players.Has(player) {
		return fmt.Errorf("reveal %d to %d: not a player: %w", zone, player, ecs.ErrNoSuchEntity)
	}
	if z.Known[player] {
		return nil
	}
	return g.bus.Publish(event.ZoneRevealed{Zone: zone, Player: player}, func() {
		z.Known[player] = true
	})
}

// playerZone returns the zone named name owned by player, or zero.
func (g *Game) playerZone(player ecs.EntityID, name string) ecs.EntityID {
	return g.zoneIndex[zoneKey{owner: player, name: name}]
}

// Zone returns the zone component of id.
func (g *Game) Zone(id ecs.EntityID) (*component.Zone, bool) {
	return g.zones.Get(id)
}

// ZoneIDs returns every zone, ascending.
func (g *Game) ZoneIDs() []ecs.EntityID {
	return g.zones.IDs()
}

// ZoneCards returns a copy of the zone's ordered contents.
func (g *Game) ZoneCards(zone ecs.EntityID) []ecs.EntityID {
	z, ok := g.zones.Get(zone)
	if !ok {
		return nil
	}
	return slices.Clone(z.Cards)
}

// ZoneKnownTo reports whether player may see the cards inside zone. Known
// flags are set at setup and only ever granted afterwards.
func (g *Game) ZoneKnownTo(zone, player ecs.EntityID) bool {
	z, ok := g.zones.Get(zone)
	return ok && z.Known[player]
}

// Card returns the card component of id.
func (g *Game) Card(id ecs.EntityID) (*component.Card, bool) {
	return g.cards.Get(id)
}

// IsCard reports whether id is a card entity.
func (g *Game) IsCard(id ecs.EntityID) bool {
	return g.cards.Has(id)
}
