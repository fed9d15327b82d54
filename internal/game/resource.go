package game

import (
	"fmt"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
)

// setResource is the only path that mutates a numeric value. No event is
// published when the value is unchanged.
func (g *Game) setResource(id ecs.EntityID, name string, value int32) error {
	r, ok := g.resources.Get(id)
	if !ok {
		return fmt.Errorf("set %s on %d: no resources: %w", name, id, ecs.ErrNoSuchEntity)
	}
	old, exists := r.Values[name]
	if exists && old == value {
		return nil
	}
	ev := event.ResourceChanged{Entity: id, Resource: name, Old: old, New: value}
	return g.bus.Publish(ev, func() { r.Values[name] = value })
}

func (g *Game) addResource(id ecs.EntityID, name string, delta int32) error {
	return g.setResource(id, name, g.Resource(id, name)+delta)
}

// Resource returns a named value of id, zero when absent.
func (g *Game) Resource(id ecs.EntityID, name string) int32 {
	if r, ok := g.resources.Get(id); ok {
		return r.Values[name]
	}
	return 0
}

// Resources returns a copy of every named value on id.
func (g *Game) Resources(id ecs.EntityID) map[string]int32 {
	r, ok := g.resources.Get(id)
	if !ok {
		return nil
	}
	out := make(map[string]int32, len(r.Values))
	for k, v := range r.Values {
		out[k] = v
	}
	return out
}
