package ecs

import (
	"errors"
	"fmt"
)

// ErrNoSuchEntity is returned when an internal call names an entity that is
// not alive.
var ErrNoSuchEntity = errors.New("no such entity")

// World is the top-level ECS container. It owns the entity pool and the
// component registry. A World is not safe for concurrent use; the owning game
// serializes access.
type World struct {
	pool     *EntityPool
	registry *Registry
}

func NewWorld() *World {
	return &World{
		pool:     NewEntityPool(),
		registry: NewRegistry(),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

func (w *World) Count() int {
	return w.pool.Len()
}

// Attach stores c on id in s. Attaching to a dead entity is an error.
func Attach[T any](w *World, s *PtrComponentStore[T], id EntityID, c *T) error {
	if !w.pool.Alive(id) {
		return fmt.Errorf("attach %T to %d: %w", c, id, ErrNoSuchEntity)
	}
	s.Set(id, c)
	return nil
}

// Find returns every alive entity satisfying pred, ascending by id.
func (w *World) Find(pred func(EntityID) bool) []EntityID {
	var out []EntityID
	w.pool.Each(func(id EntityID) {
		if pred(id) {
			out = append(out, id)
		}
	})
	sortIDs(out)
	return out
}

// Remove clears id from every registered store and retires the id.
func (w *World) Remove(id EntityID) error {
	if !w.pool.Alive(id) {
		return fmt.Errorf("remove %d: %w", id, ErrNoSuchEntity)
	}
	w.registry.RemoveAll(id)
	w.pool.Destroy(id)
	return nil
}
