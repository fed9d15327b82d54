package ecs

import "strconv"

// EntityID identifies a game object. Ids are assigned monotonically from 1 and
// never reused within a world, so a stale id can never alias a newer entity.
// The zero value means "no entity" and doubles as the wire encoding of none.
type EntityID int32

func (id EntityID) IsZero() bool   { return id == 0 }
func (id EntityID) String() string { return strconv.Itoa(int(id)) }

// EntityPool hands out entity ids and tracks which are alive.
type EntityPool struct {
	alive map[EntityID]struct{}
	next  EntityID
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		alive: make(map[EntityID]struct{}, 256),
		next:  1,
	}
}

func (p *EntityPool) Create() EntityID {
	id := p.next
	p.next++
	p.alive[id] = struct{}{}
	return id
}

func (p *EntityPool) Alive(id EntityID) bool {
	_, ok := p.alive[id]
	return ok
}

// Destroy releases id. The id is retired, not recycled.
func (p *EntityPool) Destroy(id EntityID) bool {
	if _, ok := p.alive[id]; !ok {
		return false
	}
	delete(p.alive, id)
	return true
}

func (p *EntityPool) Len() int { return len(p.alive) }

// Each visits alive ids in no particular order.
func (p *EntityPool) Each(fn func(EntityID)) {
	for id := range p.alive {
		fn(id)
	}
}
