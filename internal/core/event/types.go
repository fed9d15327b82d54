package event

import "github.com/cardshifter/server/internal/core/ecs"

// Kind enumerates every event the bus carries. Handlers and the broadcaster
// switch over it, so adding a kind means visiting those switches.
type Kind uint8

const (
	KindResourceChanged Kind = iota + 1
	KindZoneChanged
	KindEntityRemoved
	KindPhaseChanged
	KindActionPerformed
	KindGameStarted
	KindGameEnded
	KindZoneRevealed

	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindResourceChanged:
		return "ResourceChanged"
	case KindZoneChanged:
		return "ZoneChanged"
	case KindEntityRemoved:
		return "EntityRemoved"
	case KindPhaseChanged:
		return "PhaseChanged"
	case KindActionPerformed:
		return "ActionPerformed"
	case KindGameStarted:
		return "GameStarted"
	case KindGameEnded:
		return "GameEnded"
	case KindZoneRevealed:
		return "ZoneRevealed"
	default:
		return "Unknown"
	}
}

// Domain reports whether k is a state change of the simulation itself, as
// opposed to a lifecycle signal.
func (k Kind) Domain() bool {
	return k == KindResourceChanged || k == KindZoneChanged || k == KindEntityRemoved
}

// Event is implemented by every payload type below.
type Event interface {
	Kind() Kind
}

// ResourceChanged is published for every mutation of a named numeric value.
type ResourceChanged struct {
	Entity   ecs.EntityID
	Resource string
	Old      int32
	New      int32
}

// ZoneChanged is published when a card moves between zones. From and To are
// zone entity ids.
type ZoneChanged struct {
	Entity ecs.EntityID
	From   ecs.EntityID
	To     ecs.EntityID
}

// EntityRemoved is published before the id is released.
type EntityRemoved struct {
	Entity ecs.EntityID
}

// PhaseChanged carries the previous and next turn holder. Previous is zero
// for the first turn of a game.
type PhaseChanged struct {
	Previous ecs.EntityID
	Next     ecs.EntityID
}

// ActionPerformed is published after an action's effects have committed and
// legal actions were recomputed.
type ActionPerformed struct {
	Actor  ecs.EntityID
	Owner  ecs.EntityID
	Action string
	Target ecs.EntityID
}

type GameStarted struct{}

// GameEnded carries the winning player, or zero when nobody won.
type GameEnded struct {
	Winner ecs.EntityID
	Reason string
}

// ZoneRevealed grants Player knowledge of Zone. Knowledge is never withdrawn.
type ZoneRevealed struct {
	Zone   ecs.EntityID
	Player ecs.EntityID
}

func (ResourceChanged) Kind() Kind { return KindResourceChanged }
func (ZoneChanged) Kind() Kind     { return KindZoneChanged }
func (EntityRemoved) Kind() Kind   { return KindEntityRemoved }
func (PhaseChanged) Kind() Kind    { return KindPhaseChanged }
func (ActionPerformed) Kind() Kind { return KindActionPerformed }
func (GameStarted) Kind() Kind     { return KindGameStarted }
func (GameEnded) Kind() Kind       { return KindGameEnded }
func (ZoneRevealed) Kind() Kind    { return KindZoneRevealed }
