package component

import "github.com/cardshifter/server/internal/core/ecs"

// Zone is an ordered container of card entities. Owner is zero for shared
// zones. Known holds, per player entity, whether that player may see the
// identity of the cards inside.
type Zone struct {
	Name  string
	Owner ecs.EntityID
	Cards []ecs.EntityID
	Known map[ecs.EntityID]bool
}
