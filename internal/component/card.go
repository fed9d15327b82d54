package component

import "github.com/cardshifter/server/internal/core/ecs"

// Card marks a card entity. Zone is the zone currently listing the card;
// it changes only through a zone move.
type Card struct {
	Name  string
	Owner ecs.EntityID
	Zone  ecs.EntityID
}

// Resources holds named numeric values (LIFE, MANA, ATTACK, ...).
// Values change only through resource events.
type Resources struct {
	Values map[string]int32
}
