package component

// Player identifies a participant entity.
// Pure data, zero methods. Mutations happen in game functions.
type Player struct {
	Index      int
	Name       string
	Eliminated bool
}

// Automated marks a player whose turns are driven by an automation policy.
type Automated struct{}
