package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/cardshifter/server/internal/component"
	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
	"github.com/cardshifter/server/internal/core/system"
	"github.com/cardshifter/server/internal/data"
	"go.uber.org/zap"
)

// State is the lifecycle state of a game.
type State int32

const (
	StateNotStarted State = iota
	StateRunning
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SeatSpec describes a participant before the game exists.
type SeatSpec struct {
	Name      string
	Automated bool
}

// Seat is a participant of a running game.
type Seat struct {
	Index     int
	Player    ecs.EntityID
	Name      string
	Automated bool
}

// Config holds everything New needs.
type Config struct {
	ID      int32
	Ruleset *data.Ruleset
	Seats   []SeatSpec
	Seed    int64
	Log     *zap.Logger
}

// Game is one independent match. Its exported mutating methods take the game
// lock; the read accessors do not and are meant for event handlers and Do
// callbacks, which already run under it.
type Game struct {
	ID int32

	mu      sync.Mutex
	state   atomic.Int32
	log     *zap.Logger
	rng     *rand.Rand
	ruleset *data.Ruleset

	world     *ecs.World
	bus       *event.Bus
	players   *ecs.PtrComponentStore[component.Player]
	automated *ecs.PtrComponentStore[component.Automated]
	sessions  *ecs.PtrComponentStore[component.SessionRef]
	cards     *ecs.PtrComponentStore[component.Card]
	zones     *ecs.PtrComponentStore[component.Zone]
	resources *ecs.PtrComponentStore[component.Resources]
	actions   *ecs.PtrComponentStore[ActionSet]

	self      ecs.EntityID
	order     []ecs.EntityID
	seats     []Seat
	zoneIndex map[zoneKey]ecs.EntityID
	phase     *PhaseController
	engine    *Engine
	runner    *system.Runner
	start     []effect
	turnStart []effect
	winner    ecs.EntityID
}

// New builds the entities of a game from its ruleset. The game waits for
// Start.
func New(cfg Config) (*Game, error) {
	rs := cfg.Ruleset
	if rs == nil {
		return nil, errors.New("new game: no ruleset")
	}
	if len(cfg.Seats) != rs.Players {
		return nil, fmt.Errorf("new game: ruleset %s needs %d players, got %d", rs.Name, rs.Players, len(cfg.Seats))
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	g := &Game{
		ID:        cfg.ID,
		log:       log.With(zap.Int32("game", cfg.ID)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		ruleset:   rs,
		world:     ecs.NewWorld(),
		bus:       event.NewBus(),
		players:   ecs.NewPtrComponentStore[component.Player](),
		automated: ecs.NewPtrComponentStore[component.Automated](),
		sessions:  ecs.NewPtrComponentStore[component.SessionRef](),
		cards:     ecs.NewPtrComponentStore[component.Card](),
		zones:     ecs.NewPtrComponentStore[component.Zone](),
		resources: ecs.NewPtrComponentStore[component.Resources](),
		actions:   ecs.NewPtrComponentStore[ActionSet](),
		zoneIndex: make(map[zoneKey]ecs.EntityID),
		runner:    system.NewRunner(),
		start:     compileEffects(rs.Start),
		turnStart: compileEffects(rs.TurnStart),
	}
	g.world.Registry().Register(g.players, g.automated, g.sessions, g.cards, g.zones, g.resources, g.actions)
	g.bus.OnHandlerError(func(ev event.Event, err error) {
		g.log.Warn("event handler failed", zap.Stringer("event", ev.Kind()), zap.Error(err))
	})

	if err := g.setup(cfg.Seats); err != nil {
		return nil, fmt.Errorf("new game: %w", err)
	}
	g.phase = NewPhaseController(g.bus, g.order, func(id ecs.EntityID) bool {
		p, ok := g.players.Get(id)
		return ok && !p.Eliminated
	})
	g.engine = newEngine(g)
	g.runner.Register(&turnStartSystem{g: g})
	g.runner.Register(&deathSystem{g: g})
	g.runner.Register(&loseSystem{g: g})
	return g, nil
}

func (g *Game) setup(seats []SeatSpec) error {
	rs := g.ruleset
	g.self = g.world.CreateEntity()
	if err := ecs.Attach(g.world, g.resources, g.self, &component.Resources{Values: map[string]int32{}}); err != nil {
		return err
	}

	for i, spec := range seats {
		id := g.world.CreateEntity()
		g.players.Set(id, &component.Player{Index: i, Name: spec.Name})
		g.resources.Set(id, &component.Resources{Values: copyValues(rs.PlayerResources)})
		if spec.Automated {
			g.automated.Set(id, &component.Automated{})
		}
		g.order = append(g.order, id)
		g.seats = append(g.seats, Seat{Index: i, Player: id, Name: spec.Name, Automated: spec.Automated})
	}

	for _, player := range g.order {
		for _, zd := range rs.Zones {
			id := g.world.CreateEntity()
			z := &component.Zone{Name: zd.Name, Owner: player, Known: make(map[ecs.EntityID]bool)}
			for _, viewer := range g.order {
				switch zd.Visibility {
				case data.VisibleToAll:
					z.Known[viewer] = true
				case data.VisibleToOwner:
					z.Known[viewer] = viewer == player
				}
			}
			g.zones.Set(id, z)
			g.zoneIndex[zoneKey{owner: player, name: zd.Name}] = id
		}
	}

	// Cards come after every zone so ids follow game, players, zones, cards.
	if rs.Deck.Zone != "" {
		for _, player := range g.order {
			deck := g.playerZone(player, rs.Deck.Zone)
			z, _ := g.zones.Get(deck)
			for _, cd := range rs.Deck.Cards {
				for n := 0; n < cd.Count; n++ {
					id := g.world.CreateEntity()
					g.cards.Set(id, &component.Card{Name: cd.Name, Owner: player, Zone: deck})
					g.resources.Set(id, &component.Resources{Values: copyValues(cd.Resources)})
					z.Cards = append(z.Cards, id)
				}
			}
			if zd := rs.Zone(rs.Deck.Zone); zd != nil && zd.Shuffle {
				g.rng.Shuffle(len(z.Cards), func(i, j int) { z.Cards[i], z.Cards[j] = z.Cards[j], z.Cards[i] })
			}
		}
	}

	for i := range rs.Actions {
		def := &rs.Actions[i]
		switch def.Owner {
		case data.OwnerPlayer:
			for _, player := range g.order {
				g.bindAction(player, def)
			}
		case data.OwnerCard:
			for _, card := range g.cards.IDs() {
				g.bindAction(card, def)
			}
		}
	}
	return nil
}

func copyValues(src map[string]int32) map[string]int32 {
	out := make(map[string]int32, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Use registers an additional system. Systems are installed by Start.
func (g *Game) Use(s system.System) {
	g.runner.Register(s)
}

// Start installs systems, runs the start rules and gives the first turn.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State() != StateNotStarted {
		return fmt.Errorf("start game %d: already %s", g.ID, g.State())
	}
	if err := g.runner.Install(g.bus); err != nil {
		return fmt.Errorf("start game %d: %w", g.ID, err)
	}
	for _, player := range g.order {
		if err := g.runEffects(g.start, &effectContext{actor: player, source: player}); err != nil {
			return fmt.Errorf("start game %d: %w", g.ID, err)
		}
	}
	if err := g.phase.Begin(); err != nil {
		return fmt.Errorf("start game %d: %w", g.ID, err)
	}
	g.state.CompareAndSwap(int32(StateNotStarted), int32(StateRunning))
	g.engine.recompute()
	g.log.Info("game started",
		zap.String("ruleset", g.ruleset.Name),
		zap.Int("players", len(g.order)),
		zap.Int("entities", g.world.Count()),
	)
	return g.bus.Publish(event.GameStarted{}, nil)
}

// Perform runs one action for actor. A *Rejection means nothing changed.
func (g *Game) Perform(actor ecs.EntityID, ref ActionRef, targets []ecs.EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.perform(actor, ref, targets)
}

// Targets lists the legal targets of ref for actor, who must hold the turn.
func (g *Game) Targets(actor ecs.EntityID, ref ActionRef) ([]ecs.EntityID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.engine.validate(actor, ref)
	if err != nil {
		return nil, err
	}
	return g.engine.FindPossibleTargets(a, 0, actor), nil
}

// Automate asks p for one move of the current holder if that player is
// automated, and performs it. It reports whether a move was made.
func (g *Game) Automate(p Policy) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State() != StateRunning {
		return false, nil
	}
	holder := g.phase.Current()
	if !g.automated.Has(holder) {
		return false, nil
	}
	mv, ok := p.Choose(holder, g.engine.choices(holder))
	if !ok {
		return false, ErrNoAutomatedMove
	}
	if err := g.engine.perform(holder, mv.Ref, mv.Targets); err != nil {
		return false, err
	}
	return true, nil
}

// End stops a running game without a winner.
func (g *Game) End(reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.end(0, reason)
}

func (g *Game) end(winner ecs.EntityID, reason string) error {
	if g.State() == StateEnded {
		return nil
	}
	g.state.Store(int32(StateEnded))
	g.winner = winner
	g.engine.recompute()
	g.log.Info("game ended", zap.Stringer("winner", winner), zap.String("reason", reason), zap.Int("turns", g.phase.Turn()))
	return g.bus.Publish(event.GameEnded{Winner: winner, Reason: reason}, nil)
}

// settle passes the turn on when its holder was eliminated mid-action.
func (g *Game) settle() error {
	if g.State() != StateRunning {
		return nil
	}
	if p, ok := g.players.Get(g.phase.Current()); ok && p.Eliminated {
		return g.phase.Advance()
	}
	return nil
}

// Do runs fn under the game lock.
func (g *Game) Do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// State is safe to call without the lock.
func (g *Game) State() State { return State(g.state.Load()) }

func (g *Game) Ruleset() *data.Ruleset { return g.ruleset }

// Entity returns the entity representing the game itself.
func (g *Game) Entity() ecs.EntityID { return g.self }

func (g *Game) CurrentPlayer() ecs.EntityID { return g.phase.Current() }

func (g *Game) Turn() int { return g.phase.Turn() }

func (g *Game) Winner() ecs.EntityID { return g.winner }

func (g *Game) Engine() *Engine { return g.engine }

// EntityCount returns the number of alive entities.
func (g *Game) EntityCount() int { return g.world.Count() }

// Seats returns the participants in seat order.
func (g *Game) Seats() []Seat {
	out := make([]Seat, len(g.seats))
	copy(out, g.seats)
	return out
}

// SeatOf returns the seat of a player entity.
func (g *Game) SeatOf(player ecs.EntityID) (Seat, bool) {
	for _, s := range g.seats {
		if s.Player == player {
			return s, true
		}
	}
	return Seat{}, false
}

// Player returns the player component of id.
func (g *Game) Player(id ecs.EntityID) (*component.Player, bool) {
	return g.players.Get(id)
}

// BindSession records which session plays a seat; zero detaches it.
func (g *Game) BindSession(index int, ref component.SessionRef) {
	if index < 0 || index >= len(g.seats) {
		return
	}
	if ref.SessionID == 0 {
		g.sessions.Remove(g.seats[index].Player)
		return
	}
	g.sessions.Set(g.seats[index].Player, &ref)
}

// Session returns the session bound to a seat.
func (g *Game) Session(index int) (component.SessionRef, bool) {
	if index < 0 || index >= len(g.seats) {
		return component.SessionRef{}, false
	}
	ref, ok := g.sessions.Get(g.seats[index].Player)
	if !ok {
		return component.SessionRef{}, false
	}
	return *ref, true
}
