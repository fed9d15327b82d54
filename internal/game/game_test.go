package game

import (
	"testing"

	"github.com/cardshifter/server/internal/component"
	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
	"github.com/cardshifter/server/internal/core/system"
	"github.com/cardshifter/server/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const duelRuleset = `
name: duel
players: 2
lose_resource: LIFE
death_resource: HEALTH
player_resources: {LIFE: 3, MANA: 0}
zones:
  - {name: Deck, visibility: none}
  - {name: Hand, visibility: owner}
  - {name: Battlefield, visibility: all}
deck:
  zone: Deck
  cards:
    - {name: Grunt, count: 5, resources: {ATTACK: 2, HEALTH: 2, COST: 1, READY: 0}}
start:
  - {effect: draw, from_zone: Deck, to_zone: Hand, count: 3}
turn_start:
  - {effect: set, resource: MANA, amount: 1}
  - {effect: set_cards, zone: Battlefield, resource: READY, amount: 1}
actions:
  - name: Play
    owner: card
    zone: Hand
    cost: {resource: MANA, amount_from: COST}
    effects:
      - {effect: move, to_zone: Battlefield}
  - name: Attack
    owner: card
    zone: Battlefield
    require: [{resource: READY, min: 1}]
    target: {zones: [Battlefield], relation: opponent, players: true}
    effects:
      - {effect: set, resource: READY, amount: 0}
      - {effect: damage, amount_from: ATTACK, mutual: true}
  - name: End Turn
    owner: player
    effects:
      - {effect: end_turn}
`

// Entity layout of a duel game: game 1, players 2 and 3, zones 4-6 (player 2)
// and 7-9 (player 3), cards 10-14 (player 2) and 15-19 (player 3).
const (
	p1, p2                 ecs.EntityID = 2, 3
	deck1, hand1, field1   ecs.EntityID = 4, 5, 6
	deck2, hand2, field2   ecs.EntityID = 7, 8, 9
	firstCard1, firstCard2 ecs.EntityID = 10, 15
)

type eventLog struct {
	events []event.Event
}

func (l *eventLog) Phase() system.Phase { return system.PhaseSync }

func (l *eventLog) Install(bus *event.Bus) error {
	for _, k := range []event.Kind{
		event.KindResourceChanged, event.KindZoneChanged, event.KindEntityRemoved,
		event.KindPhaseChanged, event.KindActionPerformed, event.KindGameStarted, event.KindGameEnded,
		event.KindZoneRevealed,
	} {
		bus.Subscribe(k, event.After, func(ev event.Event) error {
			l.events = append(l.events, ev)
			return nil
		})
	}
	return nil
}

func (l *eventLog) reset() { l.events = nil }

func (l *eventLog) count(k event.Kind) int {
	n := 0
	for _, ev := range l.events {
		if ev.Kind() == k {
			n++
		}
	}
	return n
}

func loadRuleset(t *testing.T, doc string) *data.Ruleset {
	t.Helper()
	rs, err := data.ParseRuleset([]byte(doc))
	require.NoError(t, err)
	return rs
}

func newDuel(t *testing.T, seats ...SeatSpec) (*Game, *eventLog) {
	t.Helper()
	if len(seats) == 0 {
		seats = []SeatSpec{{Name: "alice"}, {Name: "bob"}}
	}
	g, err := New(Config{ID: 1, Ruleset: loadRuleset(t, duelRuleset), Seats: seats, Log: zaptest.NewLogger(t)})
	require.NoError(t, err)
	log := &eventLog{}
	g.Use(log)
	require.NoError(t, g.Start())
	log.reset()
	return g, log
}

func play(id ecs.EntityID) ActionRef   { return ActionRef{Owner: id, Name: "Play"} }
func attack(id ecs.EntityID) ActionRef { return ActionRef{Owner: id, Name: "Attack"} }
func endTurn(id ecs.EntityID) ActionRef {
	return ActionRef{Owner: id, Name: "End Turn"}
}

func TestNewRejectsWrongSeatCount(t *testing.T) {
	_, err := New(Config{Ruleset: loadRuleset(t, duelRuleset), Seats: []SeatSpec{{Name: "solo"}}})
	assert.Error(t, err)
}

func TestStartDealsAndGivesFirstTurn(t *testing.T) {
	g, _ := newDuel(t)

	assert.Equal(t, StateRunning, g.State())
	assert.Equal(t, p1, g.CurrentPlayer())
	assert.Equal(t, 1, g.Turn())
	assert.Equal(t, []ecs.EntityID{10, 11, 12}, g.ZoneCards(hand1))
	assert.Equal(t, []ecs.EntityID{13, 14}, g.ZoneCards(deck1))
	assert.Equal(t, []ecs.EntityID{15, 16, 17}, g.ZoneCards(hand2))
	assert.Equal(t, int32(1), g.Resource(p1, "MANA"))
	assert.Equal(t, int32(0), g.Resource(p2, "MANA"))

	assert.True(t, g.ZoneKnownTo(hand1, p1))
	assert.False(t, g.ZoneKnownTo(hand1, p2))
	assert.False(t, g.ZoneKnownTo(deck1, p1))
	assert.True(t, g.ZoneKnownTo(field2, p1))

	legal := g.Engine().LegalActions(p1)
	assert.Equal(t, []Available{
		{Ref: endTurn(p1)},
		{Ref: play(10)}, {Ref: play(11)}, {Ref: play(12)},
	}, legal)
	assert.Equal(t, []Available{{Ref: endTurn(p2)}}, g.Engine().LegalActions(p2))

	assert.Error(t, g.Start())
}

func TestRejectionsMutateNothing(t *testing.T) {
	g, log := newDuel(t)
	entities := g.EntityCount()
	mana := g.Resource(p1, "MANA")

	tests := []struct {
		name    string
		actor   ecs.EntityID
		ref     ActionRef
		targets []ecs.EntityID
		want    error
	}{
		{"not your turn", p2, endTurn(p2), nil, ErrNotYourTurn},
		{"not your turn beats unknown action", p2, ActionRef{Owner: 99, Name: "Fly"}, nil, ErrNotYourTurn},
		{"unknown action", p1, ActionRef{Owner: 10, Name: "Fly"}, nil, ErrActionNotFound},
		{"unknown owner", p1, play(999), nil, ErrActionNotFound},
		{"card in deck", p1, play(13), nil, ErrActionNotAllowed},
		{"opponent card", p1, play(15), nil, ErrActionNotAllowed},
		{"unexpected target", p1, play(10), []ecs.EntityID{p2}, ErrInvalidTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Perform(tt.actor, tt.ref, tt.targets)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			r, ok := AsRejection(err)
			require.True(t, ok)
			assert.NotEmpty(t, r.Error())
		})
	}
	assert.Empty(t, log.events)
	assert.Equal(t, entities, g.EntityCount())
	assert.Equal(t, mana, g.Resource(p1, "MANA"))
	assert.Equal(t, p1, g.CurrentPlayer())
}

func TestPlayMovesCardAndPaysCost(t *testing.T) {
	g, log := newDuel(t)

	require.NoError(t, g.Perform(p1, play(10), nil))
	assert.Equal(t, int32(0), g.Resource(p1, "MANA"))
	assert.Equal(t, []ecs.EntityID{11, 12}, g.ZoneCards(hand1))
	assert.Equal(t, []ecs.EntityID{10}, g.ZoneCards(field1))
	c, ok := g.Card(10)
	require.True(t, ok)
	assert.Equal(t, field1, c.Zone)

	require.Len(t, log.events, 3)
	assert.Equal(t, event.ResourceChanged{Entity: p1, Resource: "MANA", Old: 1, New: 0}, log.events[0])
	assert.Equal(t, event.ZoneChanged{Entity: 10, From: hand1, To: field1}, log.events[1])
	assert.Equal(t, event.ActionPerformed{Actor: p1, Owner: 10, Action: "Play"}, log.events[2])

	// No mana left: the other hand cards are no longer playable.
	assert.Equal(t, []Available{{Ref: endTurn(p1)}}, g.Engine().LegalActions(p1))
	assert.ErrorIs(t, g.Perform(p1, play(11), nil), ErrActionNotAllowed)
}

func TestEndTurnPassesTurnAndRunsTurnStart(t *testing.T) {
	g, log := newDuel(t)
	require.NoError(t, g.Perform(p1, play(10), nil))
	log.reset()

	require.NoError(t, g.Perform(p1, endTurn(p1), nil))
	assert.Equal(t, p2, g.CurrentPlayer())
	assert.Equal(t, 2, g.Turn())
	assert.Equal(t, int32(1), g.Resource(p2, "MANA"))
	assert.Equal(t, event.PhaseChanged{Previous: p1, Next: p2}, log.events[0])

	// Turn start readies only the new holder's battlefield.
	assert.Equal(t, int32(0), g.Resource(10, "READY"))

	require.NoError(t, g.Perform(p2, endTurn(p2), nil))
	assert.Equal(t, p1, g.CurrentPlayer())
	assert.Equal(t, int32(1), g.Resource(10, "READY"))
}

func TestAttackTradesCreatures(t *testing.T) {
	g, log := newDuel(t)
	require.NoError(t, g.Perform(p1, play(10), nil))
	require.NoError(t, g.Perform(p1, endTurn(p1), nil))
	require.NoError(t, g.Perform(p2, play(15), nil))
	require.NoError(t, g.Perform(p2, endTurn(p2), nil))

	targets, err := g.Targets(p1, attack(10))
	require.NoError(t, err)
	assert.Equal(t, []ecs.EntityID{p2, 15}, targets)

	_, err = g.Targets(p2, attack(15))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	assert.ErrorIs(t, g.Perform(p1, attack(10), nil), ErrInvalidTarget)
	assert.ErrorIs(t, g.Perform(p1, attack(10), []ecs.EntityID{11}), ErrInvalidTarget)

	before := g.EntityCount()
	log.reset()
	require.NoError(t, g.Perform(p1, attack(10), []ecs.EntityID{15}))

	assert.Equal(t, 2, log.count(event.KindEntityRemoved))
	assert.Equal(t, before-2, g.EntityCount())
	assert.Empty(t, g.ZoneCards(field1))
	assert.Empty(t, g.ZoneCards(field2))
	assert.False(t, g.IsCard(10))
	assert.False(t, g.IsCard(15))
}

func TestLifeAtZeroEndsGame(t *testing.T) {
	g, log := newDuel(t)
	require.NoError(t, g.Perform(p1, play(10), nil))
	require.NoError(t, g.Perform(p1, endTurn(p1), nil))
	require.NoError(t, g.Perform(p2, endTurn(p2), nil))
	require.NoError(t, g.Perform(p1, attack(10), []ecs.EntityID{p2}))
	assert.Equal(t, int32(1), g.Resource(p2, "LIFE"))
	require.NoError(t, g.Perform(p1, endTurn(p1), nil))
	require.NoError(t, g.Perform(p2, endTurn(p2), nil))

	log.reset()
	require.NoError(t, g.Perform(p1, attack(10), []ecs.EntityID{p2}))
	assert.Equal(t, StateEnded, g.State())
	assert.Equal(t, p1, g.Winner())
	assert.Equal(t, 1, log.count(event.KindGameEnded))
	assert.Empty(t, g.Engine().LegalActions(p1))

	err := g.Perform(p1, endTurn(p1), nil)
	assert.ErrorIs(t, err, ErrGameNotRunning)
}

const smiteRuleset = `
name: smite
players: 2
lose_resource: LIFE
player_resources: {LIFE: 3}
actions:
  - name: Smite
    owner: player
    target: {relation: opponent, players: true}
    effects:
      - {effect: damage, amount: 5}
      - {effect: end_turn}
`

func TestNothingFollowsGameEnded(t *testing.T) {
	g, err := New(Config{
		ID:      2,
		Ruleset: loadRuleset(t, smiteRuleset),
		Seats:   []SeatSpec{{Name: "alice"}, {Name: "bob"}},
		Log:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	log := &eventLog{}
	g.Use(log)
	require.NoError(t, g.Start())
	log.reset()

	require.NoError(t, g.Perform(p1, ActionRef{Owner: p1, Name: "Smite"}, []ecs.EntityID{p2}))

	assert.Equal(t, StateEnded, g.State())
	require.NotEmpty(t, log.events)
	assert.Equal(t, event.GameEnded{Winner: p1, Reason: "last player standing"}, log.events[len(log.events)-1])
	assert.Zero(t, log.count(event.KindPhaseChanged))
	assert.Zero(t, log.count(event.KindActionPerformed))
	assert.Equal(t, p1, g.CurrentPlayer())
	assert.Equal(t, 1, g.Turn())
}

func TestRevealZoneOnlyGrants(t *testing.T) {
	g, log := newDuel(t)
	require.False(t, g.ZoneKnownTo(hand2, p1))

	require.NoError(t, g.RevealZone(hand2, p1))
	assert.True(t, g.ZoneKnownTo(hand2, p1))
	assert.Equal(t, []event.Event{event.ZoneRevealed{Zone: hand2, Player: p1}}, log.events)

	// Already known: nothing to publish.
	log.reset()
	require.NoError(t, g.RevealZone(hand2, p1))
	require.NoError(t, g.RevealZone(hand1, p1))
	assert.Empty(t, log.events)

	// Moving cards out and back keeps the grant.
	require.NoError(t, g.Perform(p1, endTurn(p1), nil))
	require.NoError(t, g.Perform(p2, play(15), nil))
	assert.True(t, g.ZoneKnownTo(hand2, p1))

	assert.ErrorIs(t, g.RevealZone(p1, p2), ecs.ErrNoSuchEntity)
	assert.ErrorIs(t, g.RevealZone(hand2, 10), ecs.ErrNoSuchEntity)
}

func TestRemovalFailureIsReported(t *testing.T) {
	g, _ := newDuel(t)
	g.bus.Subscribe(event.KindEntityRemoved, event.Before, func(ev event.Event) error {
		return g.world.Remove(ev.(event.EntityRemoved).Entity)
	})
	g.Do(func() {
		err := g.removeEntity(13)
		assert.ErrorIs(t, err, ecs.ErrNoSuchEntity)
	})
	assert.False(t, g.world.Alive(13))
}

func TestEndWithoutWinner(t *testing.T) {
	g, log := newDuel(t)
	require.NoError(t, g.End("abandoned"))
	require.NoError(t, g.End("again"))
	assert.Equal(t, StateEnded, g.State())
	assert.Equal(t, ecs.EntityID(0), g.Winner())
	assert.Equal(t, 1, log.count(event.KindGameEnded))
}

// Every card is listed by exactly one zone, the one its Card component names,
// and entities only disappear through removal events.
func TestRandomPlayKeepsZoneInvariants(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		g, log := newDuel(t, SeatSpec{Name: "a", Automated: true}, SeatSpec{Name: "b", Automated: true})
		start := g.EntityCount()
		policy := NewRandomPolicy(seed)

		for i := 0; i < 200 && g.State() == StateRunning; i++ {
			moved, err := g.Automate(policy)
			require.NoError(t, err)
			require.True(t, moved)

			seen := map[ecs.EntityID]int{}
			for _, z := range g.ZoneIDs() {
				for _, c := range g.ZoneCards(z) {
					seen[c]++
					card, ok := g.Card(c)
					require.True(t, ok)
					require.Equal(t, z, card.Zone)
				}
			}
			g.cards.Each(func(id ecs.EntityID, _ *component.Card) {
				require.Equal(t, 1, seen[id], "card %d", id)
			})
			require.Equal(t, start-log.count(event.KindEntityRemoved), g.EntityCount())
		}
	}
}
