package game

import (
	"context"
	"testing"
	"time"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func endTurnPolicy() Policy {
	return PolicyFunc(func(player ecs.EntityID, choices []Choice) (Move, bool) {
		for _, c := range choices {
			if c.Ref.Name == "End Turn" {
				return Move{Ref: c.Ref}, true
			}
		}
		return Move{}, false
	})
}

func TestTickMovesOnlyForAutomatedHolder(t *testing.T) {
	g, log := newDuel(t, SeatSpec{Name: "human"}, SeatSpec{Name: "bot", Automated: true})
	s := NewScheduler(g, endTurnPolicy(), time.Hour, zaptest.NewLogger(t))

	assert.False(t, s.Tick())
	assert.Empty(t, log.events)

	require.NoError(t, g.Perform(p1, endTurn(p1), nil))
	assert.True(t, s.Tick())
	assert.Equal(t, p1, g.CurrentPlayer())
}

func TestTickWithoutMoveMutatesNothing(t *testing.T) {
	g, log := newDuel(t, SeatSpec{Name: "bot", Automated: true}, SeatSpec{Name: "human"})
	idle := PolicyFunc(func(ecs.EntityID, []Choice) (Move, bool) { return Move{}, false })
	s := NewScheduler(g, idle, time.Hour, zaptest.NewLogger(t))

	assert.False(t, s.Tick())
	assert.Empty(t, log.events)
	assert.Equal(t, p1, g.CurrentPlayer())

	_, err := g.Automate(idle)
	assert.ErrorIs(t, err, ErrNoAutomatedMove)
}

func TestTickWithIllegalMoveIsRejected(t *testing.T) {
	g, log := newDuel(t, SeatSpec{Name: "bot", Automated: true}, SeatSpec{Name: "human"})
	cheat := PolicyFunc(func(ecs.EntityID, []Choice) (Move, bool) {
		return Move{Ref: play(13)}, true
	})
	s := NewScheduler(g, cheat, time.Hour, zaptest.NewLogger(t))
	assert.False(t, s.Tick())
	assert.Empty(t, log.events)
}

func TestSchedulerRunsUntilStopped(t *testing.T) {
	g, _ := newDuel(t, SeatSpec{Name: "a", Automated: true}, SeatSpec{Name: "b", Automated: true})
	s := NewScheduler(g, endTurnPolicy(), time.Millisecond, zaptest.NewLogger(t))
	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		turn := 0
		g.Do(func() { turn = g.Turn() })
		return turn >= 4
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	var turn int
	g.Do(func() { turn = g.Turn() })
	time.Sleep(10 * time.Millisecond)
	g.Do(func() { assert.Equal(t, turn, g.Turn()) })
	s.Stop()
}

func TestRandomPolicy(t *testing.T) {
	p := NewRandomPolicy(7)
	_, ok := p.Choose(2, nil)
	assert.False(t, ok)

	choices := []Choice{{Ref: attack(10), RequiresTarget: true, Targets: []ecs.EntityID{3, 15}}}
	mv, ok := p.Choose(2, choices)
	require.True(t, ok)
	assert.Equal(t, attack(10), mv.Ref)
	require.Len(t, mv.Targets, 1)
	assert.Contains(t, []ecs.EntityID{3, 15}, mv.Targets[0])
}
