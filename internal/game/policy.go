package game

import (
	"math/rand"
	"sync"

	"github.com/cardshifter/server/internal/core/ecs"
)

// Choice is one legal action offered to an automation policy. Targets holds
// the candidates of the action's target set when it requires one.
type Choice struct {
	Ref            ActionRef
	RequiresTarget bool
	Targets        []ecs.EntityID
}

// Move is a policy's decision.
type Move struct {
	Ref     ActionRef
	Targets []ecs.EntityID
}

// Policy picks moves for automated players. Returning false means the policy
// has nothing to do; the scheduler treats that as a contract violation when
// the policy holds the turn.
type Policy interface {
	Choose(player ecs.EntityID, choices []Choice) (Move, bool)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(player ecs.EntityID, choices []Choice) (Move, bool)

func (f PolicyFunc) Choose(player ecs.EntityID, choices []Choice) (Move, bool) {
	return f(player, choices)
}

// RandomPolicy plays a uniformly random legal action on a random target.
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPolicy(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPolicy) Choose(_ ecs.EntityID, choices []Choice) (Move, bool) {
	if len(choices) == 0 {
		return Move{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c := choices[p.rng.Intn(len(choices))]
	mv := Move{Ref: c.Ref}
	if c.RequiresTarget {
		if len(c.Targets) == 0 {
			return Move{}, false
		}
		mv.Targets = []ecs.EntityID{c.Targets[p.rng.Intn(len(c.Targets))]}
	}
	return mv, true
}
