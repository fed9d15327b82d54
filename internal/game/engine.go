package game

import (
	"fmt"
	"slices"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
	"go.uber.org/zap"
)

// Engine validates and performs actions. Callers hold the game lock.
type Engine struct {
	g     *Game
	legal map[ecs.EntityID][]Available
}

func newEngine(g *Game) *Engine {
	return &Engine{g: g, legal: make(map[ecs.EntityID][]Available)}
}

func (e *Engine) lookup(ref ActionRef) *Action {
	set, ok := e.g.actions.Get(ref.Owner)
	if !ok {
		return nil
	}
	return set.Get(ref.Name)
}

// FindPossibleTargets evaluates target set i of a for actor against the
// entities alive right now.
func (e *Engine) FindPossibleTargets(a *Action, i int, actor ecs.EntityID) []ecs.EntityID {
	if i < 0 || i >= len(a.Targets) {
		return nil
	}
	def := a.Targets[i].def
	return e.g.world.Find(func(id ecs.EntityID) bool {
		return e.g.targetable(def, a.Owner, actor, id)
	})
}

// validate runs the precondition checks in order and returns the action.
func (e *Engine) validate(actor ecs.EntityID, ref ActionRef) (*Action, error) {
	g := e.g
	if g.State() != StateRunning {
		return nil, reject(ReasonGameNotRunning, "game %d is %s", g.ID, g.State())
	}
	if g.phase.Current() != actor {
		return nil, reject(ReasonNotYourTurn, "player %d does not hold the turn", actor)
	}
	a := e.lookup(ref)
	if a == nil {
		return nil, reject(ReasonActionNotFound, "no action %s", ref)
	}
	if !g.allows(a, actor) {
		return nil, reject(ReasonActionNotAllowed, "action %s not allowed for %d", ref, actor)
	}
	return a, nil
}

func (e *Engine) perform(actor ecs.EntityID, ref ActionRef, targets []ecs.EntityID) error {
	g := e.g
	a, err := e.validate(actor, ref)
	if err != nil {
		return err
	}
	if len(targets) != len(a.Targets) {
		return reject(ReasonInvalidTarget, "action %s takes %d targets, got %d", ref, len(a.Targets), len(targets))
	}
	for i, t := range targets {
		if !slices.Contains(e.FindPossibleTargets(a, i, actor), t) {
			return reject(ReasonInvalidTarget, "%d is not a legal target of %s", t, ref)
		}
	}

	ctx := &effectContext{actor: actor, source: a.Owner}
	if len(targets) > 0 {
		ctx.target = targets[0]
	}
	for _, ef := range a.effects {
		if err := ef.check(g, ctx); err != nil {
			return fmt.Errorf("perform %s: %w", ref, err)
		}
	}

	for i, t := range targets {
		a.Targets[i].selected = t
	}
	if a.def.Cost != nil {
		if err := g.addResource(actor, a.def.Cost.Resource, -g.costOf(a)); err != nil {
			e.recompute()
			return fmt.Errorf("perform %s: pay cost: %w", ref, err)
		}
	}
	for _, ef := range a.effects {
		if g.State() == StateEnded {
			// GameEnded was the last word; nothing follows it.
			return nil
		}
		if err := ef.apply(g, ctx); err != nil {
			e.recompute()
			return fmt.Errorf("perform %s: %w", ref, err)
		}
	}
	if g.State() == StateEnded {
		return nil
	}
	if err := g.settle(); err != nil {
		g.log.Warn("settle turn after action", zap.Stringer("action", ref), zap.Error(err))
	}
	e.recompute()

	return g.bus.Publish(event.ActionPerformed{
		Actor:  actor,
		Owner:  a.Owner,
		Action: a.Name,
		Target: ctx.target,
	}, nil)
}

// recompute rebuilds every player's legal-action list.
func (e *Engine) recompute() {
	clear(e.legal)
	if e.g.State() == StateEnded {
		return
	}
	owners := e.g.actions.IDs()
	for _, player := range e.g.order {
		var list []Available
		for _, owner := range owners {
			set, _ := e.g.actions.Get(owner)
			for _, a := range set.List {
				if e.g.allows(a, player) {
					list = append(list, Available{Ref: a.Ref(), RequiresTarget: a.RequiresTarget()})
				}
			}
		}
		e.legal[player] = list
	}
}

// LegalActions returns player's actions as of the last recompute.
func (e *Engine) LegalActions(player ecs.EntityID) []Available {
	return slices.Clone(e.legal[player])
}

// choices expands the legal list of player with target candidates.
func (e *Engine) choices(player ecs.EntityID) []Choice {
	legal := e.legal[player]
	out := make([]Choice, 0, len(legal))
	for _, av := range legal {
		c := Choice{Ref: av.Ref, RequiresTarget: av.RequiresTarget}
		if av.RequiresTarget {
			c.Targets = e.FindPossibleTargets(e.lookup(av.Ref), 0, player)
		}
		out = append(out, c)
	}
	return out
}
