package game

import (
	"fmt"
	"slices"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/data"
)

// effectContext binds an effect to the entities of one resolution.
type effectContext struct {
	actor  ecs.EntityID // acting player
	source ecs.EntityID // action owner, or the player for turn rules
	target ecs.EntityID
}

// effect is one compiled ruleset step. check runs for every effect of an
// action before any apply.
type effect struct {
	def data.EffectDef
}

func compileEffects(defs []data.EffectDef) []effect {
	out := make([]effect, len(defs))
	for i, d := range defs {
		out[i] = effect{def: d}
	}
	return out
}

func (e effect) subject(g *Game, ctx *effectContext) ecs.EntityID {
	subject := e.def.Subject
	if subject == "" && e.def.Effect == data.EffectDamage {
		subject = data.SubjectTarget
	}
	switch subject {
	case data.SubjectOwner:
		return g.ownerOf(ctx.source)
	case data.SubjectTarget:
		return ctx.target
	default:
		return ctx.source
	}
}

func (e effect) amount(g *Game, ctx *effectContext) int32 {
	if e.def.AmountFrom != "" {
		return g.Resource(ctx.source, e.def.AmountFrom)
	}
	return e.def.Amount
}

func (e effect) check(g *Game, ctx *effectContext) error {
	subj := e.subject(g, ctx)
	switch e.def.Effect {
	case data.EffectEndTurn:
		return nil
	case data.EffectMove:
		c, ok := g.cards.Get(subj)
		if !ok {
			return fmt.Errorf("%s: %d is not a card: %w", e.def.Effect, subj, ecs.ErrNoSuchEntity)
		}
		if g.playerZone(c.Owner, e.def.ToZone) == 0 {
			return fmt.Errorf("%s: player %d has no zone %q", e.def.Effect, c.Owner, e.def.ToZone)
		}
	case data.EffectDraw, data.EffectSetCards:
		if !g.players.Has(subj) {
			return fmt.Errorf("%s: %d is not a player: %w", e.def.Effect, subj, ecs.ErrNoSuchEntity)
		}
		for _, z := range []string{e.def.FromZone, e.def.ToZone, e.def.Zone} {
			if z != "" && g.playerZone(subj, z) == 0 {
				return fmt.Errorf("%s: player %d has no zone %q", e.def.Effect, subj, z)
			}
		}
	case data.EffectSet, data.EffectAdd, data.EffectDamage:
		if !g.resources.Has(subj) {
			return fmt.Errorf("%s: %d has no resources: %w", e.def.Effect, subj, ecs.ErrNoSuchEntity)
		}
	case data.EffectDestroy:
		if !g.world.Alive(subj) {
			return fmt.Errorf("%s: %d: %w", e.def.Effect, subj, ecs.ErrNoSuchEntity)
		}
	case data.EffectReveal:
		if owner := g.ownerOf(subj); g.playerZone(owner, e.def.Zone) == 0 {
			return fmt.Errorf("%s: player %d has no zone %q", e.def.Effect, owner, e.def.Zone)
		}
	default:
		return fmt.Errorf("unknown effect %q", e.def.Effect)
	}
	return nil
}

func (e effect) apply(g *Game, ctx *effectContext) error {
	subj := e.subject(g, ctx)
	if e.def.Effect != data.EffectEndTurn && !g.world.Alive(subj) {
		// An earlier step of the same resolution removed the subject.
		return nil
	}
	switch e.def.Effect {
	case data.EffectMove:
		c, _ := g.cards.Get(subj)
		return g.moveEntity(subj, c.Zone, g.playerZone(c.Owner, e.def.ToZone))
	case data.EffectDraw:
		from, to := g.playerZone(subj, e.def.FromZone), g.playerZone(subj, e.def.ToZone)
		n := max(e.def.Count, 1)
		for i := 0; i < n; i++ {
			z, _ := g.zones.Get(from)
			if len(z.Cards) == 0 {
				break
			}
			if err := g.moveEntity(z.Cards[0], from, to); err != nil {
				return err
			}
		}
	case data.EffectSet:
		return g.setResource(subj, e.def.Resource, e.amount(g, ctx))
	case data.EffectAdd:
		v := g.Resource(subj, e.def.Resource) + e.amount(g, ctx)
		if e.def.Max > 0 && v > e.def.Max {
			v = e.def.Max
		}
		return g.setResource(subj, e.def.Resource, v)
	case data.EffectDamage:
		return g.damage(ctx.source, subj, e.amount(g, ctx), e.def)
	case data.EffectSetCards:
		z, _ := g.zones.Get(g.playerZone(subj, e.def.Zone))
		for _, card := range slices.Clone(z.Cards) {
			if err := g.setResource(card, e.def.Resource, e.def.Amount); err != nil {
				return err
			}
		}
	case data.EffectDestroy:
		return g.removeEntity(subj)
	case data.EffectReveal:
		zone := g.playerZone(g.ownerOf(subj), e.def.Zone)
		for _, viewer := range g.order {
			if err := g.revealZone(zone, viewer); err != nil {
				return err
			}
		}
	case data.EffectEndTurn:
		return g.phase.Advance()
	}
	return nil
}

// damage lowers the victim's life value by amount. With mutual set, a card
// victim hits back with its own amount_from value.
func (g *Game) damage(source, victim ecs.EntityID, amount int32, def data.EffectDef) error {
	var counter int32
	if def.Mutual && g.cards.Has(victim) && def.AmountFrom != "" {
		counter = g.Resource(victim, def.AmountFrom)
	}
	res := g.lifeResource(victim)
	if err := g.addResource(victim, res, -amount); err != nil {
		return err
	}
	if counter > 0 && g.world.Alive(source) {
		return g.addResource(source, g.lifeResource(source), -counter)
	}
	return nil
}

func (g *Game) lifeResource(id ecs.EntityID) string {
	if g.players.Has(id) {
		return g.ruleset.LoseResource
	}
	return g.ruleset.DeathResource
}

// runEffects checks every effect, then applies them in order.
func (g *Game) runEffects(effects []effect, ctx *effectContext) error {
	for _, e := range effects {
		if err := e.check(g, ctx); err != nil {
			return err
		}
	}
	for _, e := range effects {
		if g.State() == StateEnded {
			return nil
		}
		if err := e.apply(g, ctx); err != nil {
			return err
		}
	}
	return nil
}

// ownerOf returns the player owning id: the card's owner, or id itself for a
// player.
func (g *Game) ownerOf(id ecs.EntityID) ecs.EntityID {
	if c, ok := g.cards.Get(id); ok {
		return c.Owner
	}
	if g.players.Has(id) {
		return id
	}
	return 0
}

func (g *Game) costOf(a *Action) int32 {
	if a.def.Cost == nil {
		return 0
	}
	if a.def.Cost.AmountFrom != "" {
		return g.Resource(a.Owner, a.def.Cost.AmountFrom)
	}
	return a.def.Cost.Amount
}

// allows evaluates the allowance predicate of a for actor, turn aside.
func (g *Game) allows(a *Action, actor ecs.EntityID) bool {
	if !g.world.Alive(a.Owner) || g.ownerOf(a.Owner) != actor {
		return false
	}
	if p, ok := g.players.Get(actor); !ok || p.Eliminated {
		return false
	}
	if a.def.Owner == data.OwnerCard && a.def.Zone != "" {
		c, _ := g.cards.Get(a.Owner)
		if c == nil || g.zoneName(c.Zone) != a.def.Zone {
			return false
		}
	}
	for _, req := range a.def.Require {
		if g.Resource(a.Owner, req.Resource) < req.Min {
			return false
		}
	}
	if a.def.Cost != nil && g.Resource(actor, a.def.Cost.Resource) < g.costOf(a) {
		return false
	}
	for i := range a.Targets {
		if len(g.engine.FindPossibleTargets(a, i, actor)) == 0 {
			return false
		}
	}
	return true
}

// targetable evaluates a target set's predicate for one candidate.
func (g *Game) targetable(def *data.TargetDef, source, actor, candidate ecs.EntityID) bool {
	if candidate == source {
		return false
	}
	if c, ok := g.cards.Get(candidate); ok {
		if len(def.Zones) > 0 && !slices.Contains(def.Zones, g.zoneName(c.Zone)) {
			return false
		}
		return related(def.Relation, c.Owner, actor)
	}
	if p, ok := g.players.Get(candidate); ok {
		return def.Players && !p.Eliminated && related(def.Relation, candidate, actor)
	}
	return false
}

func related(relation string, owner, actor ecs.EntityID) bool {
	switch relation {
	case data.RelationOwn:
		return owner == actor
	case data.RelationOpponent:
		return owner != actor
	default:
		return true
	}
}

func (g *Game) zoneName(zone ecs.EntityID) string {
	if z, ok := g.zones.Get(zone); ok {
		return z.Name
	}
	return ""
}

// bindAction instantiates def on owner.
func (g *Game) bindAction(owner ecs.EntityID, def *data.ActionDef) *Action {
	a := &Action{
		Name:    def.Name,
		Owner:   owner,
		def:     def,
		effects: compileEffects(def.Effects),
	}
	if def.Target != nil {
		a.Targets = []*TargetSet{{def: def.Target}}
	}
	set, ok := g.actions.Get(owner)
	if !ok {
		set = &ActionSet{}
		g.actions.Set(owner, set)
	}
	set.List = append(set.List, a)
	return a
}
