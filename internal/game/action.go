package game

import (
	"fmt"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/data"
)

// ActionRef names an action by its owning entity and name.
type ActionRef struct {
	Owner ecs.EntityID
	Name  string
}

func (r ActionRef) String() string { return fmt.Sprintf("%d/%s", r.Owner, r.Name) }

// Available is one entry of a player's legal-action list.
type Available struct {
	Ref            ActionRef
	RequiresTarget bool
}

// TargetSet is a slot an action needs filled with one entity. Candidates are
// evaluated against current state on every query.
type TargetSet struct {
	def      *data.TargetDef
	selected ecs.EntityID
}

// Selected returns the entity chosen when the action last ran.
func (t *TargetSet) Selected() ecs.EntityID { return t.selected }

// Action is a named operation bound to its owning entity.
type Action struct {
	Name    string
	Owner   ecs.EntityID
	Targets []*TargetSet

	def     *data.ActionDef
	effects []effect
}

func (a *Action) Ref() ActionRef { return ActionRef{Owner: a.Owner, Name: a.Name} }

func (a *Action) RequiresTarget() bool { return len(a.Targets) > 0 }

// ActionSet is the component listing the actions an entity owns, in
// ruleset order.
type ActionSet struct {
	List []*Action
}

func (s *ActionSet) Get(name string) *Action {
	for _, a := range s.List {
		if a.Name == name {
			return a
		}
	}
	return nil
}
