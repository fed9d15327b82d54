package data

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rulesets/*.yaml
var builtin embed.FS

// Visibility says which players know a zone's contents.
type Visibility string

const (
	VisibleToOwner Visibility = "owner"
	VisibleToAll   Visibility = "all"
	VisibleToNone  Visibility = "none"
)

// Effect kinds understood by the game rules interpreter.
const (
	EffectMove     = "move"
	EffectDraw     = "draw"
	EffectSet      = "set"
	EffectAdd      = "add"
	EffectDamage   = "damage"
	EffectSetCards = "set_cards"
	EffectDestroy  = "destroy"
	EffectEndTurn  = "end_turn"
	EffectReveal   = "reveal" // shows zone of the subject's player to everyone
)

// Effect subjects. The source is the entity owning the action, or the player
// for start and turn-start effects.
const (
	SubjectSource = "source"
	SubjectOwner  = "owner"
	SubjectTarget = "target"
)

// Relations between a candidate and the acting player.
const (
	RelationOpponent = "opponent"
	RelationOwn      = "own"
	RelationAny      = "any"
)

// Action owner kinds.
const (
	OwnerCard   = "card"
	OwnerPlayer = "player"
)

// ZoneDef declares one per-player zone.
type ZoneDef struct {
	Name       string     `yaml:"name"`
	Visibility Visibility `yaml:"visibility"`
	Shuffle    bool       `yaml:"shuffle"`
}

// CardDef is a card template; Count copies go into each player's deck.
type CardDef struct {
	Name      string           `yaml:"name"`
	Count     int              `yaml:"count"`
	Resources map[string]int32 `yaml:"resources"`
}

// DeckDef places the deck cards into Zone at setup.
type DeckDef struct {
	Zone  string    `yaml:"zone"`
	Cards []CardDef `yaml:"cards"`
}

// EffectDef is one step of an action or turn rule.
type EffectDef struct {
	Effect     string `yaml:"effect"`
	Subject    string `yaml:"subject"`
	Resource   string `yaml:"resource"`
	Amount     int32  `yaml:"amount"`
	AmountFrom string `yaml:"amount_from"` // resource on the source
	Max        int32  `yaml:"max"`         // cap for add, 0 = none
	FromZone   string `yaml:"from_zone"`
	ToZone     string `yaml:"to_zone"`
	Zone       string `yaml:"zone"`
	Count      int    `yaml:"count"`
	Mutual     bool   `yaml:"mutual"` // damage: target strikes back
}

// CostDef is paid by the acting player before effects run.
type CostDef struct {
	Resource   string `yaml:"resource"`
	Amount     int32  `yaml:"amount"`
	AmountFrom string `yaml:"amount_from"`
}

// RequireDef gates an action on a resource of its source.
type RequireDef struct {
	Resource string `yaml:"resource"`
	Min      int32  `yaml:"min"`
}

// TargetDef describes the candidates of an action's single target set.
type TargetDef struct {
	Zones    []string `yaml:"zones"`
	Relation string   `yaml:"relation"`
	Players  bool     `yaml:"players"`
}

// ActionDef is an action template bound to every matching owner entity.
type ActionDef struct {
	Name    string       `yaml:"name"`
	Owner   string       `yaml:"owner"`
	Zone    string       `yaml:"zone"` // card actions: zone the card must be in
	Cost    *CostDef     `yaml:"cost"`
	Require []RequireDef `yaml:"require"`
	Target  *TargetDef   `yaml:"target"`
	Effects []EffectDef  `yaml:"effects"`
}

// Ruleset is the full content of one game mode.
type Ruleset struct {
	Name            string           `yaml:"name"`
	Description     string           `yaml:"description"`
	Players         int              `yaml:"players"`
	PlayerResources map[string]int32 `yaml:"player_resources"`
	Zones           []ZoneDef        `yaml:"zones"`
	Deck            DeckDef          `yaml:"deck"`
	Start           []EffectDef      `yaml:"start"`
	TurnStart       []EffectDef      `yaml:"turn_start"`
	Actions         []ActionDef      `yaml:"actions"`
	LoseResource    string           `yaml:"lose_resource"`
	DeathResource   string           `yaml:"death_resource"`
	Graveyard       string           `yaml:"graveyard"`
}

// Zone returns the zone definition named name, or nil.
func (r *Ruleset) Zone(name string) *ZoneDef {
	for i := range r.Zones {
		if r.Zones[i].Name == name {
			return &r.Zones[i]
		}
	}
	return nil
}

// Validate checks that every name the ruleset references is declared.
func (r *Ruleset) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("ruleset has no name")
	}
	if r.Players < 1 {
		return fmt.Errorf("ruleset %s: players must be at least 1", r.Name)
	}
	seen := make(map[string]bool, len(r.Zones))
	for _, z := range r.Zones {
		switch z.Visibility {
		case VisibleToOwner, VisibleToAll, VisibleToNone:
		default:
			return fmt.Errorf("ruleset %s: zone %q: unknown visibility %q", r.Name, z.Name, z.Visibility)
		}
		if seen[z.Name] {
			return fmt.Errorf("ruleset %s: duplicate zone %q", r.Name, z.Name)
		}
		seen[z.Name] = true
	}
	zone := func(where, name string) error {
		if name != "" && !seen[name] {
			return fmt.Errorf("ruleset %s: %s: unknown zone %q", r.Name, where, name)
		}
		return nil
	}
	if len(r.Deck.Cards) > 0 && r.Deck.Zone == "" {
		return fmt.Errorf("ruleset %s: deck has cards but no zone", r.Name)
	}
	if err := zone("deck", r.Deck.Zone); err != nil {
		return err
	}
	if err := zone("graveyard", r.Graveyard); err != nil {
		return err
	}
	effects := func(where string, list []EffectDef) error {
		for i, e := range list {
			at := fmt.Sprintf("%s effect %d", where, i)
			switch e.Effect {
			case EffectMove, EffectDraw, EffectSet, EffectAdd, EffectDamage,
				EffectSetCards, EffectDestroy, EffectEndTurn:
			case EffectReveal:
				if e.Zone == "" {
					return fmt.Errorf("ruleset %s: %s: reveal needs a zone", r.Name, at)
				}
			default:
				return fmt.Errorf("ruleset %s: %s: unknown effect %q", r.Name, at, e.Effect)
			}
			switch e.Subject {
			case "", SubjectSource, SubjectOwner, SubjectTarget:
			default:
				return fmt.Errorf("ruleset %s: %s: unknown subject %q", r.Name, at, e.Subject)
			}
			for _, z := range []string{e.FromZone, e.ToZone, e.Zone} {
				if err := zone(at, z); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := effects("start", r.Start); err != nil {
		return err
	}
	if err := effects("turn_start", r.TurnStart); err != nil {
		return err
	}
	names := make(map[string]bool, len(r.Actions))
	for _, a := range r.Actions {
		where := "action " + a.Name
		if a.Name == "" || names[a.Name] {
			return fmt.Errorf("ruleset %s: action name %q empty or duplicate", r.Name, a.Name)
		}
		names[a.Name] = true
		if a.Owner != OwnerCard && a.Owner != OwnerPlayer {
			return fmt.Errorf("ruleset %s: %s: unknown owner %q", r.Name, where, a.Owner)
		}
		if err := zone(where, a.Zone); err != nil {
			return err
		}
		if a.Target != nil {
			for _, z := range a.Target.Zones {
				if err := zone(where+" target", z); err != nil {
					return err
				}
			}
			switch a.Target.Relation {
			case "", RelationOpponent, RelationOwn, RelationAny:
			default:
				return fmt.Errorf("ruleset %s: %s: unknown relation %q", r.Name, where, a.Target.Relation)
			}
		}
		if err := effects(where, a.Effects); err != nil {
			return err
		}
	}
	return nil
}

// ParseRuleset decodes and validates one ruleset document.
func ParseRuleset(raw []byte) (*Ruleset, error) {
	var r Ruleset
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// RulesetTable holds all loaded rulesets by name.
type RulesetTable struct {
	rulesets map[string]*Ruleset
}

// LoadRulesetTable loads the built-in rulesets, then every *.yaml file in dir.
// A file ruleset replaces a built-in one of the same name. An empty dir loads
// only the built-ins.
func LoadRulesetTable(dir string) (*RulesetTable, error) {
	t := &RulesetTable{rulesets: make(map[string]*Ruleset)}
	if err := t.loadFS(builtin, "rulesets"); err != nil {
		return nil, err
	}
	if dir == "" {
		return t, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("read rulesets dir: %w", err)
	}
	if err := t.loadFS(os.DirFS(dir), "."); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *RulesetTable) loadFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read rulesets: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		raw, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return fmt.Errorf("read ruleset %s: %w", e.Name(), err)
		}
		r, err := ParseRuleset(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		t.rulesets[strings.ToLower(r.Name)] = r
	}
	return nil
}

// Get returns a ruleset by case-insensitive name, or nil if not found.
func (t *RulesetTable) Get(name string) *Ruleset {
	return t.rulesets[strings.ToLower(name)]
}

// Names returns the loaded ruleset names, sorted.
func (t *RulesetTable) Names() []string {
	out := make([]string, 0, len(t.rulesets))
	for _, r := range t.rulesets {
		out = append(out, r.Name)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of loaded rulesets.
func (t *RulesetTable) Count() int {
	return len(t.rulesets)
}
