// Package content holds the read-only game data: scripted, branch, NPC and
// random events, achievements, the questionnaire and NPC definitions. The
// catalog is decoded once and shared by every session.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"jianghu-lite/jianghu"
	"jianghu-lite/jianghu/npc"
)

//go:embed data/*.yaml
var dataFS embed.FS

var (
	ErrUnknownAnswer = errors.New("unknown questionnaire answer")
	ErrDuplicateID   = errors.New("duplicate id")
)

// NPCTrigger gates an NPC event. Every populated field must hold; AnyStats
// holds when at least one listed stat reaches its threshold.
type NPCTrigger struct {
	RoundIndex      int                  `yaml:"roundIndex"`
	AnyStats        map[jianghu.Stat]int `yaml:"anyStats,omitempty"`
	MinRelationship *int                 `yaml:"minRelationship,omitempty"`
	MaxRelationship *int                 `yaml:"maxRelationship,omitempty"`
	RequireFlag     string               `yaml:"requireFlag,omitempty"`
}

// Matches evaluates the trigger for npcID at roundIndex. A missing
// relationship counts as zero.
func (t NPCTrigger) Matches(npcID string, roundIndex int, p *jianghu.Player) bool {
	if roundIndex != t.RoundIndex {
		return false
	}
	if len(t.AnyStats) > 0 {
		stats := p.Stats()
		hit := false
		for s, want := range t.AnyStats {
			if stats.Get(s) >= want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	rel := 0
	if r, ok := p.Relationship(npcID); ok {
		rel = r.Value
	}
	if t.MinRelationship != nil && rel < *t.MinRelationship {
		return false
	}
	if t.MaxRelationship != nil && rel > *t.MaxRelationship {
		return false
	}
	if t.RequireFlag != "" && !p.HasFlag(t.RequireFlag) {
		return false
	}
	return true
}

// NPCEvent is an event an NPC can insert into the main line.
type NPCEvent struct {
	NPCID   string            `yaml:"npcId"`
	Trigger NPCTrigger        `yaml:"trigger"`
	Event   jianghu.GameEvent `yaml:"event"`
}

type randomFile struct {
	Pool []jianghu.RandomEvent            `yaml:"pool"`
	NPC  map[string][]jianghu.RandomEvent `yaml:"npc"`
}

// Catalog is the decoded game data. Accessors hand out copies.
type Catalog struct {
	events        []jianghu.GameEvent
	branch        map[int]jianghu.GameEvent
	npcEvents     []NPCEvent
	random        []jianghu.RandomEvent
	npcRandom     map[string][]jianghu.RandomEvent
	achievements  []jianghu.Achievement
	questionnaire Questionnaire
	npcs          *npc.Registry
}

// Load decodes the embedded data files.
func Load() (*Catalog, error) {
	return LoadFS(dataFS, "data")
}

// MustLoad is Load for package-level initialization; it panics on bad data.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFS decodes the catalog from the YAML files under dir in fsys.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	c := &Catalog{branch: make(map[int]jianghu.GameEvent)}

	if err := decodeFile(fsys, path.Join(dir, "events.yaml"), &c.events); err != nil {
		return nil, err
	}
	var branch []jianghu.GameEvent
	if err := decodeFile(fsys, path.Join(dir, "branch.yaml"), &branch); err != nil {
		return nil, err
	}
	for _, ev := range branch {
		if _, dup := c.branch[ev.ID]; dup {
			return nil, fmt.Errorf("branch event %d: %w", ev.ID, ErrDuplicateID)
		}
		c.branch[ev.ID] = ev
	}
	if err := decodeFile(fsys, path.Join(dir, "npc_events.yaml"), &c.npcEvents); err != nil {
		return nil, err
	}
	var rf randomFile
	if err := decodeFile(fsys, path.Join(dir, "random.yaml"), &rf); err != nil {
		return nil, err
	}
	c.random, c.npcRandom = rf.Pool, rf.NPC
	if err := decodeFile(fsys, path.Join(dir, "achievements.yaml"), &c.achievements); err != nil {
		return nil, err
	}
	if err := decodeFile(fsys, path.Join(dir, "questionnaire.yaml"), &c.questionnaire); err != nil {
		return nil, err
	}
	var defs []npc.Definition
	if err := decodeFile(fsys, path.Join(dir, "npcs.yaml"), &defs); err != nil {
		return nil, err
	}
	c.npcs = npc.NewRegistry(defs...)

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeFile(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) validate() error {
	for i, ev := range c.events {
		if ev.ID != i+1 {
			return fmt.Errorf("scripted event at index %d has id %d, want %d", i, ev.ID, i+1)
		}
		if err := validateOptions(ev); err != nil {
			return err
		}
	}
	for id, ev := range c.branch {
		if id < jianghu.BranchEventMinID {
			return fmt.Errorf("branch event %d outside the branch id band", id)
		}
		if err := validateOptions(ev); err != nil {
			return err
		}
	}
	for _, ne := range c.npcEvents {
		if !ne.Event.IsNPCEvent() {
			return fmt.Errorf("npc event %d outside the npc id band", ne.Event.ID)
		}
		if c.npcs.Get(ne.NPCID) == nil {
			return fmt.Errorf("npc event %d: unknown npc %q", ne.Event.ID, ne.NPCID)
		}
		if err := validateOptions(ne.Event); err != nil {
			return err
		}
	}
	seen := make(map[string]bool)
	for _, re := range c.random {
		if seen[re.ID] {
			return fmt.Errorf("random event %s: %w", re.ID, ErrDuplicateID)
		}
		seen[re.ID] = true
	}
	for _, list := range c.npcRandom {
		for _, re := range list {
			if seen[re.ID] {
				return fmt.Errorf("random event %s: %w", re.ID, ErrDuplicateID)
			}
			seen[re.ID] = true
		}
	}
	ach := make(map[string]bool)
	for _, a := range c.achievements {
		if ach[a.ID] {
			return fmt.Errorf("achievement %s: %w", a.ID, ErrDuplicateID)
		}
		ach[a.ID] = true
	}
	return nil
}

func validateOptions(ev jianghu.GameEvent) error {
	if len(ev.Options) == 0 {
		return fmt.Errorf("event %d has no options", ev.ID)
	}
	seen := make(map[string]bool)
	for _, o := range ev.Options {
		if seen[o.ID] {
			return fmt.Errorf("event %d option %s: %w", ev.ID, o.ID, ErrDuplicateID)
		}
		seen[o.ID] = true
	}
	return nil
}

// RoundCount is the number of scripted rounds.
func (c *Catalog) RoundCount() int { return len(c.events) }

// ScriptedEvent returns the main-line event for a round index.
func (c *Catalog) ScriptedEvent(roundIndex int) (*jianghu.GameEvent, bool) {
	if roundIndex < 0 || roundIndex >= len(c.events) {
		return nil, false
	}
	return c.events[roundIndex].Clone(), true
}

func (c *Catalog) BranchEvent(id int) (*jianghu.GameEvent, bool) {
	ev, ok := c.branch[id]
	if !ok {
		return nil, false
	}
	return ev.Clone(), true
}

// Event looks an event up by id across every band.
func (c *Catalog) Event(id int) (*jianghu.GameEvent, bool) {
	switch {
	case id >= jianghu.BranchEventMinID:
		return c.BranchEvent(id)
	case id >= jianghu.NPCEventMinID:
		for _, ne := range c.npcEvents {
			if ne.Event.ID == id {
				return ne.Event.Clone(), true
			}
		}
		return nil, false
	default:
		return c.ScriptedEvent(id - 1)
	}
}

// MatchNPCEvent returns the first NPC event whose trigger holds at roundIndex.
func (c *Catalog) MatchNPCEvent(roundIndex int, p *jianghu.Player) (*jianghu.GameEvent, string, bool) {
	for _, ne := range c.npcEvents {
		if ne.Trigger.Matches(ne.NPCID, roundIndex, p) {
			return ne.Event.Clone(), ne.NPCID, true
		}
	}
	return nil, "", false
}

// RandomPool returns a copy of the random event pool.
func (c *Catalog) RandomPool() []jianghu.RandomEvent {
	return cloneRandom(c.random)
}

// NPCEncounters returns the random encounters attached to an NPC.
func (c *Catalog) NPCEncounters(npcID string) []jianghu.RandomEvent {
	return cloneRandom(c.npcRandom[npcID])
}

func cloneRandom(list []jianghu.RandomEvent) []jianghu.RandomEvent {
	out := make([]jianghu.RandomEvent, len(list))
	for i, re := range list {
		re.Effects = re.Effects.Clone()
		out[i] = re
	}
	return out
}

// Achievements returns the achievement definitions, all locked.
func (c *Catalog) Achievements() []jianghu.Achievement {
	return jianghu.LockedAchievements(c.achievements)
}

func (c *Catalog) Questionnaire() Questionnaire { return c.questionnaire.clone() }

// NPCs returns the shared NPC registry.
func (c *Catalog) NPCs() *npc.Registry { return c.npcs }
