package jianghu

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// DefaultPlayerName is given to every new character.
const DefaultPlayerName = "江湖小白"

// RelationshipType classifies a relationship value.
type RelationshipType string

const (
	RelationFriend  RelationshipType = "friend"
	RelationEnemy   RelationshipType = "enemy"
	RelationNeutral RelationshipType = "neutral"
	RelationMentor  RelationshipType = "mentor"
	RelationRival   RelationshipType = "rival"
)

const (
	RelationshipMin = -100
	RelationshipMax = 100
)

// Relationship is the player's standing with one NPC.
type Relationship struct {
	TargetID   string           `json:"targetId"`
	TargetName string           `json:"targetName"`
	Value      int              `json:"value"`
	Type       RelationshipType `json:"type"`
}

// StatApplier turns a stat change into a new vector. Limits and RulesEngine
// both satisfy it.
type StatApplier interface {
	Apply(stats StatVector, delta Delta) StatVector
}

type ruleApplier struct{ e *RulesEngine }

func (r ruleApplier) Apply(stats StatVector, delta Delta) StatVector {
	return r.e.ApplyChanges(stats, delta)
}

// WithRules adapts a RulesEngine to StatApplier.
func WithRules(e *RulesEngine) StatApplier { return ruleApplier{e: e} }

// Player owns all per-character state of a session. It is not safe for
// concurrent use; the session engine serializes access.
type Player struct {
	ID         string
	Name       string
	Background string

	stats         StatVector
	history       []HistoryEntry
	flags         map[string]string
	debts         []Debt
	grudges       []Grudge
	relationships map[string]Relationship
	relVersion    uint64
	story         StoryFlags
	round         int

	applier StatApplier
	log     *slog.Logger
}

// NewPlayer creates a player with DefaultStats and the minimal clamp.
func NewPlayer() *Player {
	return &Player{
		ID:            uuid.NewString(),
		Name:          DefaultPlayerName,
		stats:         DefaultStats(),
		flags:         make(map[string]string),
		relationships: make(map[string]Relationship),
		story:         StoryFlags{KeyChoices: make(map[int]string)},
		applier:       DefaultLimits(),
		log:           slog.Default(),
	}
}

// SetApplier swaps the clamp used by ApplyStatsChange. nil restores the
// minimal clamp.
func (p *Player) SetApplier(a StatApplier) {
	if a == nil {
		a = DefaultLimits()
	}
	p.applier = a
}

func (p *Player) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	p.log = l
}

// SetRound sets the round stamped on new history entries.
func (p *Player) SetRound(round int) { p.round = round }

func (p *Player) Round() int { return p.round }

func (p *Player) Stats() StatVector { return p.stats }

// ApplyStatsChange applies delta through the player's applier and logs one
// history entry with the before and after vectors.
func (p *Player) ApplyStatsChange(delta Delta) StatVector {
	return p.applyWith(p.applier, delta, "属性变化")
}

// ApplyStatsChangeWithRules applies delta through the full rule cascade.
func (p *Player) ApplyStatsChangeWithRules(delta Delta, rules *RulesEngine) StatVector {
	return p.applyWith(WithRules(rules), delta, "属性变化（规则）")
}

func (p *Player) applyWith(a StatApplier, delta Delta, desc string) StatVector {
	before := p.stats
	p.stats = a.Apply(before, delta)
	p.addHistory(HistoryEntry{
		Round:       p.round,
		Kind:        HistoryEvent,
		Description: desc,
		Effects:     delta.Clone(),
		Stats:       &StatsChange{Before: before, After: p.stats},
	})
	for _, s := range delta.Keys() {
		if v := delta[s]; v > 10 || v < -10 {
			p.log.Warn("unusually large stat change", "stat", s, "change", v)
		}
	}
	return p.stats
}

func (p *Player) addHistory(h HistoryEntry) {
	p.history = append(p.history, h)
}

// AddHistory appends an entry to the history log.
func (p *Player) AddHistory(h HistoryEntry) {
	p.addHistory(h.clone())
}

// History returns a copy of the history log.
func (p *Player) History() []HistoryEntry {
	out := make([]HistoryEntry, len(p.history))
	for i, h := range p.history {
		out[i] = h.clone()
	}
	return out
}

// Flags

func (p *Player) SetFlag(key, value string) { p.flags[key] = value }

func (p *Player) GetFlag(key string) (string, bool) {
	v, ok := p.flags[key]
	return v, ok
}

func (p *Player) HasFlag(key string) bool {
	_, ok := p.flags[key]
	return ok
}

func (p *Player) ClearFlag(key string) { delete(p.flags, key) }

func (p *Player) Flags() map[string]string {
	out := make(map[string]string, len(p.flags))
	for k, v := range p.flags {
		out[k] = v
	}
	return out
}

// Relationships

func clampRelationship(v int) int {
	if v < RelationshipMin {
		return RelationshipMin
	}
	if v > RelationshipMax {
		return RelationshipMax
	}
	return v
}

// SetRelationship stores an explicit relationship. The version counter only
// moves when the value changes.
func (p *Player) SetRelationship(targetID, targetName string, value int, kind RelationshipType) {
	if kind == "" {
		kind = RelationNeutral
	}
	value = clampRelationship(value)
	prev, existed := p.relationships[targetID]
	if targetName == "" {
		targetName = prev.TargetName
	}
	p.relationships[targetID] = Relationship{
		TargetID:   targetID,
		TargetName: targetName,
		Value:      value,
		Type:       kind,
	}
	if !existed || prev.Value != value {
		p.relVersion++
	}
}

// ModifyRelationship shifts an existing relationship by change and reclassifies it.
func (p *Player) ModifyRelationship(targetID string, change int) error {
	rel, ok := p.relationships[targetID]
	if !ok {
		return ErrNoRelationship
	}
	next := clampRelationship(rel.Value + change)
	rel.Type = RelationshipTypeFor(next)
	if next != rel.Value {
		rel.Value = next
		p.relVersion++
	}
	p.relationships[targetID] = rel
	return nil
}

// RelationshipTypeFor is the classification used by ModifyRelationship.
func RelationshipTypeFor(value int) RelationshipType {
	switch {
	case value > 60:
		return RelationFriend
	case value < -60:
		return RelationEnemy
	default:
		return RelationNeutral
	}
}

func (p *Player) Relationship(targetID string) (Relationship, bool) {
	r, ok := p.relationships[targetID]
	return r, ok
}

// Relationships returns a copy of the relationship map.
func (p *Player) Relationships() map[string]Relationship {
	out := make(map[string]Relationship, len(p.relationships))
	for k, v := range p.relationships {
		out[k] = v
	}
	return out
}

// RelationshipValues returns NPC id → value.
func (p *Player) RelationshipValues() map[string]int {
	out := make(map[string]int, len(p.relationships))
	for k, v := range p.relationships {
		out[k] = v.Value
	}
	return out
}

// RelationshipVersion increases whenever any relationship value changes.
func (p *Player) RelationshipVersion() uint64 { return p.relVersion }

// Summary is a compact read model of the player.
type Summary struct {
	Name          string
	Background    string
	Stats         StatVector
	HistoryCount  int
	ActiveDebts   int
	ActiveGrudges int
	Relationships int
	Flags         []string
}

func (p *Player) Summary() Summary {
	flags := make([]string, 0, len(p.flags))
	for k := range p.flags {
		flags = append(flags, k)
	}
	sort.Strings(flags)
	return Summary{
		Name:          p.Name,
		Background:    p.Background,
		Stats:         p.stats,
		HistoryCount:  len(p.history),
		ActiveDebts:   len(p.ActiveDebts()),
		ActiveGrudges: len(p.ActiveGrudges()),
		Relationships: len(p.relationships),
		Flags:         flags,
	}
}

// PlayerData is the serializable form of a Player.
type PlayerData struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Background          string                  `json:"background,omitempty"`
	Stats               StatVector              `json:"stats"`
	History             []HistoryEntry          `json:"history,omitempty"`
	Flags               map[string]string       `json:"flags,omitempty"`
	Debts               []Debt                  `json:"debts,omitempty"`
	Grudges             []Grudge                `json:"grudges,omitempty"`
	Relationships       map[string]Relationship `json:"relationships,omitempty"`
	RelationshipVersion uint64                  `json:"relationshipVersion"`
	StoryFlags          StoryFlags              `json:"storyFlags"`
	Round               int                     `json:"round"`
}

// Export deep-copies the player into its serializable form.
func (p *Player) Export() PlayerData {
	return PlayerData{
		ID:                  p.ID,
		Name:                p.Name,
		Background:          p.Background,
		Stats:               p.stats,
		History:             p.History(),
		Flags:               p.Flags(),
		Debts:               p.Debts(),
		Grudges:             p.Grudges(),
		Relationships:       p.Relationships(),
		RelationshipVersion: p.relVersion,
		StoryFlags:          p.story.clone(),
		Round:               p.round,
	}
}

// RestorePlayer rebuilds a player from exported data. The result uses the
// minimal clamp and the default logger.
func RestorePlayer(d PlayerData) *Player {
	p := NewPlayer()
	if d.ID != "" {
		p.ID = d.ID
	}
	if d.Name != "" {
		p.Name = d.Name
	}
	p.Background = d.Background
	p.stats = d.Stats
	p.history = make([]HistoryEntry, 0, len(d.History))
	for _, h := range d.History {
		p.history = append(p.history, h.clone())
	}
	for k, v := range d.Flags {
		p.flags[k] = v
	}
	p.debts = append([]Debt(nil), d.Debts...)
	p.grudges = append([]Grudge(nil), d.Grudges...)
	for k, v := range d.Relationships {
		p.relationships[k] = v
	}
	p.relVersion = d.RelationshipVersion
	p.story = d.StoryFlags.clone()
	if p.story.KeyChoices == nil {
		p.story.KeyChoices = make(map[int]string)
	}
	p.round = d.Round
	return p
}

// Clone returns a deep copy sharing the applier and logger.
func (p *Player) Clone() *Player {
	c := RestorePlayer(p.Export())
	c.applier = p.applier
	c.log = p.log
	return c
}
