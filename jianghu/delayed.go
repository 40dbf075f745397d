package jianghu

import (
	"fmt"

	"github.com/google/uuid"
)

// DelayedKind tags the payload of a DelayedEffect.
type DelayedKind string

const (
	DelayedFlag         DelayedKind = "flag"
	DelayedDebt         DelayedKind = "debt"
	DelayedRelationship DelayedKind = "relationship"
	DelayedStats        DelayedKind = "stats"
	DelayedEvent        DelayedKind = "event"
)

// Condition gates a delayed effect. The zero value always holds.
type Condition struct {
	MinStats    map[Stat]int `json:"minStats,omitempty" yaml:"minStats,omitempty"`
	RequireFlag string       `json:"requireFlag,omitempty" yaml:"requireFlag,omitempty"`
}

func (c Condition) Holds(p *Player) bool {
	stats := p.Stats()
	for s, want := range c.MinStats {
		if stats.Get(s) < want {
			return false
		}
	}
	if c.RequireFlag != "" && !p.HasFlag(c.RequireFlag) {
		return false
	}
	return true
}

type FlagPayload struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

type RelationshipPayload struct {
	NPCID   string `json:"npcId" yaml:"npcId"`
	NPCName string `json:"npcName" yaml:"npcName"`
	Change  int    `json:"change" yaml:"change"`
}

type EventPayload struct {
	EventID int `json:"eventId" yaml:"eventId"`
}

// DelayedEffect is a scheduled consequence. It fires in the first round at or
// after TriggerRound in which its Condition holds, then goes inactive. Exactly
// one payload matches Kind.
type DelayedEffect struct {
	ID           string      `json:"id"`
	TriggerRound int         `json:"triggerRound"`
	Kind         DelayedKind `json:"kind"`
	Description  string      `json:"description"`
	Active       bool        `json:"active"`
	Condition    Condition   `json:"condition"`

	Stats        Delta                `json:"stats,omitempty"`
	Flag         *FlagPayload         `json:"flag,omitempty"`
	Debt         *Debt                `json:"debt,omitempty"`
	Relationship *RelationshipPayload `json:"relationship,omitempty"`
	Event        *EventPayload        `json:"event,omitempty"`
}

// DelayedSpec is the content-side description of a delayed effect, scheduled
// InRounds after the round in which the owning option is chosen.
type DelayedSpec struct {
	InRounds     int                  `json:"inRounds" yaml:"inRounds"`
	Kind         DelayedKind          `json:"kind" yaml:"kind"`
	Description  string               `json:"description" yaml:"description"`
	Condition    Condition            `json:"condition,omitempty" yaml:"condition,omitempty"`
	Stats        Delta                `json:"stats,omitempty" yaml:"stats,omitempty"`
	Flag         *FlagPayload         `json:"flag,omitempty" yaml:"flag,omitempty"`
	Debt         *DebtSpec            `json:"debt,omitempty" yaml:"debt,omitempty"`
	Relationship *RelationshipPayload `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	Event        *EventPayload        `json:"event,omitempty" yaml:"event,omitempty"`
}

// Schedule turns a spec into an active effect relative to round.
func (s DelayedSpec) Schedule(round int) (DelayedEffect, error) {
	d := DelayedEffect{
		ID:           uuid.NewString(),
		TriggerRound: round + s.InRounds,
		Kind:         s.Kind,
		Description:  s.Description,
		Active:       true,
		Condition:    s.Condition,
	}
	switch s.Kind {
	case DelayedStats:
		if len(s.Stats) == 0 {
			return d, fmt.Errorf("delayed stats effect %q has no stats", s.Description)
		}
		d.Stats = s.Stats.Clone()
	case DelayedFlag:
		if s.Flag == nil {
			return d, fmt.Errorf("delayed flag effect %q has no flag", s.Description)
		}
		f := *s.Flag
		d.Flag = &f
	case DelayedDebt:
		if s.Debt == nil {
			return d, fmt.Errorf("delayed debt effect %q has no debt", s.Description)
		}
		d.Debt = &Debt{
			Creditor: s.Debt.Creditor,
			Type:     s.Debt.Type,
			Amount:   s.Debt.Amount,
			DueRound: d.TriggerRound + s.Debt.DueIn,
		}
	case DelayedRelationship:
		if s.Relationship == nil {
			return d, fmt.Errorf("delayed relationship effect %q has no target", s.Description)
		}
		r := *s.Relationship
		d.Relationship = &r
	case DelayedEvent:
		if s.Event == nil {
			return d, fmt.Errorf("delayed event effect %q has no event", s.Description)
		}
		e := *s.Event
		d.Event = &e
	default:
		return d, fmt.Errorf("unknown delayed effect kind %q", s.Kind)
	}
	return d, nil
}

// Due reports whether the effect may fire in round.
func (d DelayedEffect) Due(round int) bool {
	return d.Active && d.TriggerRound <= round
}

// apply runs the payload against p.
func (d DelayedEffect) apply(p *Player) (Delta, error) {
	switch d.Kind {
	case DelayedStats:
		p.ApplyStatsChange(d.Stats)
		return d.Stats.Clone(), nil
	case DelayedFlag:
		if d.Flag == nil {
			return nil, ErrInvalidState("flag effect without payload")
		}
		p.SetFlag(d.Flag.Key, d.Flag.Value)
	case DelayedDebt:
		if d.Debt == nil {
			return nil, ErrInvalidState("debt effect without payload")
		}
		p.AddDebt(d.Debt.Creditor, d.Debt.Type, d.Debt.Amount, d.Debt.DueRound)
	case DelayedRelationship:
		if d.Relationship == nil {
			return nil, ErrInvalidState("relationship effect without payload")
		}
		rel, ok := p.Relationship(d.Relationship.NPCID)
		if !ok {
			p.SetRelationship(d.Relationship.NPCID, d.Relationship.NPCName, d.Relationship.Change, RelationNeutral)
			break
		}
		p.SetRelationship(rel.TargetID, rel.TargetName, rel.Value+d.Relationship.Change, eventRelationshipType(rel.Value+d.Relationship.Change))
	case DelayedEvent:
		if d.Event == nil {
			return nil, ErrInvalidState("event effect without payload")
		}
		p.MarkSpecialEvent(d.Event.EventID)
	default:
		return nil, fmt.Errorf("unknown delayed effect kind %q", d.Kind)
	}
	return nil, nil
}

func cloneDelayed(d DelayedEffect) DelayedEffect {
	out := d
	out.Stats = d.Stats.Clone()
	if d.Condition.MinStats != nil {
		out.Condition.MinStats = make(map[Stat]int, len(d.Condition.MinStats))
		for k, v := range d.Condition.MinStats {
			out.Condition.MinStats[k] = v
		}
	}
	if d.Flag != nil {
		f := *d.Flag
		out.Flag = &f
	}
	if d.Debt != nil {
		x := *d.Debt
		out.Debt = &x
	}
	if d.Relationship != nil {
		r := *d.Relationship
		out.Relationship = &r
	}
	if d.Event != nil {
		e := *d.Event
		out.Event = &e
	}
	return out
}

// CloneDelayedEffects deep-copies a list.
func CloneDelayedEffects(list []DelayedEffect) []DelayedEffect {
	if list == nil {
		return nil
	}
	out := make([]DelayedEffect, len(list))
	for i, d := range list {
		out[i] = cloneDelayed(d)
	}
	return out
}
