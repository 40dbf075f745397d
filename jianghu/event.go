package jianghu

// Event id bands.
const (
	NPCEventMinID    = 1000
	BranchEventMinID = 6000
)

// GameEvent is an immutable narrative event with selectable options.
type GameEvent struct {
	ID          int           `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description"`
	Options     []EventOption `json:"options" yaml:"options"`
}

// EventOption is one choice of a GameEvent.
type EventOption struct {
	ID                   string                  `json:"id" yaml:"id"`
	Label                string                  `json:"label" yaml:"label"`
	Description          string                  `json:"description" yaml:"description"`
	Effects              Delta                   `json:"effects,omitempty" yaml:"effects,omitempty"`
	NPCEffects           []NPCRelationshipEffect `json:"npcEffects,omitempty" yaml:"npcEffects,omitempty"`
	Consequences         []string                `json:"consequences,omitempty" yaml:"consequences,omitempty"`
	RequiresConfirmation bool                    `json:"requiresConfirmation,omitempty" yaml:"requiresConfirmation,omitempty"`
	Delayed              []DelayedSpec           `json:"delayed,omitempty" yaml:"delayed,omitempty"`
	FollowUp             *FollowUp               `json:"followUp,omitempty" yaml:"followUp,omitempty"`
}

// NPCRelationshipEffect shifts the player's relationship with an NPC.
type NPCRelationshipEffect struct {
	NPCID   string `json:"npcId" yaml:"npcId"`
	NPCName string `json:"npcName" yaml:"npcName"`
	Change  int    `json:"change" yaml:"change"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// FollowUp lists consequences handled by session-level listeners after an
// event completes, such as NPC bookkeeping.
type FollowUp struct {
	Flags     []string          `json:"flags,omitempty" yaml:"flags,omitempty"`
	NPCDeltas []NPCDelta        `json:"npcDeltas,omitempty" yaml:"npcDeltas,omitempty"`
	Debts     []DebtSpec        `json:"debts,omitempty" yaml:"debts,omitempty"`
	Story     map[StoryPath]int `json:"story,omitempty" yaml:"story,omitempty"`
}

type NPCDelta struct {
	NPCID  string `json:"npcId" yaml:"npcId"`
	Delta  int    `json:"delta" yaml:"delta"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

type DebtSpec struct {
	Creditor string `json:"creditor" yaml:"creditor"`
	Type     string `json:"type" yaml:"type"`
	Amount   int    `json:"amount" yaml:"amount"`
	DueIn    int    `json:"dueIn" yaml:"dueIn"`
}

// Option returns the option with id, or nil.
func (e *GameEvent) Option(id string) *EventOption {
	if e == nil {
		return nil
	}
	for i := range e.Options {
		if e.Options[i].ID == id {
			return &e.Options[i]
		}
	}
	return nil
}

func (e *GameEvent) IsNPCEvent() bool {
	return e != nil && e.ID >= NPCEventMinID && e.ID < BranchEventMinID
}

func (e *GameEvent) IsBranchEvent() bool {
	return e != nil && e.ID >= BranchEventMinID
}

// IsMainEvent reports whether e belongs to the scripted main line.
func (e *GameEvent) IsMainEvent() bool {
	return e != nil && e.ID < NPCEventMinID
}

// Clone deep-copies e so callers can hold it without touching catalog data.
func (e *GameEvent) Clone() *GameEvent {
	if e == nil {
		return nil
	}
	out := *e
	out.Options = make([]EventOption, len(e.Options))
	for i, o := range e.Options {
		c := o
		c.Effects = o.Effects.Clone()
		c.NPCEffects = append([]NPCRelationshipEffect(nil), o.NPCEffects...)
		c.Consequences = append([]string(nil), o.Consequences...)
		c.Delayed = append([]DelayedSpec(nil), o.Delayed...)
		if o.FollowUp != nil {
			f := *o.FollowUp
			f.Flags = append([]string(nil), o.FollowUp.Flags...)
			f.NPCDeltas = append([]NPCDelta(nil), o.FollowUp.NPCDeltas...)
			f.Debts = append([]DebtSpec(nil), o.FollowUp.Debts...)
			if o.FollowUp.Story != nil {
				f.Story = make(map[StoryPath]int, len(o.FollowUp.Story))
				for k, v := range o.FollowUp.Story {
					f.Story[k] = v
				}
			}
			c.FollowUp = &f
		}
		out.Options[i] = c
	}
	return &out
}

// RandomEvent is an interstitial event drawn from the random pool. Its
// effects apply only when the player acknowledges it.
type RandomEvent struct {
	ID          string `json:"id" yaml:"id"`
	Type        string `json:"type" yaml:"type"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Effects     Delta  `json:"effects" yaml:"effects"`
}

// EventHistoryEntry is the session-level record of a resolved choice.
type EventHistoryEntry struct {
	Round    int    `json:"round"`
	EventID  int    `json:"eventId"`
	OptionID string `json:"optionId"`
	Effects  Delta  `json:"effects,omitempty"`
}
