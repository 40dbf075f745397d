package npc

import "jianghu-lite/jianghu"

// Mood is an NPC's disposition toward the player, derived from the
// relationship value.
type Mood string

const (
	MoodHelpful  Mood = "helpful"
	MoodFriendly Mood = "friendly"
	MoodNeutral  Mood = "neutral"
	MoodBusy     Mood = "busy"
	MoodHostile  Mood = "hostile"
)

// MoodFor maps a relationship value onto the five mood bands.
func MoodFor(value int) Mood {
	switch {
	case value >= 60:
		return MoodHelpful
	case value >= 30:
		return MoodFriendly
	case value >= -10:
		return MoodNeutral
	case value >= -30:
		return MoodBusy
	default:
		return MoodHostile
	}
}

// Status is the coarse relationship label shown to the player.
type Status string

const (
	StatusHostile     Status = "hostile"
	StatusDistrustful Status = "distrustful"
	StatusNeutral     Status = "neutral"
	StatusFriendly    Status = "friendly"
	StatusTrusted     Status = "trusted"
	StatusAlly        Status = "ally"
)

func StatusFor(value int) Status {
	switch {
	case value <= -30:
		return StatusHostile
	case value <= -10:
		return StatusDistrustful
	case value <= 10:
		return StatusNeutral
	case value <= 30:
		return StatusFriendly
	case value <= 60:
		return StatusTrusted
	default:
		return StatusAlly
	}
}

// PlayerRelationshipType maps an NPC relationship value onto the player-side
// relationship type.
func PlayerRelationshipType(value int) jianghu.RelationshipType {
	switch StatusFor(value) {
	case StatusHostile:
		return jianghu.RelationEnemy
	case StatusDistrustful:
		return jianghu.RelationRival
	case StatusFriendly, StatusTrusted:
		return jianghu.RelationFriend
	case StatusAlly:
		return jianghu.RelationMentor
	default:
		return jianghu.RelationNeutral
	}
}

// GoalKind selects what a goal's progress is measured against.
type GoalKind string

const (
	GoalRelationship GoalKind = "relationship"
	GoalStats        GoalKind = "stats"
	GoalEvent        GoalKind = "event"
)

type Goal struct {
	ID          string       `json:"id" yaml:"id"`
	Description string       `json:"description" yaml:"description"`
	Target      int          `json:"target" yaml:"target"`
	Current     int          `json:"current" yaml:"current"`
	Kind        GoalKind     `json:"kind" yaml:"kind"`
	Stat        jianghu.Stat `json:"stat,omitempty" yaml:"stat,omitempty"`
	EventID     int          `json:"eventId,omitempty" yaml:"eventId,omitempty"`
}

// TriggerKind names the predicate family of a Trigger.
type TriggerKind string

const (
	TriggerRound        TriggerKind = "round"
	TriggerPlayerStats  TriggerKind = "player_stats"
	TriggerRelationship TriggerKind = "relationship"
	TriggerEvent        TriggerKind = "event"
)

// Trigger is a declarative agenda predicate. Every populated field must hold;
// AnyStats holds when at least one listed stat reaches its threshold.
type Trigger struct {
	Kind            TriggerKind          `json:"kind" yaml:"kind"`
	MinRound        int                  `json:"minRound,omitempty" yaml:"minRound,omitempty"`
	AnyStats        map[jianghu.Stat]int `json:"anyStats,omitempty" yaml:"anyStats,omitempty"`
	MinRelationship *int                 `json:"minRelationship,omitempty" yaml:"minRelationship,omitempty"`
	SpecialEvent    int                  `json:"specialEvent,omitempty" yaml:"specialEvent,omitempty"`
}

// ActionKind is what an agenda action does to the player.
type ActionKind string

const (
	ActionDialogue ActionKind = "dialogue"
	ActionHelp     ActionKind = "help"
	ActionRequest  ActionKind = "request"
	ActionConflict ActionKind = "conflict"
)

// Requirements gate an agenda action. MinStats and MaxStats are inclusive.
type Requirements struct {
	MinRelationship *int                 `json:"minRelationship,omitempty" yaml:"minRelationship,omitempty"`
	MinStats        map[jianghu.Stat]int `json:"minStats,omitempty" yaml:"minStats,omitempty"`
	MaxStats        map[jianghu.Stat]int `json:"maxStats,omitempty" yaml:"maxStats,omitempty"`
	Flags           []string             `json:"flags,omitempty" yaml:"flags,omitempty"`
}

type Action struct {
	ID           string        `json:"id" yaml:"id"`
	Kind         ActionKind    `json:"kind" yaml:"kind"`
	Title        string        `json:"title" yaml:"title"`
	Content      string        `json:"content" yaml:"content"`
	Requirements Requirements  `json:"requirements" yaml:"requirements"`
	Effects      jianghu.Delta `json:"effects,omitempty" yaml:"effects,omitempty"`
}

type Agenda struct {
	ID       string    `json:"id" yaml:"id"`
	Priority int       `json:"priority" yaml:"priority"`
	Goals    []Goal    `json:"goals" yaml:"goals"`
	Triggers []Trigger `json:"triggers" yaml:"triggers"`
	Actions  []Action  `json:"actions" yaml:"actions"`
}

// AgendaID falls back to "default" for agendas without an id.
func (a Agenda) AgendaID() string {
	if a.ID == "" {
		return "default"
	}
	return a.ID
}

// Definition is the immutable description of an NPC.
type Definition struct {
	ID                  string   `json:"id" yaml:"id"`
	Name                string   `json:"name" yaml:"name"`
	Title               string   `json:"title" yaml:"title"`
	Description         string   `json:"description" yaml:"description"`
	InitialRelationship int      `json:"initialRelationship" yaml:"initialRelationship"`
	Available           bool     `json:"available" yaml:"available"`
	Traits              []string `json:"traits" yaml:"traits"`
	Agenda              Agenda   `json:"agenda" yaml:"agenda"`
}

func (d *Definition) HasTrait(trait string) bool {
	for _, t := range d.Traits {
		if t == trait {
			return true
		}
	}
	return false
}

// State is the per-session mutable projection of an NPC.
type State struct {
	NPCID                 string   `json:"npcId"`
	Relationship          int      `json:"relationship"`
	Mood                  Mood     `json:"mood"`
	Available             bool     `json:"available"`
	ActiveGoals           []string `json:"activeGoals"`
	LastInteractionRound  int      `json:"lastInteractionRound"`
	InteractionCount      int      `json:"interactionCount"`
	InteractionsThisRound int      `json:"interactionsThisRound"`
}

// NoInteraction marks a state that has never been interacted with.
const NoInteraction = -1

func (s State) clone() State {
	s.ActiveGoals = append([]string(nil), s.ActiveGoals...)
	return s
}

// InteractionKind tags an interaction history record.
type InteractionKind string

const (
	InteractionDialogue InteractionKind = "dialogue"
	InteractionHelp     InteractionKind = "help"
	InteractionRequest  InteractionKind = "request"
	InteractionConflict InteractionKind = "conflict"
	InteractionEvent    InteractionKind = "event"
	InteractionDecay    InteractionKind = "decay"
)

// Interaction is one entry of the NPC interaction history.
type Interaction struct {
	Round              int             `json:"round"`
	NPCID              string          `json:"npcId"`
	Kind               InteractionKind `json:"kind"`
	Description        string          `json:"description"`
	RelationshipChange int             `json:"relationshipChange"`
	Effects            jianghu.Delta   `json:"effects,omitempty"`
	OldValue           int             `json:"oldValue"`
	NewValue           int             `json:"newValue"`
}
