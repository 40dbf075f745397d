package jianghu

// HistoryKind tags a HistoryEntry.
type HistoryKind string

const (
	HistoryEvent         HistoryKind = "event"
	HistoryRandom        HistoryKind = "random"
	HistoryAchievement   HistoryKind = "achievement"
	HistoryDelayedEffect HistoryKind = "delayed_effect"
)

// HistoryEntry is one append-only record in the player's log. Exactly one
// payload pointer is set, matching Kind: event entries carry either Stats
// (a raw stat change) or Event (a resolved choice).
type HistoryEntry struct {
	Round       int         `json:"round"`
	Kind        HistoryKind `json:"kind"`
	Description string      `json:"description"`
	Effects     Delta       `json:"effects,omitempty"`

	Stats       *StatsChange       `json:"stats,omitempty"`
	Event       *EventRecord       `json:"event,omitempty"`
	Random      *RandomRecord      `json:"random,omitempty"`
	Achievement *AchievementRecord `json:"achievement,omitempty"`
	Delayed     *DelayedRecord     `json:"delayed,omitempty"`
}

type StatsChange struct {
	Before StatVector `json:"before"`
	After  StatVector `json:"after"`
}

type EventRecord struct {
	EventID      int      `json:"eventId"`
	OptionID     string   `json:"optionId"`
	Achievements []string `json:"achievements,omitempty"`
}

type RandomRecord struct {
	EventID string `json:"eventId"`
	Type    string `json:"type"`
}

type AchievementRecord struct {
	IDs   []string `json:"ids"`
	Names []string `json:"names"`
}

type DelayedRecord struct {
	EffectID string      `json:"effectId"`
	Kind     DelayedKind `json:"kind"`
}

func (h HistoryEntry) clone() HistoryEntry {
	out := h
	out.Effects = h.Effects.Clone()
	if h.Stats != nil {
		s := *h.Stats
		out.Stats = &s
	}
	if h.Event != nil {
		e := *h.Event
		e.Achievements = append([]string(nil), h.Event.Achievements...)
		out.Event = &e
	}
	if h.Random != nil {
		r := *h.Random
		out.Random = &r
	}
	if h.Achievement != nil {
		a := AchievementRecord{
			IDs:   append([]string(nil), h.Achievement.IDs...),
			Names: append([]string(nil), h.Achievement.Names...),
		}
		out.Achievement = &a
	}
	if h.Delayed != nil {
		d := *h.Delayed
		out.Delayed = &d
	}
	return out
}
