package jianghu

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRounds is the length of a playthrough.
const DefaultMaxRounds = 10

// Answers are the questionnaire choices, keyed by question.
type Answers struct {
	Background  string `json:"background" yaml:"background"`
	Personality string `json:"personality" yaml:"personality"`
	Ambition    string `json:"ambition" yaml:"ambition"`
	Age         string `json:"age" yaml:"age"`
	Talent      string `json:"talent" yaml:"talent"`
}

// ByQuestion returns the answer for a question id.
func (a Answers) ByQuestion(id string) string {
	switch id {
	case "background":
		return a.Background
	case "personality":
		return a.Personality
	case "ambition":
		return a.Ambition
	case "age":
		return a.Age
	case "talent":
		return a.Talent
	}
	return ""
}

// Set records the answer for a question id. Unknown ids are ignored.
func (a *Answers) Set(id, value string) {
	switch id {
	case "background":
		a.Background = value
	case "personality":
		a.Personality = value
	case "ambition":
		a.Ambition = value
	case "age":
		a.Age = value
	case "talent":
		a.Talent = value
	}
}

// SessionState is the round-level state of one playthrough.
type SessionState struct {
	ID             string              `json:"id"`
	CurrentRound   int                 `json:"currentRound"`
	MaxRounds      int                 `json:"maxRounds"`
	Questionnaire  *Answers            `json:"questionnaire,omitempty"`
	Achievements   []Achievement       `json:"achievements"`
	EventHistory   []EventHistoryEntry `json:"eventHistory,omitempty"`
	DelayedEffects []DelayedEffect     `json:"delayedEffects,omitempty"`
	GameOver       bool                `json:"isGameOver"`
	StartedAt      time.Time           `json:"startedAt"`
	LastSavedAt    time.Time           `json:"lastSavedAt,omitempty"`
}

// NewSessionState starts an empty session of maxRounds rounds.
func NewSessionState(maxRounds int, now time.Time) *SessionState {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &SessionState{
		ID:        uuid.NewString(),
		MaxRounds: maxRounds,
		StartedAt: now,
	}
}

// AddDelayedEffect schedules d.
func (s *SessionState) AddDelayedEffect(d DelayedEffect) {
	s.DelayedEffects = append(s.DelayedEffects, cloneDelayed(d))
}

// ActiveDelayedEffects returns copies of the effects still pending.
func (s *SessionState) ActiveDelayedEffects() []DelayedEffect {
	var out []DelayedEffect
	for _, d := range s.DelayedEffects {
		if d.Active {
			out = append(out, cloneDelayed(d))
		}
	}
	return out
}

// Clone deep-copies the session state.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Questionnaire != nil {
		q := *s.Questionnaire
		out.Questionnaire = &q
	}
	out.Achievements = CloneAchievements(s.Achievements)
	out.EventHistory = make([]EventHistoryEntry, len(s.EventHistory))
	for i, e := range s.EventHistory {
		e.Effects = e.Effects.Clone()
		out.EventHistory[i] = e
	}
	out.DelayedEffects = CloneDelayedEffects(s.DelayedEffects)
	return &out
}

// IsGameOver reports whether the last round has been played.
func (s *SessionState) IsGameOver() bool {
	return s.GameOver || s.CurrentRound >= s.MaxRounds
}
