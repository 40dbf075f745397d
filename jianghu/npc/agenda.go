package npc

import (
	"log/slog"
	"sort"

	"jianghu-lite/jianghu"
)

// View is the read-only projection of the session an NPC reasons about.
type View struct {
	Round        int
	Stats        jianghu.StatVector
	Relationship int
	Mood         Mood
	Flags        map[string]string
	SpecialEvent func(id int) bool
}

func (v View) hasFlag(key string) bool {
	_, ok := v.Flags[key]
	return ok
}

// Matches reports whether every populated field of t holds in v. A trigger
// with nothing populated never matches.
func (t Trigger) Matches(v View) bool {
	checked := false
	if t.MinRound > 0 {
		checked = true
		if v.Round < t.MinRound {
			return false
		}
	}
	if len(t.AnyStats) > 0 {
		checked = true
		hit := false
		for s, want := range t.AnyStats {
			if v.Stats.Get(s) >= want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if t.MinRelationship != nil {
		checked = true
		if v.Relationship < *t.MinRelationship {
			return false
		}
	}
	if t.SpecialEvent != 0 {
		checked = true
		if v.SpecialEvent == nil || !v.SpecialEvent(t.SpecialEvent) {
			return false
		}
	}
	return checked
}

// Satisfied reports whether an action's requirements hold in v.
func (r Requirements) Satisfied(v View) bool {
	if r.MinRelationship != nil && v.Relationship < *r.MinRelationship {
		return false
	}
	for s, want := range r.MinStats {
		if v.Stats.Get(s) < want {
			return false
		}
	}
	for s, limit := range r.MaxStats {
		if v.Stats.Get(s) > limit {
			return false
		}
	}
	for _, f := range r.Flags {
		if !v.hasFlag(f) {
			return false
		}
	}
	return true
}

// AgendaState tracks one registered agenda.
type AgendaState struct {
	NPCID           string `json:"npcId"`
	AgendaID        string `json:"agendaId"`
	Active          bool   `json:"active"`
	Priority        int    `json:"priority"`
	LastUpdateRound int    `json:"lastUpdateRound"`
	Executions      int    `json:"executions"`
	Goals           []Goal `json:"goals"`
}

// Completed lists the goals that reached their target.
func (s AgendaState) Completed() []string {
	var out []string
	for _, g := range s.Goals {
		if g.Target > 0 && g.Current >= g.Target {
			out = append(out, g.ID)
		}
	}
	return out
}

func (s AgendaState) clone() AgendaState {
	s.Goals = append([]Goal(nil), s.Goals...)
	return s
}

// TriggerMatch is handed to the narrative handler when an agenda trigger
// holds during a round update.
type TriggerMatch struct {
	NPCID    string
	NPCName  string
	AgendaID string
	Trigger  Trigger
	Round    int
}

// AgendaSummary aggregates the agenda engine for diagnostics.
type AgendaSummary struct {
	Total           int
	Active          int
	CompletedGoals  int
	Executions      int
	AverageProgress float64
}

// AgendaEngine is a per-NPC scheduler: it tracks goal progress and evaluates
// triggers once per round. It is driven by Manager and not safe for
// concurrent use on its own.
type AgendaEngine struct {
	states map[string]*AgendaState
	log    *slog.Logger
}

func NewAgendaEngine(logger *slog.Logger) *AgendaEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgendaEngine{
		states: make(map[string]*AgendaState),
		log:    logger,
	}
}

func agendaKey(npcID, agendaID string) string { return npcID + "_" + agendaID }

// Register starts tracking an NPC's agenda from round.
func (e *AgendaEngine) Register(npcID string, a Agenda, round int) {
	st := &AgendaState{
		NPCID:           npcID,
		AgendaID:        a.AgendaID(),
		Active:          true,
		Priority:        a.Priority,
		LastUpdateRound: round,
		Goals:           append([]Goal(nil), a.Goals...),
	}
	e.states[agendaKey(npcID, st.AgendaID)] = st
	e.log.Debug("agenda registered", "npc", npcID, "agenda", st.AgendaID, "priority", a.Priority)
}

// Process refreshes goal progress for def's agenda and returns the triggers
// that hold in v. Inactive or unknown agendas yield nothing.
func (e *AgendaEngine) Process(def *Definition, v View) []TriggerMatch {
	st := e.states[agendaKey(def.ID, def.Agenda.AgendaID())]
	if st == nil || !st.Active {
		return nil
	}
	st.LastUpdateRound = v.Round
	for i := range st.Goals {
		st.Goals[i].Current = goalProgress(st.Goals[i], v)
	}

	var matches []TriggerMatch
	for _, t := range def.Agenda.Triggers {
		if !t.Matches(v) {
			continue
		}
		matches = append(matches, TriggerMatch{
			NPCID:    def.ID,
			NPCName:  def.Name,
			AgendaID: st.AgendaID,
			Trigger:  t,
			Round:    v.Round,
		})
	}
	st.Executions += len(matches)
	return matches
}

func goalProgress(g Goal, v View) int {
	switch g.Kind {
	case GoalRelationship:
		if v.Relationship < 0 {
			return 0
		}
		return v.Relationship
	case GoalStats:
		if g.Stat != "" {
			return v.Stats.Get(g.Stat)
		}
		return v.Stats.Fame + v.Stats.Network
	case GoalEvent:
		if v.SpecialEvent != nil && v.SpecialEvent(g.EventID) {
			return g.Target
		}
		return 0
	}
	return g.Current
}

func (e *AgendaEngine) State(npcID, agendaID string) (AgendaState, bool) {
	st := e.states[agendaKey(npcID, agendaID)]
	if st == nil {
		return AgendaState{}, false
	}
	return st.clone(), true
}

// States returns copies of every agenda state, sorted by NPC id.
func (e *AgendaEngine) States() []AgendaState {
	out := make([]AgendaState, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, st.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NPCID != out[j].NPCID {
			return out[i].NPCID < out[j].NPCID
		}
		return out[i].AgendaID < out[j].AgendaID
	})
	return out
}

// SetActive toggles an agenda. It reports false for unknown agendas.
func (e *AgendaEngine) SetActive(npcID, agendaID string, active bool) bool {
	st := e.states[agendaKey(npcID, agendaID)]
	if st == nil {
		return false
	}
	st.Active = active
	return true
}

func (e *AgendaEngine) Reset() {
	e.states = make(map[string]*AgendaState)
}

func (e *AgendaEngine) Summary() AgendaSummary {
	var sum AgendaSummary
	var progress float64
	var goals int
	for _, st := range e.states {
		sum.Total++
		if st.Active {
			sum.Active++
		}
		sum.Executions += st.Executions
		sum.CompletedGoals += len(st.Completed())
		for _, g := range st.Goals {
			if g.Target <= 0 {
				continue
			}
			p := float64(g.Current) / float64(g.Target)
			if p > 1 {
				p = 1
			}
			progress += p
			goals++
		}
	}
	if goals > 0 {
		sum.AverageProgress = progress / float64(goals)
	}
	return sum
}
