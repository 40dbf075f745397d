package npc

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"jianghu-lite/jianghu"
)

// Config tunes the relationship manager.
type Config struct {
	MaxInteractionsPerRound int
	DecayRate               float64
	// DecayAfter is the number of rounds without interaction before a
	// relationship starts drifting toward zero.
	DecayAfter          int
	DisableInteractions bool
}

func DefaultConfig() Config {
	return Config{
		MaxInteractionsPerRound: 3,
		DecayRate:               0.02,
		DecayAfter:              5,
	}
}

// TriggerHandler receives agenda trigger matches after a round update.
type TriggerHandler func(TriggerMatch)

// Summary aggregates the NPC states for diagnostics.
type Summary struct {
	TotalNPCs           int
	AvailableNPCs       int
	TotalInteractions   int
	AverageRelationship float64
	HostileNPCs         int
	AlliedNPCs          int
}

// Manager owns the per-session NPC states and mirrors every relationship
// change into the player. It holds no reference to the engine.
type Manager struct {
	mu           sync.RWMutex
	registry     *Registry
	player       *jianghu.Player
	cfg          Config
	states       map[string]*State
	interactions []Interaction
	round        int
	roundCount   int
	agenda       *AgendaEngine
	decider      Decider
	onTrigger    TriggerHandler
	log          *slog.Logger
}

// NewManager creates the NPC states for one session. A relationship the
// player already holds (e.g. after a load) wins over the definition's
// initial value.
func NewManager(registry *Registry, player *jianghu.Player, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxInteractionsPerRound <= 0 {
		cfg.MaxInteractionsPerRound = def.MaxInteractionsPerRound
	}
	if cfg.DecayRate <= 0 {
		cfg.DecayRate = def.DecayRate
	}
	if cfg.DecayAfter <= 0 {
		cfg.DecayAfter = def.DecayAfter
	}
	log := logger.With("component", "npc")
	m := &Manager{
		registry: registry,
		player:   player,
		cfg:      cfg,
		states:   make(map[string]*State),
		agenda:   NewAgendaEngine(log),
		decider:  AgendaDecider{},
		log:      log,
	}
	m.initialize()
	return m
}

func (m *Manager) initialize() {
	for _, d := range m.registry.All() {
		value := d.InitialRelationship
		if rel, ok := m.player.Relationship(d.ID); ok {
			value = rel.Value
		} else {
			m.player.SetRelationship(d.ID, d.Name, value, PlayerRelationshipType(value))
		}
		mood := MoodFor(value)
		goals := make([]string, 0, len(d.Agenda.Goals))
		for _, g := range d.Agenda.Goals {
			goals = append(goals, g.ID)
		}
		m.states[d.ID] = &State{
			NPCID:                d.ID,
			Relationship:         value,
			Mood:                 mood,
			Available:            d.Available && mood != MoodHostile,
			ActiveGoals:          goals,
			LastInteractionRound: NoInteraction,
		}
		m.agenda.Register(d.ID, d.Agenda, m.round)
	}
}

// Reset rebuilds every state from the definitions and the player.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*State)
	m.interactions = nil
	m.roundCount = 0
	m.agenda.Reset()
	m.initialize()
}

// Restore replaces the states of known NPCs with saved copies.
func (m *Manager) Restore(states []State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		if _, ok := m.states[s.NPCID]; !ok {
			continue
		}
		cp := s.clone()
		m.states[s.NPCID] = &cp
	}
}

func (m *Manager) Registry() *Registry { return m.registry }

func (m *Manager) Agenda() *AgendaEngine { return m.agenda }

// SetRound records the current round without running round updates.
func (m *Manager) SetRound(round int) {
	m.mu.Lock()
	m.round = round
	m.mu.Unlock()
}

func (m *Manager) Round() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.round
}

func (m *Manager) SetTriggerHandler(h TriggerHandler) {
	m.mu.Lock()
	m.onTrigger = h
	m.mu.Unlock()
}

func (m *Manager) SetDecider(d Decider) {
	if d == nil {
		d = AgendaDecider{}
	}
	m.mu.Lock()
	m.decider = d
	m.mu.Unlock()
}

func (m *Manager) Definition(npcID string) *Definition { return m.registry.Get(npcID) }

func (m *Manager) State(npcID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.states[npcID]
	if s == nil {
		return State{}, false
	}
	return s.clone(), true
}

// States returns copies of every NPC state sorted by id.
func (m *Manager) States() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NPCID < out[j].NPCID })
	return out
}

// Interactions returns a copy of the interaction history.
func (m *Manager) Interactions() []Interaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Interaction, len(m.interactions))
	for i, in := range m.interactions {
		in.Effects = in.Effects.Clone()
		out[i] = in
	}
	return out
}

func (m *Manager) InteractionsFor(npcID string) []Interaction {
	var out []Interaction
	for _, in := range m.Interactions() {
		if in.NPCID == npcID {
			out = append(out, in)
		}
	}
	return out
}

func clampRelationship(v int) int {
	if v < jianghu.RelationshipMin {
		return jianghu.RelationshipMin
	}
	if v > jianghu.RelationshipMax {
		return jianghu.RelationshipMax
	}
	return v
}

// mirror pushes the state's value into the player's relationship map.
func (m *Manager) mirror(d *Definition, s *State) {
	rel, ok := m.player.Relationship(s.NPCID)
	if !ok {
		m.player.SetRelationship(s.NPCID, d.Name, s.Relationship, PlayerRelationshipType(s.Relationship))
		return
	}
	if err := m.player.ModifyRelationship(s.NPCID, s.Relationship-rel.Value); err != nil {
		m.log.Error("mirror relationship", "npc", s.NPCID, "err", err)
	}
}

func (m *Manager) countInteraction(s *State) {
	s.InteractionCount++
	s.InteractionsThisRound++
	s.LastInteractionRound = m.round
	m.roundCount++
}

// UpdateRelationship shifts an NPC's relationship by delta, refreshes its
// mood, mirrors the change into the player and records the interaction.
func (m *Manager) UpdateRelationship(npcID string, delta int, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.registry.Get(npcID)
	s := m.states[npcID]
	if d == nil || s == nil {
		return false
	}
	old := s.Relationship
	s.Relationship = clampRelationship(old + delta)
	s.Mood = MoodFor(s.Relationship)
	m.mirror(d, s)
	m.countInteraction(s)

	if reason == "" {
		reason = fmt.Sprintf("关系变化: %+d", delta)
	}
	m.interactions = append(m.interactions, Interaction{
		Round:              m.round,
		NPCID:              npcID,
		Kind:               InteractionDialogue,
		Description:        reason,
		RelationshipChange: s.Relationship - old,
		OldValue:           old,
		NewValue:           s.Relationship,
	})
	m.log.Info("relationship updated", "npc", d.Name, "from", old, "to", s.Relationship, "reason", reason)
	return true
}

// SyncFromPlayer adopts the player's relationship value for npcID after an
// event applied an NPC effect directly to the player. It reports whether the
// value moved.
func (m *Manager) SyncFromPlayer(npcID, reason string) bool {
	rel, ok := m.player.Relationship(npcID)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.states[npcID]
	if s == nil || s.Relationship == rel.Value {
		return false
	}
	old := s.Relationship
	s.Relationship = rel.Value
	s.Mood = MoodFor(rel.Value)
	m.countInteraction(s)
	m.interactions = append(m.interactions, Interaction{
		Round:              m.round,
		NPCID:              npcID,
		Kind:               InteractionEvent,
		Description:        reason,
		RelationshipChange: rel.Value - old,
		OldValue:           old,
		NewValue:           rel.Value,
	})
	return true
}

// CanInteract is true when the NPC is available, not hostile and the round's
// interaction cap has not been reached.
func (m *Manager) CanInteract(npcID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canInteract(npcID)
}

func (m *Manager) canInteract(npcID string) bool {
	s := m.states[npcID]
	if s == nil || m.cfg.DisableInteractions {
		return false
	}
	return s.Available && s.Mood != MoodHostile && m.roundCount < m.cfg.MaxInteractionsPerRound
}

// decayAmount is max(1, round(|v|·rate·elapsed)), never overshooting zero.
func (m *Manager) decayAmount(value, elapsed int) int {
	mag := value
	if mag < 0 {
		mag = -mag
	}
	n := int(math.Round(float64(mag) * m.cfg.DecayRate * float64(elapsed)))
	if n < 1 {
		n = 1
	}
	if n > mag {
		n = mag
	}
	return n
}

// ProcessRoundUpdate runs the start-of-round NPC maintenance: per-round
// counters reset, decay for neglected relationships, mood and availability
// refresh and agenda evaluation. Trigger matches go to the trigger handler
// after the manager lock is released, and are also returned.
func (m *Manager) ProcessRoundUpdate(round int) []TriggerMatch {
	m.mu.Lock()
	m.round = round
	m.roundCount = 0

	defs := m.registry.All()
	for _, d := range defs {
		s := m.states[d.ID]
		if s == nil {
			continue
		}
		s.InteractionsThisRound = 0
		if s.LastInteractionRound == NoInteraction || s.Relationship == 0 {
			continue
		}
		elapsed := round - s.LastInteractionRound
		if elapsed < m.cfg.DecayAfter {
			continue
		}
		n := m.decayAmount(s.Relationship, elapsed)
		if s.Relationship < 0 {
			n = -n
		}
		old := s.Relationship
		s.Relationship -= n
		m.mirror(d, s)
		m.interactions = append(m.interactions, Interaction{
			Round:              round,
			NPCID:              d.ID,
			Kind:               InteractionDecay,
			Description:        "长时间未交互",
			RelationshipChange: s.Relationship - old,
			OldValue:           old,
			NewValue:           s.Relationship,
		})
		m.log.Debug("relationship decayed", "npc", d.ID, "from", old, "to", s.Relationship, "elapsed", elapsed)
	}

	for _, d := range defs {
		s := m.states[d.ID]
		if s == nil {
			continue
		}
		s.Mood = MoodFor(s.Relationship)
		s.Available = d.Available && s.Mood != MoodHostile
	}

	var matches []TriggerMatch
	for _, d := range defs {
		s := m.states[d.ID]
		if s == nil {
			continue
		}
		v := m.view(s)
		matches = append(matches, m.agenda.Process(d, v)...)
		if st, ok := m.agenda.State(d.ID, d.Agenda.AgendaID()); ok {
			s.ActiveGoals = remainingGoals(st)
		}
	}
	handler := m.onTrigger
	m.mu.Unlock()

	for _, tm := range matches {
		if handler != nil {
			handler(tm)
			continue
		}
		m.log.Info("agenda triggered", "npc", tm.NPCName, "agenda", tm.AgendaID, "trigger", string(tm.Trigger.Kind), "round", tm.Round)
	}
	return matches
}

func remainingGoals(st AgendaState) []string {
	done := make(map[string]bool)
	for _, id := range st.Completed() {
		done[id] = true
	}
	out := make([]string, 0, len(st.Goals))
	for _, g := range st.Goals {
		if !done[g.ID] {
			out = append(out, g.ID)
		}
	}
	return out
}

// view builds the NPC-side projection of the session for s.
func (m *Manager) view(s *State) View {
	return View{
		Round:        m.round,
		Stats:        m.player.Stats(),
		Relationship: s.Relationship,
		Mood:         s.Mood,
		Flags:        m.player.Flags(),
		SpecialEvent: m.player.HasSpecialEvent,
	}
}

func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := Summary{
		TotalNPCs:         len(m.states),
		TotalInteractions: len(m.interactions),
	}
	total := 0
	for _, s := range m.states {
		total += s.Relationship
		if s.Available {
			sum.AvailableNPCs++
		}
		switch s.Mood {
		case MoodHostile:
			sum.HostileNPCs++
		case MoodHelpful:
			sum.AlliedNPCs++
		}
	}
	if len(m.states) > 0 {
		sum.AverageRelationship = float64(total) / float64(len(m.states))
	}
	return sum
}
