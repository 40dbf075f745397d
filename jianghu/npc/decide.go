package npc

import "jianghu-lite/jianghu"

// Decision is what a Decider returns for one NPC.
type Decision struct {
	NPCID     string
	ActionID  string
	Kind      ActionKind
	Title     string
	Priority  int
	Effects   jianghu.Delta
	Narrative string
	FollowUps []string
}

// Decider picks an agenda action for an NPC.
type Decider interface {
	// Decide returns false when no action is satisfiable.
	Decide(def *Definition, view View) (Decision, bool)
	// Name returns a human-readable identifier for debugging.
	Name() string
}

// Traits that bias action priority.
const (
	TraitWarmHearted = "热心"
	TraitCalculating = "精于算计"
)

// AgendaDecider chooses the highest-priority action whose requirements hold.
// Ties keep the action listed first.
type AgendaDecider struct{}

func (AgendaDecider) Name() string { return "agenda" }

func (AgendaDecider) Decide(def *Definition, view View) (Decision, bool) {
	var best *Action
	bestPriority := 0
	for i := range def.Agenda.Actions {
		a := &def.Agenda.Actions[i]
		if !a.Requirements.Satisfied(view) {
			continue
		}
		p := actionPriority(def, a, view)
		if best == nil || p > bestPriority {
			best, bestPriority = a, p
		}
	}
	if best == nil {
		return Decision{}, false
	}
	return Decision{
		NPCID:     def.ID,
		ActionID:  best.ID,
		Kind:      best.Kind,
		Title:     best.Title,
		Priority:  bestPriority,
		Effects:   best.Effects.Clone(),
		Narrative: actionNarrative(def, best, view),
		FollowUps: followUps(best.Kind),
	}, true
}

func actionPriority(def *Definition, a *Action, view View) int {
	p := 1
	if view.Relationship > 50 && a.Kind == ActionHelp {
		p += 2
	}
	if def.HasTrait(TraitWarmHearted) && a.Kind == ActionHelp {
		p++
	}
	if def.HasTrait(TraitCalculating) && a.Kind == ActionRequest {
		p++
	}
	return p
}

func actionNarrative(def *Definition, a *Action, view View) string {
	base := a.Content
	if base == "" {
		base = def.Name + "有所行动"
	}
	switch {
	case view.Relationship > 50:
		return def.Name + "友善地" + base
	case view.Relationship < -20:
		return def.Name + "冷漠地" + base
	}
	return base
}

func followUps(kind ActionKind) []string {
	switch kind {
	case ActionHelp:
		return []string{"express_gratitude"}
	case ActionRequest:
		return []string{"consider_request"}
	}
	return nil
}

// Request and conflict bookkeeping.
const (
	RequestDebtType   = "favor"
	RequestDebtAmount = 1
	RequestDueRounds  = 3
)

// MakeDecision asks the decider for the NPC's next action. It reports false
// when the NPC cannot interact or has nothing to do.
func (m *Manager) MakeDecision(npcID string) (Decision, bool) {
	m.mu.RLock()
	d := m.registry.Get(npcID)
	s := m.states[npcID]
	if d == nil || s == nil || !m.canInteract(npcID) {
		m.mu.RUnlock()
		return Decision{}, false
	}
	v := m.view(s)
	decider := m.decider
	m.mu.RUnlock()

	dec, ok := decider.Decide(d, v)
	if ok {
		m.log.Debug("npc decides", "npc", d.Name, "decider", decider.Name(), "action", dec.ActionID, "priority", dec.Priority)
	}
	return dec, ok
}

// ExecuteDecision applies a decision to the player: help applies its stats,
// request also opens a favor debt, conflict also records a grudge and
// dialogue is narrative only.
func (m *Manager) ExecuteDecision(dec Decision) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.registry.Get(dec.NPCID)
	s := m.states[dec.NPCID]
	if d == nil || s == nil {
		return false
	}

	m.player.SetRound(m.round)
	kind := InteractionDialogue
	switch dec.Kind {
	case ActionHelp:
		kind = InteractionHelp
		m.player.ApplyStatsChange(dec.Effects)
	case ActionRequest:
		kind = InteractionRequest
		m.player.ApplyStatsChange(dec.Effects)
		m.player.AddDebt(d.ID, RequestDebtType, RequestDebtAmount, m.round+RequestDueRounds)
	case ActionConflict:
		kind = InteractionConflict
		m.player.ApplyStatsChange(dec.Effects)
		m.player.AddGrudge(d.ID, dec.ActionID, grudgeSeverity(dec.Effects))
	}

	m.countInteraction(s)
	m.interactions = append(m.interactions, Interaction{
		Round:       m.round,
		NPCID:       d.ID,
		Kind:        kind,
		Description: dec.Narrative,
		Effects:     dec.Effects.Clone(),
		OldValue:    s.Relationship,
		NewValue:    s.Relationship,
	})
	m.log.Info("npc action", "npc", d.Name, "action", dec.ActionID, "kind", string(dec.Kind))
	return true
}

// grudgeSeverity is the total magnitude of the losses a conflict inflicted.
func grudgeSeverity(effects jianghu.Delta) int {
	n := 0
	for _, v := range effects {
		if v < 0 {
			n -= v
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}
