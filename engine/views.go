package engine

import (
	"jianghu-lite/jianghu"
	"jianghu-lite/jianghu/npc"
)

// RoundProgress is the position in the playthrough. Percentage counts the
// current round as played.
type RoundProgress struct {
	Current    int     `json:"current"`
	Max        int     `json:"max"`
	Percentage float64 `json:"percentage"`
	Remaining  int     `json:"remaining"`
}

func progressOf(s *jianghu.SessionState) RoundProgress {
	p := RoundProgress{Current: s.CurrentRound, Max: s.MaxRounds}
	if s.MaxRounds > 0 {
		p.Percentage = float64(s.CurrentRound+1) / float64(s.MaxRounds) * 100
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	}
	p.Remaining = s.MaxRounds - s.CurrentRound - 1
	if p.Remaining < 0 {
		p.Remaining = 0
	}
	return p
}

// GameStats summarizes the session for result screens.
type GameStats struct {
	SessionID         string             `json:"sessionId"`
	Phase             Phase              `json:"phase"`
	Progress          RoundProgress      `json:"progress"`
	Stats             jianghu.StatVector `json:"stats"`
	EventsCompleted   int                `json:"eventsCompleted"`
	Achievements      int                `json:"achievements"`
	TotalAchievements int                `json:"totalAchievements"`
	RandomEvents      int                `json:"randomEvents"`
	StoryFlags        jianghu.StoryFlags `json:"storyFlags"`
	Score             jianghu.Score      `json:"score"`
	GameOver          bool               `json:"gameOver"`
}

func (e *Engine) Phase() Phase {
	if !e.lockView("Phase") {
		return ""
	}
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) Stage() Stage {
	if !e.lockView("Stage") {
		return ""
	}
	defer e.mu.Unlock()
	return e.stage
}

func (e *Engine) SessionID() string {
	if !e.lockView("SessionID") {
		return ""
	}
	defer e.mu.Unlock()
	return e.sessionID()
}

// CurrentEvent returns a copy of the event awaiting a choice, and where it
// came from.
func (e *Engine) CurrentEvent() (*jianghu.GameEvent, EventSource, bool) {
	if !e.lockView("CurrentEvent") {
		return nil, "", false
	}
	defer e.mu.Unlock()
	if e.event == nil || e.phase != PhasePlaying {
		return nil, "", false
	}
	return e.event.Clone(), e.source, true
}

// CurrentRandomEvents returns the events staged for acknowledgement.
func (e *Engine) CurrentRandomEvents() []jianghu.RandomEvent {
	if !e.lockView("CurrentRandomEvents") {
		return nil
	}
	defer e.mu.Unlock()
	return cloneRandomEvents(e.pending)
}

// OptionAvailability maps each option of the current event to whether the
// player can afford it.
func (e *Engine) OptionAvailability() map[string]bool {
	if !e.lockView("OptionAvailability") {
		return nil
	}
	defer e.mu.Unlock()
	return jianghu.OptionAvailability(e.player, e.event)
}

func (e *Engine) RoundProgress() RoundProgress {
	if !e.lockView("RoundProgress") {
		return RoundProgress{}
	}
	defer e.mu.Unlock()
	return progressOf(e.session)
}

func (e *Engine) GameStats() GameStats {
	if !e.lockView("GameStats") {
		return GameStats{}
	}
	defer e.mu.Unlock()
	stats := e.player.Stats()
	return GameStats{
		SessionID:         e.session.ID,
		Phase:             e.phase,
		Progress:          progressOf(e.session),
		Stats:             stats,
		EventsCompleted:   len(e.session.EventHistory),
		Achievements:      len(jianghu.UnlockedIDs(e.session.Achievements)),
		TotalAchievements: len(e.session.Achievements),
		RandomEvents:      randomStats(e.catalog.RandomPool(), e.triggered).Count,
		StoryFlags:        e.player.StoryFlags(),
		Score:             e.rules.Score(stats),
		GameOver:          e.session.GameOver,
	}
}

// RandomEventStats counts the pool events seen this session.
func (e *Engine) RandomEventStats() RandomStats {
	if !e.lockView("RandomEventStats") {
		return RandomStats{}
	}
	defer e.mu.Unlock()
	return randomStats(e.catalog.RandomPool(), e.triggered)
}

// Player returns a deep copy of the player.
func (e *Engine) Player() jianghu.PlayerData {
	if !e.lockView("Player") {
		return jianghu.PlayerData{}
	}
	defer e.mu.Unlock()
	return e.player.Export()
}

func (e *Engine) PlayerSummary() jianghu.Summary {
	if !e.lockView("PlayerSummary") {
		return jianghu.Summary{}
	}
	defer e.mu.Unlock()
	return e.player.Summary()
}

func (e *Engine) NPCStates() []npc.State {
	if !e.lockView("NPCStates") {
		return nil
	}
	defer e.mu.Unlock()
	return e.npcs.States()
}

func (e *Engine) NPCInteractions() []npc.Interaction {
	if !e.lockView("NPCInteractions") {
		return nil
	}
	defer e.mu.Unlock()
	return e.npcs.Interactions()
}

func (e *Engine) Relationships() map[string]jianghu.Relationship {
	if !e.lockView("Relationships") {
		return nil
	}
	defer e.mu.Unlock()
	return e.player.Relationships()
}

func (e *Engine) Achievements() []jianghu.Achievement {
	if !e.lockView("Achievements") {
		return nil
	}
	defer e.mu.Unlock()
	return jianghu.CloneAchievements(e.session.Achievements)
}

// LastResult returns the outcome of the latest choice this round.
func (e *Engine) LastResult() (jianghu.EventResult, bool) {
	if !e.lockView("LastResult") {
		return jianghu.EventResult{}, false
	}
	defer e.mu.Unlock()
	if e.lastResult == nil {
		return jianghu.EventResult{}, false
	}
	res := *e.lastResult
	res.Effects = res.Effects.Clone()
	res.Achievements = jianghu.CloneAchievements(res.Achievements)
	res.DelayedEffects = jianghu.CloneDelayedEffects(res.DelayedEffects)
	return res, true
}

// Notices returns narrative lines produced since the round started: delayed
// effects, NPC agenda moves and unlocks outside of choices.
func (e *Engine) Notices() []string {
	if !e.lockView("Notices") {
		return nil
	}
	defer e.mu.Unlock()
	return append([]string(nil), e.notices...)
}

func (e *Engine) Advice() []string {
	if !e.lockView("Advice") {
		return nil
	}
	defer e.mu.Unlock()
	return e.rules.Advice(e.player.Stats())
}
