package engine

import "fmt"

// Health compares the round counters kept by the engine, the session, the
// player and the NPC manager, and validates the player's stats.
type Health struct {
	Healthy      bool     `json:"healthy"`
	EngineRound  int      `json:"engineRound"`
	SessionRound int      `json:"sessionRound"`
	PlayerRound  int      `json:"playerRound"`
	NPCRound     int      `json:"npcRound"`
	Issues       []string `json:"issues,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

func (e *Engine) HealthCheck() Health {
	if !e.lockView("HealthCheck") {
		return Health{Issues: []string{ErrRoundInProgress.Error()}}
	}
	defer e.mu.Unlock()
	return e.healthLocked()
}

func (e *Engine) healthLocked() Health {
	h := Health{
		EngineRound:  e.round,
		SessionRound: e.session.CurrentRound,
		PlayerRound:  e.player.Round(),
		NPCRound:     e.npcs.Round(),
	}
	if h.EngineRound != h.SessionRound {
		h.Issues = append(h.Issues, fmt.Sprintf("engine round %d != session round %d", h.EngineRound, h.SessionRound))
	}
	if h.PlayerRound != h.SessionRound {
		h.Issues = append(h.Issues, fmt.Sprintf("player round %d != session round %d", h.PlayerRound, h.SessionRound))
	}
	if h.NPCRound != h.SessionRound {
		h.Issues = append(h.Issues, fmt.Sprintf("npc round %d != session round %d", h.NPCRound, h.SessionRound))
	}
	if h.SessionRound < 0 || h.SessionRound > e.session.MaxRounds {
		h.Issues = append(h.Issues, fmt.Sprintf("round %d outside [0, %d]", h.SessionRound, e.session.MaxRounds))
	}
	v := e.rules.Validate(e.player.Stats())
	h.Issues = append(h.Issues, v.Errors...)
	h.Warnings = v.Warnings
	h.Healthy = len(h.Issues) == 0
	return h
}

// Resync aligns every round counter on the session's round. It reports
// whether the engine is healthy afterwards.
func (e *Engine) Resync() bool {
	healthy := false
	e.run("resync", func() error {
		r := e.session.CurrentRound
		if r < 0 {
			r = 0
		}
		if r > e.session.MaxRounds {
			r = e.session.MaxRounds
		}
		e.session.CurrentRound = r
		e.round = r
		e.player.SetRound(r)
		e.npcs.SetRound(r)
		h := e.healthLocked()
		healthy = h.Healthy
		if !healthy {
			e.log.Warn("resync left issues", "issues", h.Issues)
		}
		return nil
	})
	return healthy
}
