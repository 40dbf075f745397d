package engine

import (
	"context"
	"errors"
	"fmt"

	"jianghu-lite/jianghu"
	"jianghu-lite/savegame"
)

func (e *Engine) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
}

// snapshotLocked captures the full session.
func (e *Engine) snapshotLocked() *savegame.Snapshot {
	eventID := 0
	if e.event != nil {
		eventID = e.event.ID
	}
	return &savegame.Snapshot{
		Version:               savegame.CurrentVersion,
		SessionID:             e.session.ID,
		Phase:                 e.phase.String(),
		Timestamp:             e.cfg.Now(),
		Session:               e.session.Clone(),
		Player:                e.player.Export(),
		TriggeredRandomEvents: sortedKeys(e.triggered),
		NPCs:                  e.npcs.States(),
		Stage:                 string(e.stage),
		EventID:               eventID,
		PendingRandom:         cloneRandomEvents(e.pending),
	}
}

// Snapshot returns a copy of the current state in save form.
func (e *Engine) Snapshot() *savegame.Snapshot {
	if !e.lockView("Snapshot") {
		return nil
	}
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) saveLocked() error {
	if e.store == nil {
		return ErrNoStore
	}
	if e.phase == PhaseStart {
		return ErrWrongPhase
	}
	ctx, cancel := e.storeContext()
	defer cancel()

	prev := e.session.LastSavedAt
	e.session.LastSavedAt = e.cfg.Now()
	if err := savegame.Save(ctx, e.store, e.snapshotLocked()); err != nil {
		e.session.LastSavedAt = prev
		return err
	}
	return nil
}

// autosave persists after a transition while a game is running. Failures
// are logged and never roll back the transition.
func (e *Engine) autosave() {
	if !e.cfg.Autosave || e.store == nil {
		return
	}
	if e.phase != PhasePlaying && e.phase != PhaseResult {
		return
	}
	if err := e.saveLocked(); err != nil {
		e.log.Warn("autosave failed", "session", e.session.ID, "err", err)
	}
}

func (e *Engine) SaveGame() bool {
	return e.run("save_game", func() error {
		if err := e.saveLocked(); err != nil {
			return err
		}
		e.log.Info("game saved", "session", e.session.ID, "round", e.session.CurrentRound)
		return nil
	})
}

// LoadGame replaces the running session with the stored one. A missing,
// expired or malformed save leaves the engine untouched.
func (e *Engine) LoadGame() bool {
	return e.run("load_game", func() error {
		if e.store == nil {
			return ErrNoStore
		}
		ctx, cancel := e.storeContext()
		defer cancel()
		snap, err := savegame.Load(ctx, e.store, e.cfg.Now(), e.cfg.SaveTTL)
		if err != nil {
			if errors.Is(err, savegame.ErrMalformed) {
				e.log.Error("discarding unreadable save", "err", err)
			}
			return err
		}
		return e.restoreLocked(snap)
	})
}

// ContinueGame resumes from a snapshot obtained elsewhere, e.g. a lobby.
func (e *Engine) ContinueGame(snap *savegame.Snapshot) bool {
	return e.run("continue_game", func() error {
		if snap == nil {
			return savegame.ErrNotFound
		}
		if err := savegame.Verify(snap); err != nil {
			return err
		}
		return e.restoreLocked(snap.Clone())
	})
}

// HasSavedGame reports whether LoadGame would find a usable save.
func (e *Engine) HasSavedGame() bool {
	if e.store == nil {
		return false
	}
	ctx, cancel := e.storeContext()
	defer cancel()
	return savegame.Exists(ctx, e.store, e.cfg.Now(), e.cfg.SaveTTL)
}

func (e *Engine) ClearSave() bool {
	return e.run("clear_save", func() error {
		if e.store == nil {
			return ErrNoStore
		}
		ctx, cancel := e.storeContext()
		defer cancel()
		return savegame.Clear(ctx, e.store)
	})
}

// restoreLocked rebuilds every piece of session state from snap.
func (e *Engine) restoreLocked(snap *savegame.Snapshot) error {
	if snap.Session == nil {
		return savegame.ErrMalformed
	}
	session := snap.Session.Clone()
	session.Achievements = e.mergeAchievements(session.Achievements)
	if session.CurrentRound > session.MaxRounds {
		session.CurrentRound = session.MaxRounds
	}

	player := jianghu.RestorePlayer(snap.Player)
	player.SetLogger(e.cfg.Logger)
	player.SetRound(session.CurrentRound)

	phase, stage := PhasePlaying, parseStage(snap.Stage)
	pending := cloneRandomEvents(snap.PendingRandom)
	var (
		event  *jianghu.GameEvent
		source EventSource
	)
	switch {
	case session.Questionnaire == nil:
		phase, stage, pending = PhaseQuestionnaire, StageIdle, nil
	case session.IsGameOver():
		session.GameOver = true
		phase, stage, pending = PhaseResult, StageIdle, nil
	default:
		if stage == StageRandomOffer && len(pending) == 0 {
			stage = StageResolved
		}
		if stage != StageRandomOffer {
			pending = nil
		}
		var ok bool
		if stage == StageAwaitingChoice {
			event, source, ok = SelectEvent(e.catalog, session.CurrentRound, player)
		} else {
			event, source, ok = e.resolvedEvent(snap.EventID, session)
		}
		if !ok && stage == StageAwaitingChoice {
			return fmt.Errorf("%w %d", ErrNoEvent, session.CurrentRound)
		}
	}

	npcs := e.newNPCManager(player)
	npcs.Restore(snap.NPCs)
	npcs.SetRound(session.CurrentRound)

	e.session = session
	e.player = player
	e.npcs = npcs
	e.round = session.CurrentRound
	e.phase, e.stage = phase, stage
	e.event, e.source = event, source
	e.pending = pending
	e.triggered = make(map[string]bool, len(snap.TriggeredRandomEvents))
	for _, id := range snap.TriggeredRandomEvents {
		e.triggered[id] = true
	}
	e.encounters = nil
	e.encounterRound = -1
	e.lastResult = nil
	e.notices = nil

	e.log.Info("game restored", "session", session.ID, "round", session.CurrentRound,
		"phase", e.phase.String(), "stage", string(e.stage), "version", snap.Version)
	return nil
}

// resolvedEvent finds the event already played in the snapshot's round. The
// choice may have changed which event selection would return, so it comes
// from the round's history entry, or the saved event id for older saves.
func (e *Engine) resolvedEvent(id int, session *jianghu.SessionState) (*jianghu.GameEvent, EventSource, bool) {
	for i := len(session.EventHistory) - 1; i >= 0; i-- {
		if session.EventHistory[i].Round == session.CurrentRound {
			id = session.EventHistory[i].EventID
			break
		}
	}
	if id == 0 {
		return nil, "", false
	}
	ev, ok := e.catalog.Event(id)
	if !ok {
		return nil, "", false
	}
	return ev, sourceOf(ev), true
}

// mergeAchievements maps saved unlock state onto the catalog definitions so
// renamed or added achievements pick up the current data.
func (e *Engine) mergeAchievements(saved []jianghu.Achievement) []jianghu.Achievement {
	unlocked := make(map[string]bool, len(saved))
	for _, a := range saved {
		if a.Unlocked {
			unlocked[a.ID] = true
		}
	}
	defs := e.catalog.Achievements()
	for i := range defs {
		defs[i].Unlocked = unlocked[defs[i].ID]
	}
	return defs
}
