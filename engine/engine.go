// Package engine drives one playthrough: questionnaire, ten rounds of
// scripted, branch and NPC events, random interludes and the final result.
// All state is owned by Engine and mutated only through its methods.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jianghu-lite/content"
	"jianghu-lite/internal/observability"
	"jianghu-lite/jianghu"
	"jianghu-lite/jianghu/npc"
	"jianghu-lite/savegame"
)

const followUpLabel = "event-follow-up"

type Engine struct {
	cfg     Config
	catalog *content.Catalog
	store   savegame.Store
	rng     *rand.Rand
	log     *slog.Logger
	tracer  trace.Tracer

	// processing rejects overlapping and reentrant mutations; mu guards the
	// state below.
	processing atomic.Bool
	mu         sync.Mutex

	phase    Phase
	stage    Stage
	round    int
	session  *jianghu.SessionState
	player   *jianghu.Player
	rules    *jianghu.RulesEngine
	hooks    *jianghu.Hooks
	resolver *jianghu.Resolver
	npcs     *npc.Manager

	event  *jianghu.GameEvent
	source EventSource

	// random events offered after the current choice, applied on ack
	pending    []jianghu.RandomEvent
	encounters []jianghu.RandomEvent
	triggered  map[string]bool

	encounterRound int
	lastResult     *jianghu.EventResult
	notices        []string
}

// New creates an engine in the start phase. store may be nil, in which case
// save operations report false.
func New(catalog *content.Catalog, store savegame.Store, cfg Config) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("engine: nil catalog")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("jianghu-lite/engine")
	}
	log := cfg.Logger.With("component", "engine")
	hooks := jianghu.NewHooks(log)
	e := &Engine{
		cfg:            cfg,
		catalog:        catalog,
		store:          store,
		rng:            rand.New(rand.NewSource(seed)),
		log:            log,
		tracer:         tracer,
		phase:          PhaseStart,
		rules:          jianghu.NewDefaultRulesEngine(),
		hooks:          hooks,
		resolver:       jianghu.NewResolver(hooks, cfg.Logger),
		triggered:      make(map[string]bool),
		encounterRound: -1,
	}
	hooks.On(jianghu.HookAfterEventComplete, followUpLabel, e.applyFollowUp)
	e.resetLocked()
	e.phase = PhaseStart
	return e, nil
}

// Hooks exposes the lifecycle registry. Subscribers run while an operation
// holds the engine: mutating calls from a subscriber are rejected and read
// views return zero values. Use the HookContext instead.
func (e *Engine) Hooks() *jianghu.Hooks { return e.hooks }

// lockView takes the state lock for a read view. While an operation is in
// flight the lock may belong to the goroutine running hook subscribers, so
// the view gives up rather than wait on it.
func (e *Engine) lockView(view string) bool {
	if !e.processing.Load() {
		e.mu.Lock()
		return true
	}
	if e.mu.TryLock() {
		return true
	}
	e.log.Warn("view unavailable during operation", "view", view)
	return false
}

// run executes a mutation under the reentrancy guard and the state lock.
func (e *Engine) run(op string, fn func() error) bool {
	if !e.processing.CompareAndSwap(false, true) {
		e.log.Warn("operation rejected", "op", op, "err", ErrRoundInProgress)
		return false
	}
	defer e.processing.Store(false)
	e.mu.Lock()
	defer e.mu.Unlock()

	_, span := e.tracer.Start(context.Background(), "engine."+op,
		trace.WithAttributes(observability.SessionAttributes(e.sessionID(), e.currentRound(), e.phase.String())...))
	defer span.End()

	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Warn("operation failed", "op", op, "phase", e.phase.String(), "err", err)
		return false
	}
	return true
}

func (e *Engine) sessionID() string {
	if e.session == nil {
		return ""
	}
	return e.session.ID
}

func (e *Engine) currentRound() int {
	if e.session == nil {
		return 0
	}
	return e.session.CurrentRound
}

func (e *Engine) requirePhase(want Phase) error {
	if e.phase != want {
		return fmt.Errorf("%w: %s, want %s", ErrWrongPhase, e.phase, want)
	}
	return nil
}

func (e *Engine) newNPCManager(p *jianghu.Player) *npc.Manager {
	m := npc.NewManager(e.catalog.NPCs(), p, e.cfg.NPC, e.cfg.Logger)
	m.SetTriggerHandler(e.onAgendaTrigger)
	return m
}

// resetLocked discards the playthrough and prepares a blank questionnaire.
func (e *Engine) resetLocked() {
	e.session = jianghu.NewSessionState(e.cfg.MaxRounds, e.cfg.Now())
	e.session.Achievements = e.catalog.Achievements()
	e.player = jianghu.NewPlayer()
	e.player.SetLogger(e.cfg.Logger)
	e.npcs = e.newNPCManager(e.player)
	e.triggered = make(map[string]bool)
	e.pending = nil
	e.encounters = nil
	e.encounterRound = -1
	e.event = nil
	e.source = ""
	e.lastResult = nil
	e.notices = nil
	e.round = 0
	e.stage = StageIdle
	e.phase = PhaseQuestionnaire
}

// StartNewGame abandons any running playthrough and opens the questionnaire.
func (e *Engine) StartNewGame() bool {
	return e.run("start_new_game", func() error {
		e.resetLocked()
		e.log.Info("new game", "session", e.session.ID)
		return nil
	})
}

// RestartGame clears the save and starts over.
func (e *Engine) RestartGame() bool {
	return e.run("restart_game", func() error {
		if e.store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
			defer cancel()
			if err := savegame.Clear(ctx, e.store); err != nil {
				e.log.Warn("clear save on restart", "err", err)
			}
		}
		e.resetLocked()
		e.log.Info("game restarted", "session", e.session.ID)
		return nil
	})
}

// CompleteQuestionnaire derives the starting stats from the answers and
// starts the first round.
func (e *Engine) CompleteQuestionnaire(a jianghu.Answers) bool {
	return e.run("complete_questionnaire", func() error {
		if err := e.requirePhase(PhaseQuestionnaire); err != nil {
			return err
		}
		initial, err := e.catalog.Questionnaire().InitialStats(a, e.rules)
		if err != nil {
			return err
		}
		e.player.ApplyStatsChange(initial.Sub(e.player.Stats()))
		answers := a
		e.session.Questionnaire = &answers
		e.phase = PhasePlaying
		if err := e.startRound(0); err != nil {
			return err
		}
		e.log.Info("questionnaire complete", "session", e.session.ID, "stats", e.player.Stats().String())
		e.autosave()
		return nil
	})
}

// startRound runs the round-start stage and selects the round's event.
func (e *Engine) startRound(r int) error {
	e.round = r
	e.session.CurrentRound = r
	e.player.SetRound(r)
	e.lastResult = nil

	before := e.player.Stats()
	if r > 0 {
		e.player.ApplyStatsChange(jianghu.Delta{jianghu.StatEnergy: 1})
	}
	e.hooks.Fire(jianghu.HookRoundStart, &jianghu.HookContext{
		Round:   r,
		Player:  e.player,
		Session: e.session,
		Before:  before,
		After:   e.player.Stats(),
	})
	for _, d := range e.resolver.ProcessDelayedEffects(e.player, e.session) {
		if d.Kind == jianghu.DelayedRelationship && d.Relationship != nil {
			e.npcs.SyncFromPlayer(d.Relationship.NPCID, d.Description)
		}
		e.notices = append(e.notices, d.Description)
	}

	if err := e.selectEvent(); err != nil {
		return err
	}
	e.stage = StageAwaitingChoice
	e.log.Debug("round started", "round", r, "event", e.event.ID, "source", string(e.source))
	return nil
}

func (e *Engine) selectEvent() error {
	ev, src, ok := SelectEvent(e.catalog, e.session.CurrentRound, e.player)
	if !ok {
		e.event, e.source = nil, ""
		return fmt.Errorf("%w %d", ErrNoEvent, e.session.CurrentRound)
	}
	e.event, e.source = ev, src
	return nil
}

// ExecuteEventChoice resolves optionID for the current event. On success the
// round's random events are staged for acknowledgement.
func (e *Engine) ExecuteEventChoice(optionID string) bool {
	return e.run("execute_event_choice", func() error {
		if err := e.requirePhase(PhasePlaying); err != nil {
			return err
		}
		if e.stage != StageAwaitingChoice || e.event == nil {
			return fmt.Errorf("%w: %s", ErrWrongStage, e.stage)
		}
		res := e.resolver.ExecuteEvent(e.player, e.session, e.event, optionID)
		e.lastResult = &res
		if !res.Success {
			return res.Err
		}

		if e.event.IsMainEvent() {
			e.player.RecordKeyChoice(e.session.CurrentRound+1, optionID, res.Effects)
		} else {
			e.player.MarkSpecialEvent(e.event.ID)
		}
		for _, d := range res.DelayedEffects {
			e.notices = append(e.notices, d.Description)
		}
		e.hooks.Fire(jianghu.HookRoundEnd, &jianghu.HookContext{
			Round:   e.session.CurrentRound,
			Player:  e.player,
			Session: e.session,
			Event:   e.event,
			Option:  e.event.Option(optionID),
			After:   e.player.Stats(),
		})

		e.stageRandomEvents()
		if len(e.pending) > 0 {
			e.stage = StageRandomOffer
		} else {
			e.stage = StageResolved
		}
		e.log.Info("event resolved", "round", e.session.CurrentRound, "event", e.event.ID,
			"option", optionID, "unlocked", len(res.Achievements), "random", len(e.pending))
		e.autosave()
		return nil
	})
}

// stageRandomEvents rolls for a pool event and adds any NPC encounter
// queued by an agenda trigger. Nothing is applied yet.
func (e *Engine) stageRandomEvents() {
	e.pending = nil
	if e.rng.Float64() < e.cfg.RandomChance(e.session.CurrentRound) {
		if re, ok := drawRandom(e.rng, e.catalog.RandomPool(), e.triggered); ok {
			e.triggered[re.ID] = true
			e.pending = append(e.pending, re)
		}
	}
	e.pending = append(e.pending, e.encounters...)
	e.encounters = nil
}

// AcknowledgeRandomEvents applies the staged random events.
func (e *Engine) AcknowledgeRandomEvents() bool {
	return e.run("acknowledge_random_events", func() error {
		if err := e.requirePhase(PhasePlaying); err != nil {
			return err
		}
		if e.stage != StageRandomOffer {
			return fmt.Errorf("%w: %s", ErrWrongStage, e.stage)
		}
		e.acknowledgeLocked()
		e.autosave()
		return nil
	})
}

func (e *Engine) acknowledgeLocked() {
	unlocked := e.resolver.ApplyRandomEvents(e.player, e.session, e.pending)
	for _, a := range unlocked {
		e.notices = append(e.notices, "解锁成就："+a.Name)
	}
	e.log.Debug("random events applied", "round", e.session.CurrentRound, "count", len(e.pending))
	e.pending = nil
	e.stage = StageResolved
}

// NextRound closes the current round (applying any unacknowledged random
// events) and starts the next one, or ends the game after the last round.
func (e *Engine) NextRound() bool {
	return e.run("next_round", func() error {
		if err := e.requirePhase(PhasePlaying); err != nil {
			return err
		}
		switch e.stage {
		case StageRandomOffer:
			e.acknowledgeLocked()
		case StageResolved:
		default:
			return fmt.Errorf("%w: %s", ErrWrongStage, e.stage)
		}

		next := e.session.CurrentRound + 1
		if next >= e.session.MaxRounds {
			e.finishLocked()
			e.autosave()
			return nil
		}
		e.notices = nil
		e.npcs.ProcessRoundUpdate(next)
		if err := e.startRound(next); err != nil {
			return err
		}
		e.autosave()
		return nil
	})
}

func (e *Engine) finishLocked() {
	last := e.session.MaxRounds
	e.session.CurrentRound = last
	e.session.GameOver = true
	e.round = last
	e.player.SetRound(last)
	e.npcs.SetRound(last)
	e.phase = PhaseResult
	e.stage = StageIdle
	e.event, e.source = nil, ""
	e.hooks.Fire(jianghu.HookGameOver, &jianghu.HookContext{
		Round:   last,
		Player:  e.player,
		Session: e.session,
		After:   e.player.Stats(),
	})
	score := e.rules.Score(e.player.Stats())
	e.log.Info("game over", "session", e.session.ID, "score", score.Total,
		"achievements", len(jianghu.UnlockedIDs(e.session.Achievements)))
}

// applyFollowUp keeps NPC states in step with relationship changes made by
// the resolver and applies the option's follow-up consequences.
func (e *Engine) applyFollowUp(hc *jianghu.HookContext) error {
	if hc.Option == nil {
		return nil
	}
	reason := ""
	if hc.Event != nil {
		reason = hc.Event.Title
	}
	for _, eff := range hc.Option.NPCEffects {
		e.npcs.SyncFromPlayer(eff.NPCID, reason)
	}
	fu := hc.Option.FollowUp
	if fu == nil {
		return nil
	}
	for _, f := range fu.Flags {
		hc.Player.SetFlag(f, "true")
	}
	var errs []error
	for _, d := range fu.NPCDeltas {
		if !e.npcs.UpdateRelationship(d.NPCID, d.Delta, d.Reason) {
			errs = append(errs, fmt.Errorf("follow-up for unknown npc %q", d.NPCID))
		}
	}
	for _, d := range fu.Debts {
		hc.Player.AddDebt(d.Creditor, d.Type, d.Amount, hc.Round+d.DueIn)
	}
	for path, d := range fu.Story {
		hc.Player.AdjustStoryPath(path, d)
	}
	return errors.Join(errs...)
}

// onAgendaTrigger runs inside NextRound while the state lock is held. At
// most one unseen encounter per round is queued for the next offer.
func (e *Engine) onAgendaTrigger(tm npc.TriggerMatch) {
	e.log.Info("agenda triggered", "npc", tm.NPCName, "agenda", tm.AgendaID, "trigger", string(tm.Trigger.Kind), "round", tm.Round)
	if dec, ok := e.npcs.MakeDecision(tm.NPCID); ok && dec.Narrative != "" {
		e.notices = append(e.notices, dec.Narrative)
	}
	if e.encounterRound == tm.Round {
		return
	}
	for _, re := range e.catalog.NPCEncounters(tm.NPCID) {
		if e.triggered[re.ID] {
			continue
		}
		e.triggered[re.ID] = true
		e.encounters = append(e.encounters, re)
		e.encounterRound = tm.Round
		return
	}
}

// UpdateNPCRelationship shifts a relationship outside of events.
func (e *Engine) UpdateNPCRelationship(npcID string, delta int, reason string) bool {
	return e.run("update_npc_relationship", func() error {
		if err := e.requirePhase(PhasePlaying); err != nil {
			return err
		}
		if !e.npcs.UpdateRelationship(npcID, delta, reason) {
			return fmt.Errorf("unknown npc %q", npcID)
		}
		e.autosave()
		return nil
	})
}

func (e *Engine) CanInteractWithNPC(npcID string) bool {
	if !e.lockView("CanInteractWithNPC") {
		return false
	}
	defer e.mu.Unlock()
	return e.phase == PhasePlaying && e.npcs.CanInteract(npcID)
}

// ExecuteNPCDecision lets the NPC act on the player once.
func (e *Engine) ExecuteNPCDecision(npcID string) (npc.Decision, bool) {
	var dec npc.Decision
	ok := e.run("execute_npc_decision", func() error {
		if err := e.requirePhase(PhasePlaying); err != nil {
			return err
		}
		d, found := e.npcs.MakeDecision(npcID)
		if !found {
			return fmt.Errorf("npc %q has nothing to do", npcID)
		}
		if !e.npcs.ExecuteDecision(d) {
			return fmt.Errorf("npc %q decision failed", npcID)
		}
		for _, a := range e.resolver.CheckAchievements(e.player, e.session) {
			e.notices = append(e.notices, "解锁成就："+a.Name)
		}
		dec = d
		e.autosave()
		return nil
	})
	return dec, ok
}
