package jianghu

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	narrationInvalidOption      = "无效的选项"
	narrationInsufficientEnergy = "内力不足，无法执行此选项"
	narrationChosen             = "你选择了："
)

// Threshold flags raised after every resolved event.
const (
	FlagFameThresholdReached = "fame_threshold_reached"
	FlagMartialMaster        = "martial_master_achieved"
)

// EventResult is the outcome of ExecuteEvent.
type EventResult struct {
	Success        bool
	Err            error
	EventID        int
	OptionID       string
	Effects        Delta
	Achievements   []Achievement
	DelayedEffects []DelayedEffect
	Narration      string
}

// Resolver validates and applies event choices.
type Resolver struct {
	hooks *Hooks
	log   *slog.Logger
}

// NewResolver creates a resolver firing lifecycle hooks on hooks. A nil hooks
// gets an empty registry.
func NewResolver(hooks *Hooks, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if hooks == nil {
		hooks = NewHooks(logger)
	}
	return &Resolver{hooks: hooks, log: logger.With("component", "resolver")}
}

func (r *Resolver) Hooks() *Hooks { return r.hooks }

// eventRelationshipType classifies relationship values set by event options.
func eventRelationshipType(value int) RelationshipType {
	switch {
	case value >= 30:
		return RelationFriend
	case value <= -30:
		return RelationEnemy
	default:
		return RelationNeutral
	}
}

// CanAfford reports whether the player has the energy an option costs.
func CanAfford(p *Player, opt *EventOption) bool {
	return p.Stats().Energy+opt.Effects[StatEnergy] >= 0
}

// OptionAvailability maps option id to whether the player can afford it.
func OptionAvailability(p *Player, ev *GameEvent) map[string]bool {
	out := make(map[string]bool)
	if ev == nil {
		return out
	}
	for i := range ev.Options {
		out[ev.Options[i].ID] = CanAfford(p, &ev.Options[i])
	}
	return out
}

// ExecuteEvent resolves optionID of ev for p within session s. Validation
// failures leave every piece of state untouched.
func (r *Resolver) ExecuteEvent(p *Player, s *SessionState, ev *GameEvent, optionID string) EventResult {
	res := EventResult{OptionID: optionID}
	if ev == nil {
		res.Err = ErrUnknownEvent
		res.Narration = narrationInvalidOption
		return res
	}
	res.EventID = ev.ID

	opt := ev.Option(optionID)
	if opt == nil {
		res.Err = ErrInvalidOption
		res.Narration = narrationInvalidOption
		r.log.Warn("invalid option", "event", ev.ID, "option", optionID)
		return res
	}
	if !CanAfford(p, opt) {
		res.Err = ErrInsufficientEnergy
		res.Narration = narrationInsufficientEnergy
		r.log.Info("option rejected", "event", ev.ID, "option", optionID, "energy", p.Stats().Energy)
		return res
	}

	p.SetRound(s.CurrentRound)
	before := p.Stats()
	p.ApplyStatsChange(opt.Effects)

	for _, eff := range opt.NPCEffects {
		value := eff.Change
		name := eff.NPCName
		if rel, ok := p.Relationship(eff.NPCID); ok {
			value = rel.Value + eff.Change
			if name == "" {
				name = rel.TargetName
			}
		}
		p.SetRelationship(eff.NPCID, name, value, eventRelationshipType(clampRelationship(value)))
	}

	unlocked := r.CheckAchievements(p, s)

	names := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		names = append(names, a.Name)
	}
	p.addHistory(HistoryEntry{
		Round:       s.CurrentRound,
		Kind:        HistoryEvent,
		Description: fmt.Sprintf("%s：%s", ev.Title, opt.Description),
		Effects:     opt.Effects.Clone(),
		Event:       &EventRecord{EventID: ev.ID, OptionID: opt.ID, Achievements: names},
	})
	s.EventHistory = append(s.EventHistory, EventHistoryEntry{
		Round:    s.CurrentRound,
		EventID:  ev.ID,
		OptionID: opt.ID,
		Effects:  opt.Effects.Clone(),
	})

	for _, spec := range opt.Delayed {
		d, err := spec.Schedule(s.CurrentRound)
		if err != nil {
			r.log.Error("skip delayed effect", "event", ev.ID, "option", opt.ID, "err", err)
			continue
		}
		s.AddDelayedEffect(d)
	}

	hc := &HookContext{
		Round:   s.CurrentRound,
		Player:  p,
		Session: s,
		Event:   ev,
		Option:  opt,
		Before:  before,
		After:   p.Stats(),
	}
	r.hooks.Fire(HookBeforeEventComplete, hc)
	hc.After = p.Stats()
	r.hooks.Fire(HookAfterEventComplete, hc)

	r.applyThresholdFlags(p)
	fired := r.ProcessDelayedEffects(p, s)

	res.Success = true
	res.Effects = opt.Effects.Clone()
	res.Achievements = unlocked
	res.DelayedEffects = fired
	res.Narration = narrationChosen + opt.Description
	r.log.Debug("event resolved", "event", ev.ID, "option", opt.ID, "unlocked", len(unlocked), "delayed", len(fired))
	return res
}

// CheckAchievements unlocks every achievement that now holds, applies the
// bonuses and stores the updated list on s.
func (r *Resolver) CheckAchievements(p *Player, s *SessionState) []Achievement {
	next, unlocked := EvaluateAchievements(p.Stats(), s.Achievements)
	s.Achievements = next
	for _, a := range unlocked {
		if len(a.Bonus) > 0 {
			p.ApplyStatsChange(a.Bonus)
		}
		r.log.Info("achievement unlocked", "id", a.ID, "name", a.Name)
	}
	return unlocked
}

func (r *Resolver) applyThresholdFlags(p *Player) {
	stats := p.Stats()
	if stats.Fame >= 15 && !p.HasFlag(FlagFameThresholdReached) {
		p.SetFlag(FlagFameThresholdReached, "true")
	}
	if stats.Martial >= 20 && !p.HasFlag(FlagMartialMaster) {
		p.SetFlag(FlagMartialMaster, "true")
	}
}

// ProcessDelayedEffects fires every active effect due in the current round
// whose condition holds. A failing effect is logged and left active.
func (r *Resolver) ProcessDelayedEffects(p *Player, s *SessionState) []DelayedEffect {
	var fired []DelayedEffect
	for i := range s.DelayedEffects {
		d := &s.DelayedEffects[i]
		if !d.Due(s.CurrentRound) || !d.Condition.Holds(p) {
			continue
		}
		effects, err := runDelayed(*d, p)
		if err != nil {
			r.log.Error("delayed effect failed", "id", d.ID, "kind", string(d.Kind), "err", err)
			continue
		}
		d.Active = false
		p.addHistory(HistoryEntry{
			Round:       s.CurrentRound,
			Kind:        HistoryDelayedEffect,
			Description: d.Description,
			Effects:     effects,
			Delayed:     &DelayedRecord{EffectID: d.ID, Kind: d.Kind},
		})
		fired = append(fired, cloneDelayed(*d))
	}
	return fired
}

func runDelayed(d DelayedEffect, p *Player) (effects Delta, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return d.apply(p)
}

// ApplyRandomEvents applies acknowledged random events, logs them and
// re-evaluates achievements.
func (r *Resolver) ApplyRandomEvents(p *Player, s *SessionState, events []RandomEvent) []Achievement {
	if len(events) == 0 {
		return nil
	}
	p.SetRound(s.CurrentRound)
	for _, ev := range events {
		p.ApplyStatsChange(ev.Effects)
		p.addHistory(HistoryEntry{
			Round:       s.CurrentRound,
			Kind:        HistoryRandom,
			Description: "随机事件：" + ev.Title,
			Effects:     ev.Effects.Clone(),
			Random:      &RandomRecord{EventID: ev.ID, Type: ev.Type},
		})
	}
	unlocked := r.CheckAchievements(p, s)
	if len(unlocked) > 0 {
		rec := &AchievementRecord{}
		for _, a := range unlocked {
			rec.IDs = append(rec.IDs, a.ID)
			rec.Names = append(rec.Names, a.Name)
		}
		p.addHistory(HistoryEntry{
			Round:       s.CurrentRound,
			Kind:        HistoryAchievement,
			Description: "随机事件后解锁成就",
			Achievement: rec,
		})
	}
	return unlocked
}

// IsValidationError reports whether err is a recoverable choice error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidOption) || errors.Is(err, ErrInsufficientEnergy)
}
