package jianghu

import (
	"errors"
	"testing"
	"time"
)

func testAchievements() []Achievement {
	return []Achievement{
		{ID: "ach-beginner", Name: "初出江湖", Requires: map[Stat]int{StatMartial: 5}, Bonus: Delta{StatFame: 1}},
		{ID: "ach-master", Name: "武林宗师", Requires: map[Stat]int{StatMartial: 12}, Bonus: Delta{StatMartial: 3, StatFame: 2}},
	}
}

func newTestSession() *SessionState {
	s := NewSessionState(DefaultMaxRounds, time.Unix(0, 0))
	s.Achievements = LockedAchievements(testAchievements())
	return s
}

func testEvent() *GameEvent {
	return &GameEvent{
		ID:    2,
		Title: "街市冲突",
		Options: []EventOption{
			{ID: "A", Description: "挺身而出", Effects: Delta{StatMartial: 2}},
			{ID: "B", Description: "耗尽内力", Effects: Delta{StatEnergy: -6}},
			{ID: "C", Description: "结交", NPCEffects: []NPCRelationshipEffect{
				{NPCID: "npc004", NPCName: "柳师兄", Change: 25},
			}},
		},
	}
}

func TestExecuteEventInsufficientEnergyLeavesStateUntouched(t *testing.T) {
	r := NewResolver(nil, nil)
	p := NewPlayer()
	s := newTestSession()
	before := p.Stats()

	res := r.ExecuteEvent(p, s, testEvent(), "B")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, ErrInsufficientEnergy) {
		t.Fatalf("got %v", res.Err)
	}
	if res.Narration != narrationInsufficientEnergy {
		t.Fatalf("narration: %q", res.Narration)
	}
	if p.Stats() != before {
		t.Fatal("stats changed on failure")
	}
	if len(p.History()) != 0 || len(s.EventHistory) != 0 {
		t.Fatal("history written on failure")
	}
}

func TestExecuteEventInvalidOption(t *testing.T) {
	r := NewResolver(nil, nil)
	res := r.ExecuteEvent(NewPlayer(), newTestSession(), testEvent(), "Z")
	if res.Success || !errors.Is(res.Err, ErrInvalidOption) {
		t.Fatalf("got %+v", res)
	}
	if !IsValidationError(res.Err) {
		t.Fatal("invalid option should be a validation error")
	}
}

func TestExecuteEventUnlocksAchievementAndAppliesBonus(t *testing.T) {
	r := NewResolver(nil, nil)
	p := NewPlayer()
	p.ApplyStatsChange(Delta{StatMartial: 4})
	s := newTestSession()

	res := r.ExecuteEvent(p, s, testEvent(), "A")
	if !res.Success {
		t.Fatalf("resolve failed: %v", res.Err)
	}
	got := p.Stats()
	if got.Martial != 6 || got.Fame != 1 {
		t.Fatalf("stats: martial=%d fame=%d, want 6 and 1", got.Martial, got.Fame)
	}
	if len(res.Achievements) != 1 || res.Achievements[0].Name != "初出江湖" {
		t.Fatalf("unlocked: %+v", res.Achievements)
	}
	if !s.Achievements[0].Unlocked || s.Achievements[1].Unlocked {
		t.Fatalf("session achievements: %+v", s.Achievements)
	}

	h := p.History()
	last := h[len(h)-1]
	if last.Event == nil || last.Event.EventID != 2 || last.Event.OptionID != "A" {
		t.Fatalf("event history entry: %+v", last)
	}
	if len(last.Event.Achievements) != 1 || last.Event.Achievements[0] != "初出江湖" {
		t.Fatalf("achievement names: %v", last.Event.Achievements)
	}
	if len(s.EventHistory) != 1 || res.Narration != "你选择了：挺身而出" {
		t.Fatalf("session history/narration mismatch: %v %q", s.EventHistory, res.Narration)
	}
}

func TestEvaluateAchievementsIdempotentAndMonotonic(t *testing.T) {
	stats := DefaultStats()
	stats.Martial = 13
	list := LockedAchievements(testAchievements())

	once, u1 := EvaluateAchievements(stats, list)
	twice, u2 := EvaluateAchievements(stats, once)
	if len(u1) != 2 || len(u2) != 0 {
		t.Fatalf("unlocks: first=%d second=%d", len(u1), len(u2))
	}
	for i := range once {
		if once[i].Unlocked != twice[i].Unlocked {
			t.Fatal("second evaluation changed the unlocked set")
		}
	}

	after, _ := EvaluateAchievements(DefaultStats(), twice)
	for _, a := range after {
		if !a.Unlocked {
			t.Fatalf("%s revoked", a.ID)
		}
	}
	if list[0].Unlocked {
		t.Fatal("input list mutated")
	}
}

func TestExecuteEventRelationshipTypeThresholds(t *testing.T) {
	r := NewResolver(nil, nil)
	p := NewPlayer()
	p.SetRelationship("npc004", "柳师兄", 5, RelationNeutral)
	s := newTestSession()

	r.ExecuteEvent(p, s, testEvent(), "C")
	rel, _ := p.Relationship("npc004")
	if rel.Value != 30 || rel.Type != RelationFriend {
		t.Fatalf("got %+v, want value 30 friend", rel)
	}
}

func TestHooksRunInOrderAndIsolateFailures(t *testing.T) {
	hooks := NewHooks(nil)
	var order []string
	hooks.On(HookAfterEventComplete, "first", func(*HookContext) error {
		order = append(order, "first")
		return errors.New("boom")
	})
	hooks.On(HookAfterEventComplete, "second", func(*HookContext) error {
		order = append(order, "second")
		panic("kaboom")
	})
	hooks.On(HookAfterEventComplete, "third", func(ctx *HookContext) error {
		order = append(order, "third")
		if ctx.Event == nil || ctx.Option == nil || ctx.Player == nil {
			t.Error("hook context incomplete")
		}
		return nil
	})
	var beforeSeen bool
	hooks.On(HookBeforeEventComplete, "before", func(ctx *HookContext) error {
		beforeSeen = len(order) == 0
		return nil
	})

	r := NewResolver(hooks, nil)
	res := r.ExecuteEvent(NewPlayer(), newTestSession(), testEvent(), "A")
	if !res.Success {
		t.Fatalf("failing hooks aborted resolution: %v", res.Err)
	}
	if !beforeSeen {
		t.Fatal("before hook did not run first")
	}
	if len(order) != 3 || order[0] != "first" || order[2] != "third" {
		t.Fatalf("hook order: %v", order)
	}

	if hooks.Off(HookAfterEventComplete, "second") != 1 || hooks.Count(HookAfterEventComplete) != 2 {
		t.Fatal("Off did not remove the subscriber")
	}
}

func TestDelayedEffectsFireOnceWhenDueAndConditionHolds(t *testing.T) {
	r := NewResolver(nil, nil)
	p := NewPlayer()
	s := newTestSession()

	ev := &GameEvent{ID: 7, Title: "秘密交易", Options: []EventOption{{
		ID: "A", Description: "接受交易", Effects: Delta{StatMartial: 2},
		Delayed: []DelayedSpec{
			{InRounds: 2, Kind: DelayedStats, Description: "秘籍来历败露", Stats: Delta{StatFame: -1}},
			{InRounds: 1, Kind: DelayedFlag, Description: "gated", Flag: &FlagPayload{Key: "gated", Value: "1"},
				Condition: Condition{MinStats: map[Stat]int{StatMartial: 50}}},
		},
	}}}
	s.CurrentRound = 6
	if res := r.ExecuteEvent(p, s, ev, "A"); len(res.DelayedEffects) != 0 {
		t.Fatalf("effects fired early: %+v", res.DelayedEffects)
	}
	if len(s.ActiveDelayedEffects()) != 2 {
		t.Fatalf("scheduled: %d", len(s.ActiveDelayedEffects()))
	}

	s.CurrentRound = 8
	fired := r.ProcessDelayedEffects(p, s)
	if len(fired) != 1 || fired[0].Kind != DelayedStats {
		t.Fatalf("fired: %+v", fired)
	}
	if p.Stats().Fame != -1 {
		t.Fatalf("fame: %d", p.Stats().Fame)
	}
	if again := r.ProcessDelayedEffects(p, s); len(again) != 0 {
		t.Fatal("delayed effect fired twice")
	}
	if p.HasFlag("gated") {
		t.Fatal("condition ignored")
	}

	var delayedEntries int
	for _, h := range p.History() {
		if h.Kind == HistoryDelayedEffect {
			delayedEntries++
		}
	}
	if delayedEntries != 1 {
		t.Fatalf("delayed history entries: %d", delayedEntries)
	}
}

func TestApplyRandomEventsRecordsHistory(t *testing.T) {
	r := NewResolver(nil, nil)
	p := NewPlayer()
	p.ApplyStatsChange(Delta{StatMartial: 3})
	s := newTestSession()
	s.CurrentRound = 2

	unlocked := r.ApplyRandomEvents(p, s, []RandomEvent{{
		ID: "re-mystery-1", Type: "mystery", Title: "古洞奇遇",
		Effects: Delta{StatMartial: 3, StatFame: 1, StatEnergy: 1},
	}})
	if len(unlocked) != 1 {
		t.Fatalf("unlocked: %+v", unlocked)
	}
	var kinds []HistoryKind
	for _, h := range p.History() {
		kinds = append(kinds, h.Kind)
	}
	var sawRandom, sawAchievement bool
	for _, k := range kinds {
		sawRandom = sawRandom || k == HistoryRandom
		sawAchievement = sawAchievement || k == HistoryAchievement
	}
	if !sawRandom || !sawAchievement {
		t.Fatalf("history kinds: %v", kinds)
	}
}

func TestThresholdFlags(t *testing.T) {
	r := NewResolver(nil, nil)
	p := NewPlayer()
	p.ApplyStatsChange(Delta{StatFame: 15, StatMartial: 20})
	s := NewSessionState(DefaultMaxRounds, time.Unix(0, 0))
	r.ExecuteEvent(p, s, testEvent(), "A")
	if !p.HasFlag(FlagFameThresholdReached) || !p.HasFlag(FlagMartialMaster) {
		t.Fatalf("flags: %v", p.Flags())
	}
}

func TestOptionAvailability(t *testing.T) {
	p := NewPlayer()
	avail := OptionAvailability(p, testEvent())
	if !avail["A"] || avail["B"] || !avail["C"] {
		t.Fatalf("availability: %v", avail)
	}
}
