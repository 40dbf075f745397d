package engine

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"jianghu-lite/content"
	"jianghu-lite/jianghu"
	"jianghu-lite/savegame"
)

var testAnswers = jianghu.Answers{
	Background:  "family",
	Personality: "resilient",
	Ambition:    "fame",
	Age:         "23-25",
	Talent:      "martial",
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.Autosave = false
	cfg.Logger = quietLogger()
	cfg.RandomChance = func(int) float64 { return 0 }
	return cfg
}

func newTestEngine(t *testing.T, store savegame.Store, cfg Config) *Engine {
	t.Helper()
	e, err := New(content.MustLoad(), store, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func startGame(t *testing.T, e *Engine) {
	t.Helper()
	if !e.StartNewGame() {
		t.Fatal("StartNewGame failed")
	}
	if !e.CompleteQuestionnaire(testAnswers) {
		t.Fatal("CompleteQuestionnaire failed")
	}
	if e.Phase() != PhasePlaying || e.Stage() != StageAwaitingChoice {
		t.Fatalf("after questionnaire: %s/%s", e.Phase(), e.Stage())
	}
}

// choose resolves prefer when affordable, else the first affordable option.
func choose(t *testing.T, e *Engine, prefer string) string {
	t.Helper()
	ev, _, ok := e.CurrentEvent()
	if !ok {
		t.Fatal("no current event")
	}
	avail := e.OptionAvailability()
	pick := ""
	if avail[prefer] {
		pick = prefer
	} else {
		for _, o := range ev.Options {
			if avail[o.ID] {
				pick = o.ID
				break
			}
		}
	}
	if pick == "" {
		t.Fatalf("no affordable option in event %d", ev.ID)
	}
	if !e.ExecuteEventChoice(pick) {
		t.Fatalf("ExecuteEventChoice(%s) on event %d failed", pick, ev.ID)
	}
	return pick
}

func advance(t *testing.T, e *Engine) {
	t.Helper()
	if !e.NextRound() {
		t.Fatalf("NextRound failed at round %d", e.RoundProgress().Current)
	}
}

func TestFullPlaythroughKeepsRoundCountersInStep(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	if e.Phase() != PhaseStart {
		t.Fatalf("initial phase: %s", e.Phase())
	}
	startGame(t, e)

	for r := 0; r < jianghu.DefaultMaxRounds; r++ {
		p := e.RoundProgress()
		if p.Current != r || p.Max != 10 || p.Remaining != 9-r {
			t.Fatalf("round %d progress: %+v", r, p)
		}
		if h := e.HealthCheck(); !h.Healthy {
			t.Fatalf("round %d health: %+v", r, h)
		}
		choose(t, e, "C")
		if st := e.Stage(); st != StageResolved && st != StageRandomOffer {
			t.Fatalf("stage after choice: %s", st)
		}
		if st := e.Player().Stats; st.Energy < 0 || st.Martial < 0 || st.Network < 0 {
			t.Fatalf("stats out of bounds: %v", st)
		}
		advance(t, e)
	}

	if e.Phase() != PhaseResult {
		t.Fatalf("phase after last round: %s", e.Phase())
	}
	gs := e.GameStats()
	if !gs.GameOver || gs.Progress.Current != 10 || gs.Progress.Percentage != 100 || gs.Progress.Remaining != 0 {
		t.Fatalf("game stats: %+v", gs)
	}
	if gs.EventsCompleted != 10 {
		t.Fatalf("events completed: %d", gs.EventsCompleted)
	}
	if h := e.HealthCheck(); !h.Healthy {
		t.Fatalf("final health: %+v", h)
	}
	if e.NextRound() || e.ExecuteEventChoice("A") {
		t.Fatal("transitions accepted after game over")
	}
}

func TestRandomEventsNeverRepeat(t *testing.T) {
	cfg := testConfig()
	cfg.RandomChance = func(int) float64 { return 1 }
	e := newTestEngine(t, nil, cfg)
	startGame(t, e)

	seen := make(map[string]bool)
	for r := 0; r < 10; r++ {
		choose(t, e, "C")
		if e.Stage() != StageRandomOffer {
			t.Fatalf("round %d: no random offer", r)
		}
		for _, re := range e.CurrentRandomEvents() {
			if seen[re.ID] {
				t.Fatalf("random event %s offered twice", re.ID)
			}
			seen[re.ID] = true
		}
		if r%2 == 0 && !e.AcknowledgeRandomEvents() {
			t.Fatal("acknowledge failed")
		}
		advance(t, e)
	}
	st := e.RandomEventStats()
	if st.Count != 10 || st.Total != 18 || st.Remaining != 8 {
		t.Fatalf("random stats: %+v", st)
	}
}

func TestRandomEventEffectsWaitForAcknowledgement(t *testing.T) {
	cfg := testConfig()
	cfg.RandomChance = func(int) float64 { return 1 }
	e := newTestEngine(t, nil, cfg)
	startGame(t, e)
	choose(t, e, "B")

	before := e.Player()
	offered := e.CurrentRandomEvents()
	if len(offered) == 0 {
		t.Fatal("nothing staged")
	}
	if e.Player().Stats != before.Stats {
		t.Fatal("staged effects applied before acknowledgement")
	}
	if !e.AcknowledgeRandomEvents() {
		t.Fatal("acknowledge failed")
	}
	if e.AcknowledgeRandomEvents() {
		t.Fatal("second acknowledge accepted")
	}
	after := e.Player()
	random := 0
	for _, h := range after.History {
		if h.Kind == jianghu.HistoryRandom {
			random++
		}
	}
	if random != len(offered) {
		t.Fatalf("random history entries: %d, want %d", random, len(offered))
	}
}

func TestBranchEventTakesPrecedence(t *testing.T) {
	play := func(roundTwo string) *Engine {
		e := newTestEngine(t, nil, testConfig())
		startGame(t, e)
		choose(t, e, "B")
		advance(t, e)
		if got := choose(t, e, roundTwo); got != roundTwo {
			t.Fatalf("round 2 picked %s", got)
		}
		advance(t, e)
		for r := 2; r < 5; r++ {
			choose(t, e, "B")
			advance(t, e)
		}
		return e
	}

	e := play("A")
	p := e.Player()
	if p.StoryFlags.Justice != 4 || p.StoryFlags.KeyChoices[2] != "A" {
		t.Fatalf("story flags: %+v", p.StoryFlags)
	}
	ev, src, ok := e.CurrentEvent()
	if !ok || src != SourceBranch || ev.ID != 6001 {
		t.Fatalf("round index 5: %v %s", ev, src)
	}

	// fame from the questionnaire alone satisfies the NPC event at index 5
	e = play("B")
	ev, src, _ = e.CurrentEvent()
	if src != SourceNPC || ev.ID != 1002 {
		t.Fatalf("without justice: event %d from %s", ev.ID, src)
	}
}

func TestInsufficientEnergyLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)

	snap := e.Snapshot()
	snap.Player.Stats.Energy = 0
	if !e.ContinueGame(snap) {
		t.Fatal("ContinueGame failed")
	}
	before := e.Player()
	if avail := e.OptionAvailability(); avail["A"] || !avail["B"] {
		t.Fatalf("availability: %v", avail)
	}
	if e.ExecuteEventChoice("A") {
		t.Fatal("unaffordable option accepted")
	}
	res, ok := e.LastResult()
	if !ok || res.Success || !errors.Is(res.Err, jianghu.ErrInsufficientEnergy) {
		t.Fatalf("result: %+v", res)
	}
	after := e.Player()
	if after.Stats != before.Stats || len(after.History) != len(before.History) {
		t.Fatal("failed choice mutated the player")
	}
	if e.Stage() != StageAwaitingChoice {
		t.Fatalf("stage: %s", e.Stage())
	}
	if e.ExecuteEventChoice("Z") {
		t.Fatal("unknown option accepted")
	}
	if !e.ExecuteEventChoice("B") {
		t.Fatal("affordable option rejected")
	}
}

func TestSaveAndReloadInNewEngine(t *testing.T) {
	store := savegame.NewMemoryStore()
	cfg := testConfig()
	cfg.RandomChance = func(int) float64 { return 1 }
	e := newTestEngine(t, store, cfg)
	startGame(t, e)
	for r := 0; r < 3; r++ {
		choose(t, e, "A")
		advance(t, e)
	}
	if !e.SaveGame() {
		t.Fatal("SaveGame failed")
	}
	want := e.Player()
	wantAch := jianghu.UnlockedIDs(e.Achievements())
	wantEv, _, _ := e.CurrentEvent()
	wantRandom := e.RandomEventStats()

	other := newTestEngine(t, store, cfg)
	if !other.HasSavedGame() {
		t.Fatal("save not visible to a new engine")
	}
	if !other.LoadGame() {
		t.Fatal("LoadGame failed")
	}
	if other.Phase() != PhasePlaying || other.Stage() != StageAwaitingChoice {
		t.Fatalf("restored %s/%s", other.Phase(), other.Stage())
	}
	if got := other.RoundProgress().Current; got != 3 {
		t.Fatalf("round: %d", got)
	}
	got := other.Player()
	if got.Stats != want.Stats || got.StoryFlags.Justice != want.StoryFlags.Justice {
		t.Fatalf("stats: %v vs %v", got.Stats, want.Stats)
	}
	gotAch := jianghu.UnlockedIDs(other.Achievements())
	if len(gotAch) != len(wantAch) {
		t.Fatalf("achievements: %v vs %v", gotAch, wantAch)
	}
	for i := range gotAch {
		if gotAch[i] != wantAch[i] {
			t.Fatalf("achievements: %v vs %v", gotAch, wantAch)
		}
	}
	if ev, _, _ := other.CurrentEvent(); ev.ID != wantEv.ID {
		t.Fatalf("event: %d vs %d", ev.ID, wantEv.ID)
	}
	if rs := other.RandomEventStats(); rs.Count != wantRandom.Count {
		t.Fatalf("random stats: %+v vs %+v", rs, wantRandom)
	}
	if h := other.HealthCheck(); !h.Healthy {
		t.Fatalf("health: %+v", h)
	}

	late := testConfig()
	late.Now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	stale := newTestEngine(t, store, late)
	if stale.HasSavedGame() || stale.LoadGame() {
		t.Fatal("8-day-old save was loaded")
	}
	if stale.Phase() != PhaseStart {
		t.Fatalf("failed load changed phase to %s", stale.Phase())
	}
}

func TestAutosaveAndRestart(t *testing.T) {
	store := savegame.NewMemoryStore()
	cfg := testConfig()
	cfg.Autosave = true
	e := newTestEngine(t, store, cfg)
	if e.HasSavedGame() {
		t.Fatal("fresh store has a save")
	}
	startGame(t, e)
	if !e.HasSavedGame() {
		t.Fatal("no autosave after questionnaire")
	}
	choose(t, e, "B")
	advance(t, e)

	if !e.RestartGame() {
		t.Fatal("RestartGame failed")
	}
	if e.HasSavedGame() {
		t.Fatal("restart kept the save")
	}
	if e.Phase() != PhaseQuestionnaire || e.RandomEventStats().Count != 0 {
		t.Fatalf("after restart: %s", e.Phase())
	}

	noStore := newTestEngine(t, nil, testConfig())
	startGame(t, noStore)
	if noStore.SaveGame() || noStore.LoadGame() || noStore.HasSavedGame() {
		t.Fatal("storeless engine reported a save")
	}
}

func TestHookCannotReenterEngine(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)

	reentered := true
	e.Hooks().On(jianghu.HookRoundEnd, "reenter", func(*jianghu.HookContext) error {
		reentered = e.NextRound()
		return nil
	})
	choose(t, e, "B")
	if reentered {
		t.Fatal("NextRound ran inside a hook")
	}
	if e.RoundProgress().Current != 0 || e.Stage() != StageResolved {
		t.Fatal("reentrant call changed state")
	}
	advance(t, e)
	if e.RoundProgress().Current != 1 {
		t.Fatal("NextRound after the hook failed")
	}
}

func TestOperationsCheckPhaseAndStage(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	if e.ExecuteEventChoice("A") || e.NextRound() || e.CompleteQuestionnaire(testAnswers) {
		t.Fatal("transition accepted in start phase")
	}
	if !e.StartNewGame() {
		t.Fatal("StartNewGame failed")
	}
	bad := testAnswers
	bad.Talent = "painting"
	if e.CompleteQuestionnaire(bad) || e.Phase() != PhaseQuestionnaire {
		t.Fatal("unknown answer accepted")
	}
	startGame(t, e)
	if e.NextRound() {
		t.Fatal("NextRound before a choice")
	}
	if e.AcknowledgeRandomEvents() {
		t.Fatal("acknowledge without an offer")
	}
	choose(t, e, "B")
	if e.ExecuteEventChoice("B") {
		t.Fatal("second choice in one round")
	}
}

func TestNPCEventFollowUp(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)

	snap := e.Snapshot()
	snap.Session.CurrentRound = 3
	snap.Player.Stats.Network = 3
	if !e.ContinueGame(snap) {
		t.Fatal("ContinueGame failed")
	}
	ev, src, ok := e.CurrentEvent()
	if !ok || src != SourceNPC || ev.ID != 1001 {
		t.Fatalf("round index 3: %v %s", ev, src)
	}
	if !e.ExecuteEventChoice("A") {
		t.Fatal("choice failed")
	}

	// +3 from the option, +2 from the follow-up
	if rel := e.Relationships()["npc004"]; rel.Value != 10 {
		t.Fatalf("player relationship: %+v", rel)
	}
	for _, s := range e.NPCStates() {
		if s.NPCID == "npc004" && s.Relationship != 10 {
			t.Fatalf("npc state: %+v", s)
		}
	}
	p := e.Player()
	if p.Flags["owed_help_npc004"] != "true" {
		t.Fatalf("flags: %v", p.Flags)
	}
	if len(p.StoryFlags.SpecialEvents) != 1 || p.StoryFlags.SpecialEvents[0] != 1001 {
		t.Fatalf("special events: %v", p.StoryFlags.SpecialEvents)
	}
	if _, ok := p.StoryFlags.KeyChoices[4]; ok {
		t.Fatal("NPC event recorded as key choice")
	}
	if h := e.HealthCheck(); !h.Healthy {
		t.Fatalf("health: %+v", h)
	}
}

func TestExecuteNPCDecision(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)

	if !e.CanInteractWithNPC("npc004") {
		t.Fatal("npc004 unavailable")
	}
	dec, ok := e.ExecuteNPCDecision("npc004")
	if !ok || dec.NPCID != "npc004" {
		t.Fatalf("decision: %+v %v", dec, ok)
	}
	if _, ok := e.ExecuteNPCDecision("npc001"); ok {
		t.Fatal("npc without actions acted")
	}
	if !e.UpdateNPCRelationship("npc004", -80, "决裂") || e.CanInteractWithNPC("npc004") {
		t.Fatal("hostile npc still available")
	}
	if e.UpdateNPCRelationship("ghost", 1, "") {
		t.Fatal("unknown npc updated")
	}
}

func TestResyncRepairsDriftedCounters(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)
	choose(t, e, "B")
	advance(t, e)

	e.mu.Lock()
	e.round = 7
	e.player.SetRound(2)
	e.mu.Unlock()

	if h := e.HealthCheck(); h.Healthy || len(h.Issues) != 2 {
		t.Fatalf("drift not detected: %+v", h)
	}
	if !e.Resync() {
		t.Fatal("Resync left issues")
	}
	if h := e.HealthCheck(); !h.Healthy || h.EngineRound != 1 {
		t.Fatalf("after resync: %+v", h)
	}
}

func TestRandomEventChance(t *testing.T) {
	cases := []struct {
		round int
		want  float64
	}{
		{0, 0}, {1, 0.2}, {8, 0.4}, {9, 0},
	}
	for _, c := range cases {
		if got := RandomEventChance(c.round); got < c.want-1e-9 || got > c.want+1e-9 {
			t.Fatalf("RandomEventChance(%d) = %v, want %v", c.round, got, c.want)
		}
	}
	if mid := RandomEventChance(4); mid <= 0.2 || mid >= 0.4 {
		t.Fatalf("RandomEventChance(4) = %v", mid)
	}
}

func TestDelayedRelationshipReachesNPCState(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)

	snap := e.Snapshot()
	snap.Session.DelayedEffects = append(snap.Session.DelayedEffects, jianghu.DelayedEffect{
		ID:           "letter",
		TriggerRound: 1,
		Kind:         jianghu.DelayedRelationship,
		Description:  "掌门来信嘉许",
		Active:       true,
		Relationship: &jianghu.RelationshipPayload{NPCID: "npc001", NPCName: "掌门", Change: 15},
	})
	if !e.ContinueGame(snap) {
		t.Fatal("ContinueGame failed")
	}
	choose(t, e, "B")
	advance(t, e)

	rel := e.Relationships()["npc001"]
	if rel.Value != 25 {
		t.Fatalf("player relationship after delayed effect: %+v", rel)
	}
	for _, s := range e.NPCStates() {
		if s.NPCID == "npc001" && s.Relationship != rel.Value {
			t.Fatalf("npc state out of step: %+v vs %d", s, rel.Value)
		}
	}
	if !e.UpdateNPCRelationship("npc001", 1, "请安") {
		t.Fatal("UpdateNPCRelationship failed")
	}
	if got := e.Relationships()["npc001"].Value; got != 26 {
		t.Fatalf("delayed change lost on next update: %d", got)
	}
}

func TestHookReadingViewsDoesNotBlock(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)

	var phase Phase
	var stats jianghu.PlayerData
	e.Hooks().On(jianghu.HookRoundEnd, "reader", func(hc *jianghu.HookContext) error {
		phase = e.Phase()
		stats = e.Player()
		return nil
	})

	done := make(chan bool, 1)
	go func() { done <- e.ExecuteEventChoice("B") }()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("choice failed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("engine blocked on a view called from a hook")
	}
	if phase != "" || stats.ID != "" {
		t.Fatalf("views inside a hook should be empty: %q %q", phase, stats.ID)
	}
	if e.Phase() != PhasePlaying || e.Player().ID == "" {
		t.Fatal("views unavailable after the operation")
	}
}

func TestRestoreKeepsResolvedEvent(t *testing.T) {
	e := newTestEngine(t, nil, testConfig())
	startGame(t, e)

	snap := e.Snapshot()
	snap.Session.CurrentRound = 3
	snap.Player.Stats.Network = 2
	if !e.ContinueGame(snap) {
		t.Fatal("ContinueGame failed")
	}
	if ev, _, ok := e.CurrentEvent(); !ok || ev.ID != 1001 {
		t.Fatalf("round index 3: %v", ev)
	}
	// C lowers network below the trigger threshold
	if !e.ExecuteEventChoice("C") {
		t.Fatal("choice failed")
	}
	if e.Stage() != StageResolved {
		t.Fatalf("stage %s", e.Stage())
	}

	saved := e.Snapshot()
	if saved.EventID != 1001 {
		t.Fatalf("snapshot event id: %d", saved.EventID)
	}
	other := newTestEngine(t, nil, testConfig())
	if !other.ContinueGame(saved) {
		t.Fatal("ContinueGame of resolved round failed")
	}
	ev, src, ok := other.CurrentEvent()
	if !ok || ev.ID != 1001 || src != SourceNPC {
		t.Fatalf("restored event: %v %s", ev, src)
	}
	if other.Stage() != StageResolved {
		t.Fatalf("restored stage %s", other.Stage())
	}

	// saves without an event id fall back to the round's history entry
	saved.EventID = 0
	if !other.ContinueGame(saved) {
		t.Fatal("ContinueGame without event id failed")
	}
	if ev, _, ok := other.CurrentEvent(); !ok || ev.ID != 1001 {
		t.Fatalf("restored from history: %v", ev)
	}
	if !other.NextRound() || other.RoundProgress().Current != 4 {
		t.Fatal("NextRound after restore failed")
	}
}
