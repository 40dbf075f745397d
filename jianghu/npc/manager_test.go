package npc

import (
	"testing"

	"jianghu-lite/jianghu"
)

func intPtr(v int) *int { return &v }

func testDefinitions() []Definition {
	return []Definition{
		{
			ID: "npc001", Name: "掌门", InitialRelationship: 10, Available: true,
			Agenda: Agenda{Priority: 5, Goals: []Goal{{ID: "train_disciples", Target: 20, Kind: GoalRelationship}}},
		},
		{
			ID: "npc004", Name: "柳师兄", InitialRelationship: 5, Available: true,
			Traits: []string{TraitWarmHearted, "有野心", TraitCalculating},
			Agenda: Agenda{
				ID:       "liu_shixiong_agenda",
				Priority: 1,
				Goals: []Goal{
					{ID: "cultivate_protagonist", Target: 10, Kind: GoalRelationship},
					{ID: "strengthen_faction", Target: 15, Kind: GoalStats},
				},
				Triggers: []Trigger{
					{Kind: TriggerPlayerStats, AnyStats: map[jianghu.Stat]int{jianghu.StatFame: 6, jianghu.StatNetwork: 5}},
					{Kind: TriggerRound, MinRound: 9},
				},
				Actions: []Action{
					{ID: "offer_help", Kind: ActionHelp, Content: "我来指点你几招。",
						Requirements: Requirements{MinRelationship: intPtr(3)},
						Effects:      jianghu.Delta{jianghu.StatMartial: 1, jianghu.StatNetwork: 1}},
					{ID: "request_favor", Kind: ActionRequest, Content: "有个小忙需要你帮一下。",
						Requirements: Requirements{MinRelationship: intPtr(5)},
						Effects:      jianghu.Delta{jianghu.StatVirtue: 1}},
					{ID: "betrayal", Kind: ActionConflict, Content: "原来他一直都在利用你。",
						Requirements: Requirements{MinRelationship: intPtr(-2), Flags: []string{"owed_help_npc004"}},
						Effects:      jianghu.Delta{jianghu.StatMartial: -3, jianghu.StatFame: -3, jianghu.StatNetwork: -2}},
				},
			},
		},
	}
}

func newTestManager(t *testing.T) (*Manager, *jianghu.Player) {
	t.Helper()
	p := jianghu.NewPlayer()
	m := NewManager(NewRegistry(testDefinitions()...), p, DefaultConfig(), nil)
	return m, p
}

func TestNewManagerSeedsPlayerRelationships(t *testing.T) {
	m, p := newTestManager(t)
	rel, ok := p.Relationship("npc001")
	if !ok || rel.Value != 10 || rel.TargetName != "掌门" {
		t.Fatalf("player relationship: %+v", rel)
	}
	s, _ := m.State("npc004")
	if s.Mood != MoodNeutral || !s.Available || s.LastInteractionRound != NoInteraction {
		t.Fatalf("initial state: %+v", s)
	}
	if len(s.ActiveGoals) != 2 {
		t.Fatalf("active goals: %v", s.ActiveGoals)
	}
}

func TestNewManagerKeepsRestoredPlayerValues(t *testing.T) {
	p := jianghu.NewPlayer()
	p.SetRelationship("npc004", "柳师兄", -40, jianghu.RelationEnemy)
	m := NewManager(NewRegistry(testDefinitions()...), p, Config{}, nil)
	s, _ := m.State("npc004")
	if s.Relationship != -40 || s.Mood != MoodHostile || s.Available {
		t.Fatalf("state: %+v", s)
	}
}

func TestMoodBands(t *testing.T) {
	cases := []struct {
		v    int
		want Mood
	}{
		{100, MoodHelpful}, {60, MoodHelpful}, {59, MoodFriendly}, {30, MoodFriendly},
		{29, MoodNeutral}, {-10, MoodNeutral}, {-11, MoodBusy}, {-30, MoodBusy}, {-31, MoodHostile},
	}
	for _, c := range cases {
		if got := MoodFor(c.v); got != c.want {
			t.Fatalf("MoodFor(%d) = %s, want %s", c.v, got, c.want)
		}
	}
	if PlayerRelationshipType(-20) != jianghu.RelationRival || PlayerRelationshipType(61) != jianghu.RelationMentor {
		t.Fatal("player relationship type mapping")
	}
}

func TestUpdateRelationshipClampsMirrorsAndRecords(t *testing.T) {
	m, p := newTestManager(t)
	v0 := p.RelationshipVersion()

	if !m.UpdateRelationship("npc004", 200, "救命之恩") {
		t.Fatal("update failed")
	}
	s, _ := m.State("npc004")
	if s.Relationship != 100 || s.Mood != MoodHelpful {
		t.Fatalf("state: %+v", s)
	}
	if rel, _ := p.Relationship("npc004"); rel.Value != 100 {
		t.Fatalf("player not mirrored: %+v", rel)
	}
	if p.RelationshipVersion() <= v0 {
		t.Fatal("relationship version did not move")
	}
	in := m.Interactions()
	if len(in) != 1 || in[0].RelationshipChange != 95 || in[0].Description != "救命之恩" {
		t.Fatalf("interactions: %+v", in)
	}
	if m.UpdateRelationship("ghost", 1, "") {
		t.Fatal("unknown npc updated")
	}
}

func TestCanInteractCapAndHostility(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < 3; i++ {
		if !m.CanInteract("npc001") {
			t.Fatalf("interaction %d refused", i)
		}
		m.UpdateRelationship("npc001", 1, "")
	}
	if m.CanInteract("npc001") {
		t.Fatal("per-round cap ignored")
	}
	m.ProcessRoundUpdate(1)
	if !m.CanInteract("npc001") {
		t.Fatal("cap not reset on round update")
	}

	m.UpdateRelationship("npc004", -60, "")
	if m.CanInteract("npc004") {
		t.Fatal("hostile npc can interact")
	}
}

func TestRelationshipDecaysAfterNeglect(t *testing.T) {
	m, p := newTestManager(t)
	m.SetRound(0)
	m.UpdateRelationship("npc004", 60, "")
	s, _ := m.State("npc004")
	if s.Relationship != 65 || s.Mood != MoodHelpful {
		t.Fatalf("before decay: %+v", s)
	}

	for r := 1; r <= 4; r++ {
		m.ProcessRoundUpdate(r)
	}
	if s, _ = m.State("npc004"); s.Relationship != 65 {
		t.Fatalf("decayed too early: %d", s.Relationship)
	}

	m.ProcessRoundUpdate(5)
	m.ProcessRoundUpdate(6)
	s, _ = m.State("npc004")
	if s.Relationship >= 65 {
		t.Fatalf("no decay after 6 idle rounds: %d", s.Relationship)
	}
	if s.Mood == MoodHelpful {
		t.Fatalf("mood not refreshed: %s at %d", s.Mood, s.Relationship)
	}
	if rel, _ := p.Relationship("npc004"); rel.Value != s.Relationship {
		t.Fatalf("player %d vs npc %d", rel.Value, s.Relationship)
	}

	// never-touched NPCs do not decay
	if s1, _ := m.State("npc001"); s1.Relationship != 10 {
		t.Fatalf("untouched npc decayed: %d", s1.Relationship)
	}
}

func TestDecayNeverCrossesZero(t *testing.T) {
	m, _ := newTestManager(t)
	m.UpdateRelationship("npc001", -9, "")
	m.ProcessRoundUpdate(50)
	if s, _ := m.State("npc001"); s.Relationship != 0 {
		t.Fatalf("got %d", s.Relationship)
	}
}

func TestProcessRoundUpdateFiresAgendaTriggers(t *testing.T) {
	m, p := newTestManager(t)
	var seen []TriggerMatch
	m.SetTriggerHandler(func(tm TriggerMatch) { seen = append(seen, tm) })

	if got := m.ProcessRoundUpdate(1); len(got) != 0 {
		t.Fatalf("unexpected triggers: %+v", got)
	}
	p.ApplyStatsChange(jianghu.Delta{jianghu.StatNetwork: 5})
	m.ProcessRoundUpdate(2)
	if len(seen) != 1 || seen[0].NPCID != "npc004" || seen[0].Trigger.Kind != TriggerPlayerStats {
		t.Fatalf("matches: %+v", seen)
	}
	m.ProcessRoundUpdate(9)
	if len(seen) != 3 {
		t.Fatalf("round trigger missing: %+v", seen)
	}

	st, ok := m.Agenda().State("npc004", "liu_shixiong_agenda")
	if !ok || st.Executions != 3 || st.LastUpdateRound != 9 {
		t.Fatalf("agenda state: %+v", st)
	}
}

func TestAgendaGoalsComplete(t *testing.T) {
	m, p := newTestManager(t)
	p.ApplyStatsChange(jianghu.Delta{jianghu.StatFame: 8, jianghu.StatNetwork: 7})
	m.UpdateRelationship("npc004", 10, "")
	m.ProcessRoundUpdate(1)

	s, _ := m.State("npc004")
	if len(s.ActiveGoals) != 0 {
		t.Fatalf("goals still active: %v", s.ActiveGoals)
	}
	sum := m.Agenda().Summary()
	if sum.Total != 2 || sum.CompletedGoals != 2 {
		t.Fatalf("summary: %+v", sum)
	}
	if !m.Agenda().SetActive("npc004", "liu_shixiong_agenda", false) {
		t.Fatal("SetActive on known agenda failed")
	}
	if got := m.ProcessRoundUpdate(9); len(got) != 0 {
		t.Fatal("inactive agenda triggered")
	}
}

func TestSyncFromPlayer(t *testing.T) {
	m, p := newTestManager(t)
	p.SetRelationship("npc004", "柳师兄", 8, jianghu.RelationNeutral)
	if !m.SyncFromPlayer("npc004", "柳师兄的邀约") {
		t.Fatal("sync reported no change")
	}
	s, _ := m.State("npc004")
	if s.Relationship != 8 || s.InteractionCount != 1 {
		t.Fatalf("state: %+v", s)
	}
	if m.SyncFromPlayer("npc004", "again") {
		t.Fatal("sync without change reported a change")
	}
}

func TestStatesAreCopies(t *testing.T) {
	m, _ := newTestManager(t)
	states := m.States()
	states[0].ActiveGoals[0] = "tampered"
	states[0].Relationship = 99
	again, _ := m.State(states[0].NPCID)
	if again.Relationship == 99 || again.ActiveGoals[0] == "tampered" {
		t.Fatal("States leaked live state")
	}
}
