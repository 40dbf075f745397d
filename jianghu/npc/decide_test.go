package npc

import (
	"strings"
	"testing"

	"jianghu-lite/jianghu"
)

func TestMakeDecisionPrefersTraitBiasedAction(t *testing.T) {
	m, _ := newTestManager(t)

	// relationship 5: help and request both qualify, both get a trait bonus;
	// help is listed first.
	dec, ok := m.MakeDecision("npc004")
	if !ok || dec.ActionID != "offer_help" || dec.Priority != 2 {
		t.Fatalf("decision: %+v ok=%v", dec, ok)
	}
	if len(dec.FollowUps) != 1 || dec.FollowUps[0] != "express_gratitude" {
		t.Fatalf("follow-ups: %v", dec.FollowUps)
	}

	m.UpdateRelationship("npc004", 50, "")
	dec, _ = m.MakeDecision("npc004")
	if dec.ActionID != "offer_help" || dec.Priority != 4 {
		t.Fatalf("high-trust decision: %+v", dec)
	}
	if !strings.HasPrefix(dec.Narrative, "柳师兄友善地") {
		t.Fatalf("narrative: %q", dec.Narrative)
	}
}

func TestMakeDecisionNothingSatisfiable(t *testing.T) {
	m, _ := newTestManager(t)
	if _, ok := m.MakeDecision("npc001"); ok {
		t.Fatal("npc without actions decided")
	}
	m.UpdateRelationship("npc004", -40, "")
	if _, ok := m.MakeDecision("npc004"); ok {
		t.Fatal("hostile npc decided")
	}
}

func TestExecuteDecisionByKind(t *testing.T) {
	m, p := newTestManager(t)
	m.SetRound(2)

	if !m.ExecuteDecision(Decision{NPCID: "npc004", ActionID: "offer_help", Kind: ActionHelp,
		Effects: jianghu.Delta{jianghu.StatMartial: 1, jianghu.StatNetwork: 1}}) {
		t.Fatal("help failed")
	}
	if st := p.Stats(); st.Martial != 1 || st.Network != 1 {
		t.Fatalf("help effects: %+v", st)
	}

	m.ExecuteDecision(Decision{NPCID: "npc004", ActionID: "request_favor", Kind: ActionRequest,
		Effects: jianghu.Delta{jianghu.StatVirtue: 1}})
	debts := p.ActiveDebts()
	if len(debts) != 1 || debts[0].Creditor != "npc004" || debts[0].DueRound != 2+RequestDueRounds {
		t.Fatalf("debts: %+v", debts)
	}

	m.ExecuteDecision(Decision{NPCID: "npc004", ActionID: "betrayal", Kind: ActionConflict,
		Effects: jianghu.Delta{jianghu.StatFame: -3, jianghu.StatNetwork: -2}})
	grudges := p.ActiveGrudges()
	if len(grudges) != 1 || grudges[0].Severity != 5 || grudges[0].Type != "betrayal" {
		t.Fatalf("grudges: %+v", grudges)
	}

	s, _ := m.State("npc004")
	if s.InteractionCount != 3 || s.LastInteractionRound != 2 {
		t.Fatalf("state: %+v", s)
	}
	if m.ExecuteDecision(Decision{NPCID: "ghost"}) {
		t.Fatal("unknown npc executed")
	}
}

func TestBetrayalNeedsFlag(t *testing.T) {
	def := testDefinitions()[1]
	v := View{Relationship: -1}
	if _, ok := (AgendaDecider{}).Decide(&def, v); ok {
		t.Fatal("betrayal chosen without flag")
	}
	v.Flags = map[string]string{"owed_help_npc004": "true"}
	dec, ok := (AgendaDecider{}).Decide(&def, v)
	if !ok || dec.ActionID != "betrayal" {
		t.Fatalf("decision: %+v", dec)
	}
}

func TestRegistryLoadYAML(t *testing.T) {
	r := NewRegistry()
	err := r.LoadFromYAML([]byte(`
- id: npc003
  name: 药王
  initialRelationship: 6
  available: true
  agenda:
    priority: 2
    goals:
      - id: heal_disciples
        target: 12
        kind: relationship
- name: nameless
`))
	if err != nil {
		t.Fatal(err)
	}
	if r.Count() != 1 {
		t.Fatalf("count: %d", r.Count())
	}
	d := r.Get("npc003")
	if d == nil || d.Agenda.AgendaID() != "default" || d.Agenda.Goals[0].Target != 12 {
		t.Fatalf("definition: %+v", d)
	}
	if r.ByName("药王") != d || len(r.Available()) != 1 {
		t.Fatal("lookup mismatch")
	}
	if err := r.LoadFromJSON([]byte("{")); err == nil {
		t.Fatal("expected JSON parse error")
	}
}
