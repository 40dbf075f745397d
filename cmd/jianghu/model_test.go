package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"jianghu-lite/content"
	"jianghu-lite/engine"
	"jianghu-lite/savegame"
)

func newTestModel(t *testing.T) model {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Seed = 11
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.RandomChance = func(int) float64 { return 0 }
	catalog := content.MustLoad()
	e, err := engine.New(catalog, savegame.NewMemoryStore(), cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	m := newModel(e, catalog.Questionnaire())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model)
}

func press(t *testing.T, m model, keys ...tea.KeyType) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(tea.KeyMsg{Type: k})
		m = next.(model)
	}
	return m
}

func TestShellPlaysFirstRound(t *testing.T) {
	m := newTestModel(t)
	if !strings.Contains(m.View(), "new game") {
		t.Fatalf("start screen:\n%s", m.View())
	}

	m = press(t, m, tea.KeyEnter)
	if m.engine.Phase() != engine.PhaseQuestionnaire {
		t.Fatalf("phase %s", m.engine.Phase())
	}
	for range m.questionnaire {
		m = press(t, m, tea.KeyEnter)
	}
	if m.engine.Phase() != engine.PhasePlaying || m.err != "" {
		t.Fatalf("after questionnaire: %s %q", m.engine.Phase(), m.err)
	}
	if m.answers.Background != "scholar" || m.answers.Talent != "martial" {
		t.Fatalf("answers: %+v", m.answers)
	}

	// option B of the first event costs nothing
	m = press(t, m, tea.KeyDown, tea.KeyEnter)
	if res, ok := m.engine.LastResult(); !ok || !res.Success || res.OptionID != "B" {
		t.Fatalf("choice: %+v %q", res, m.err)
	}
	if m.engine.Stage() != engine.StageResolved {
		t.Fatalf("stage %s", m.engine.Stage())
	}

	m = press(t, m, tea.KeyEnter)
	if got := m.engine.RoundProgress().Current; got != 1 {
		t.Fatalf("round %d", got)
	}
	if !strings.Contains(m.View(), "第 2/10 回合") {
		t.Fatalf("round header missing:\n%s", m.View())
	}
}

func TestShellSaveAndRestart(t *testing.T) {
	m := newTestModel(t)
	m = press(t, m, tea.KeyEnter)
	for range m.questionnaire {
		m = press(t, m, tea.KeyEnter)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m = next.(model)
	if m.err != "" || !m.engine.HasSavedGame() {
		t.Fatalf("save: %q", m.err)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(model)
	if m.engine.Phase() != engine.PhaseQuestionnaire || m.question != 0 {
		t.Fatalf("restart: %s question %d", m.engine.Phase(), m.question)
	}
	if m.engine.HasSavedGame() {
		t.Fatal("restart should clear the save")
	}
}

func TestShellQuits(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}
