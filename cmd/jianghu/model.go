package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jianghu-lite/content"
	"jianghu-lite/engine"
	"jianghu-lite/jianghu"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true)

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Strikethrough(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87AFD7")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	sideStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Save    key.Binding
	Restart key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Save, k.Restart, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Select}, {k.Save, k.Restart, k.Quit}}
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "select")),
	Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

type menuItem struct {
	id      string
	label   string
	enabled bool
}

type model struct {
	engine        *engine.Engine
	questionnaire content.Questionnaire

	question int
	answers  jianghu.Answers
	cursor   int

	status string
	err    string

	help     help.Model
	viewport viewport.Model
	width    int
	height   int
}

func newModel(e *engine.Engine, q content.Questionnaire) model {
	return model{
		engine:        e,
		questionnaire: q,
		help:          help.New(),
		viewport:      viewport.New(80, 20),
	}
}

func (m model) Init() tea.Cmd { return nil }

// items lists the selectable entries for the engine's current screen.
func (m model) items() []menuItem {
	switch m.engine.Phase() {
	case engine.PhaseStart:
		items := []menuItem{{id: "new", label: "踏入江湖 (new game)", enabled: true}}
		if m.engine.HasSavedGame() {
			items = append(items, menuItem{id: "continue", label: "继续前缘 (continue)", enabled: true})
		}
		return items

	case engine.PhaseQuestionnaire:
		if m.question >= len(m.questionnaire) {
			return nil
		}
		q := m.questionnaire[m.question]
		items := make([]menuItem, 0, len(q.Options))
		for _, o := range q.Options {
			items = append(items, menuItem{id: o.Value, label: o.Label, enabled: true})
		}
		return items

	case engine.PhasePlaying:
		switch m.engine.Stage() {
		case engine.StageAwaitingChoice:
			ev, _, ok := m.engine.CurrentEvent()
			if !ok {
				return nil
			}
			avail := m.engine.OptionAvailability()
			items := make([]menuItem, 0, len(ev.Options))
			for _, o := range ev.Options {
				label := o.Label
				if o.Description != "" {
					label = o.ID + ". " + o.Description
				}
				items = append(items, menuItem{id: o.ID, label: label, enabled: avail[o.ID]})
			}
			return items
		case engine.StageRandomOffer:
			return []menuItem{{id: "ack", label: "知道了 (acknowledge)", enabled: true}}
		case engine.StageResolved:
			return []menuItem{{id: "next", label: "下一回合 (next round)", enabled: true}}
		}

	case engine.PhaseResult:
		return []menuItem{{id: "restart", label: "重新开始 (play again)", enabled: true}}
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width * 3 / 4
		m.viewport.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.items())-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Save):
			m.err = ""
			if m.engine.SaveGame() {
				m.status = "已存档 (saved)"
			} else {
				m.err = "save failed"
			}
		case key.Matches(msg, keys.Restart):
			m = m.restart()
		case key.Matches(msg, keys.Select):
			m = m.selectItem()
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) restart() model {
	m.err = ""
	m.status = ""
	m.question = 0
	m.answers = jianghu.Answers{}
	m.cursor = 0
	if !m.engine.RestartGame() {
		m.err = "restart failed"
	}
	return m
}

func (m model) selectItem() model {
	items := m.items()
	if m.cursor >= len(items) {
		return m
	}
	it := items[m.cursor]
	if !it.enabled {
		m.err = "内力不足 (not enough energy)"
		return m
	}
	m.err = ""
	m.status = ""

	switch m.engine.Phase() {
	case engine.PhaseStart:
		ok := false
		if it.id == "continue" {
			ok = m.engine.LoadGame()
		} else {
			ok = m.engine.StartNewGame()
		}
		if !ok {
			m.err = "could not " + it.id
		}
		m.question = 0

	case engine.PhaseQuestionnaire:
		m.answers.Set(m.questionnaire[m.question].ID, it.id)
		m.question++
		if m.question >= len(m.questionnaire) && !m.engine.CompleteQuestionnaire(m.answers) {
			m.err = "questionnaire rejected"
			m.question = 0
		}

	case engine.PhasePlaying:
		var ok bool
		switch it.id {
		case "ack":
			ok = m.engine.AcknowledgeRandomEvents()
		case "next":
			ok = m.engine.NextRound()
		default:
			ok = m.engine.ExecuteEventChoice(it.id)
		}
		if !ok {
			if res, has := m.engine.LastResult(); has && res.Err != nil {
				m.err = res.Err.Error()
			} else {
				m.err = it.id + " rejected"
			}
		}

	case engine.PhaseResult:
		return m.restart()
	}
	m.cursor = 0
	return m
}

func (m model) View() string {
	body := m.renderMain()
	if m.engine.Phase() == engine.PhasePlaying || m.engine.Phase() == engine.PhaseResult {
		m.viewport.SetContent(body)
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.renderSide())
	}
	footer := m.help.View(keys)
	if m.err != "" {
		footer = errorStyle.Render(m.err) + "\n" + footer
	} else if m.status != "" {
		footer = noticeStyle.Render(m.status) + "\n" + footer
	}
	return "\n" + body + "\n\n" + footer + "\n"
}

func (m model) renderMenu() string {
	var b strings.Builder
	for i, it := range m.items() {
		line := it.label
		switch {
		case !it.enabled:
			line = disabledStyle.Render(line)
		case i == m.cursor:
			line = cursorStyle.Render("> " + line)
		default:
			line = textStyle.Render("  " + line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m model) renderMain() string {
	var b strings.Builder
	switch m.engine.Phase() {
	case engine.PhaseStart:
		b.WriteString(titleStyle.Render("江湖 · 十回合") + "\n\n")

	case engine.PhaseQuestionnaire:
		if m.question < len(m.questionnaire) {
			q := m.questionnaire[m.question]
			fmt.Fprintf(&b, "%s\n\n%s\n\n",
				titleStyle.Render(fmt.Sprintf("出身 %d/%d", m.question+1, len(m.questionnaire))),
				textStyle.Render(q.Prompt))
		}

	case engine.PhasePlaying:
		p := m.engine.RoundProgress()
		fmt.Fprintf(&b, "%s\n\n", titleStyle.Render(fmt.Sprintf("第 %d/%d 回合", p.Current+1, p.Max)))
		for _, n := range m.engine.Notices() {
			b.WriteString(noticeStyle.Render(n) + "\n")
		}
		if ev, _, ok := m.engine.CurrentEvent(); ok {
			fmt.Fprintf(&b, "%s\n%s\n\n", titleStyle.Render(ev.Title), textStyle.Render(ev.Description))
		}
		if res, ok := m.engine.LastResult(); ok && res.Success {
			b.WriteString(textStyle.Render(res.Narration) + "\n")
			if len(res.Effects) > 0 {
				b.WriteString(noticeStyle.Render(res.Effects.String()) + "\n")
			}
			for _, a := range res.Achievements {
				b.WriteString(noticeStyle.Render("成就解锁: "+a.Name) + "\n")
			}
			b.WriteString("\n")
		}
		if m.engine.Stage() == engine.StageRandomOffer {
			for _, re := range m.engine.CurrentRandomEvents() {
				fmt.Fprintf(&b, "%s\n%s\n%s\n\n", titleStyle.Render(re.Title), textStyle.Render(re.Description), noticeStyle.Render(re.Effects.String()))
			}
		}

	case engine.PhaseResult:
		gs := m.engine.GameStats()
		fmt.Fprintf(&b, "%s\n\n", titleStyle.Render("江湖路终"))
		fmt.Fprintf(&b, "总评 %d  (武 %d / 交 %d / 生 %d)\n", gs.Score.Total, gs.Score.Combat, gs.Score.Social, gs.Score.Survival)
		fmt.Fprintf(&b, "事件 %d  成就 %d/%d  奇遇 %d\n\n", gs.EventsCompleted, gs.Achievements, gs.TotalAchievements, gs.RandomEvents)
		for _, a := range m.engine.Advice() {
			b.WriteString(noticeStyle.Render("· "+a) + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(m.renderMenu())
	return b.String()
}

func (m model) renderSide() string {
	var b strings.Builder
	stats := m.engine.Player().Stats
	b.WriteString(titleStyle.Render("属性") + "\n")
	for _, s := range jianghu.AllStats {
		fmt.Fprintf(&b, "%s %d\n", s.Label(), stats.Get(s))
	}
	b.WriteString("\n" + titleStyle.Render("人物") + "\n")
	for _, st := range m.engine.NPCStates() {
		fmt.Fprintf(&b, "%s %d %s\n", st.NPCID, st.Relationship, st.Mood)
	}
	unlocked := 0
	for _, a := range m.engine.Achievements() {
		if a.Unlocked {
			unlocked++
		}
	}
	fmt.Fprintf(&b, "\n%s %d\n", titleStyle.Render("成就"), unlocked)
	width := m.width - m.viewport.Width - 4
	if width < 20 {
		width = 20
	}
	return sideStyle.Width(width).Render(b.String())
}
