package main

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/wippyai/arcstore/scenario"
	"github.com/wippyai/arcstore/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	deinitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	leakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	paneStyle = lipgloss.NewStyle().
			PaddingRight(4)
)

type keyMap struct {
	Step  key.Binding
	Run   key.Binding
	Reset key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Run, k.Reset, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Step: key.NewBinding(
		key.WithKeys("n", " ", "enter"),
		key.WithHelp("n/space", "step"),
	),
	Run: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "run to end"),
	),
	Reset: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "restart"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type interactiveModel struct {
	err     error
	checked error
	sc      *scenario.Scenario
	sess    *scenario.Session
	logger  *zap.Logger
	out     *bytes.Buffer
	help    help.Model
}

func newInteractiveModel(sc *scenario.Scenario, logger *zap.Logger) *interactiveModel {
	m := &interactiveModel{
		sc:     sc,
		logger: logger,
		help:   help.New(),
	}
	m.reset()
	return m
}

func (m *interactiveModel) reset() {
	m.out = &bytes.Buffer{}
	m.sess = scenario.NewSession(m.sc, m.out, m.logger)
	m.err = nil
	m.checked = nil
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Step):
			m.step()

		case key.Matches(msg, keys.Run):
			for m.err == nil && !m.sess.Done() {
				m.step()
			}

		case key.Matches(msg, keys.Reset):
			m.reset()
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	}
	return m, nil
}

func (m *interactiveModel) step() {
	if m.err != nil || m.sess.Done() {
		return
	}
	if _, err := m.sess.Step(); err != nil {
		m.err = err
		return
	}
	if m.sess.Done() {
		m.checked = m.sess.Check()
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ARC Playground"))
	b.WriteString(" ")
	b.WriteString(m.sc.Name)
	b.WriteString("\n")
	if m.sc.Description != "" {
		b.WriteString(doneStyle.Render(strings.TrimSpace(m.sc.Description)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	left := paneStyle.Render(m.stepsView())
	right := m.recordsView()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n\n")

	if out := strings.TrimRight(m.out.String(), "\n"); out != "" {
		b.WriteString("Output:\n")
		for _, line := range strings.Split(out, "\n") {
			if strings.HasSuffix(line, " deinit") {
				line = deinitStyle.Render(line)
			}
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if leaked := m.sess.Leaked(); len(leaked) > 0 {
		b.WriteString(leakStyle.Render("Unreachable: " + strings.Join(leaked, ", ")))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case m.sess.Done() && m.checked != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Expectations failed: %v", m.checked)))
		b.WriteString("\n")
	case m.sess.Done():
		b.WriteString(deinitStyle.Render("Expectations met."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m *interactiveModel) stepsView() string {
	var b strings.Builder
	b.WriteString("Steps:\n")
	pos := m.sess.Position()
	for i, st := range m.sc.Steps {
		line := fmt.Sprintf("%2d  %s", i, st)
		switch {
		case i < pos:
			b.WriteString(doneStyle.Render("  " + line))
		case i == pos:
			b.WriteString(selectedStyle.Render("> " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *interactiveModel) recordsView() string {
	var rows [][]string
	m.sess.Store().Each(func(info store.Info) bool {
		state := "live"
		if !info.Live {
			state = "finalized"
		}
		slots := make([]string, 0, len(info.Slots))
		for _, ref := range info.Slots {
			kind := "strong"
			if ref.Weak {
				kind = "weak"
			}
			slots = append(slots, ref.Name+":"+kind)
		}
		rows = append(rows, []string{
			info.ID.String(),
			info.Label,
			strconv.Itoa(info.Strong),
			strconv.Itoa(info.Weak),
			state,
			strings.Join(slots, " "),
		})
		return true
	})

	if len(rows) == 0 {
		return "Store is empty\n"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Object", "Strong", "Weak", "State", "Slots").
		Rows(rows...)
	return "Store:\n" + t.Render()
}

func runInteractive(sc *scenario.Scenario, logger *zap.Logger) error {
	p := tea.NewProgram(newInteractiveModel(sc, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
