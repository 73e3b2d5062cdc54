// Package tui is the terminal front-end: a scrolling transcript of engine
// events above a single input line.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/stagehand/internal/render"
)

// DefaultMaxLines bounds the transcript when no limit is configured.
const DefaultMaxLines = 5000

// linesMsg appends rendered lines to the transcript.
type linesMsg []string

// stageMsg updates the header's current stage.
type stageMsg string

// channelMsg updates the header's channel state.
type channelMsg string

// Model is the bubbletea model.
type Model struct {
	viewport viewport.Model
	input    textinput.Model

	lines    []string
	maxLines int

	stage   string
	channel string

	width  int
	height int
	ready  bool

	// submit hands a line of user input to the driver.
	submit func(string)
}

// NewModel creates a Model. submit is called for every entered line.
func NewModel(submit func(string), maxLines int) Model {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	ti := textinput.New()
	ti.Placeholder = "describe what to build, !command, /cancel, continue"
	ti.Prompt = "› "
	ti.CharLimit = 4096
	ti.Focus()

	return Model{
		viewport: viewport.New(render.DefaultWidth, 20),
		input:    ti,
		maxLines: maxLines,
		submit:   submit,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			if text == "/quit" || text == "/exit" {
				return m, tea.Quit
			}
			m.appendLines([]string{render.Muted.Render("> " + text)})
			if m.submit != nil {
				m.submit(text)
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case linesMsg:
		m.appendLines(msg)
		return m, nil

	case stageMsg:
		m.stage = string(msg)
		return m, nil

	case channelMsg:
		m.channel = string(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// appendLines adds lines and drops the oldest beyond maxLines.
func (m *Model) appendLines(lines []string) {
	m.lines = append(m.lines, lines...)
	if over := len(m.lines) - m.maxLines; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}
	m.refresh()
}

func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if atBottom || !m.ready {
		m.viewport.GotoBottom()
	}
}

// Lines returns the transcript.
func (m Model) Lines() []string { return m.lines }

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "starting…"
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.header(), m.viewport.View(), m.input.View())
}

func (m Model) header() string {
	parts := []string{render.Title.Render("stagehand")}
	if m.stage != "" {
		parts = append(parts, render.StageBadge.Render(m.stage))
	}
	if m.channel != "" {
		parts = append(parts, render.Muted.Render("channel: "+m.channel))
	}
	return lipgloss.NewStyle().MaxWidth(max(m.width, 1)).Render(strings.Join(parts, "  "))
}
