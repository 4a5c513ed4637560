// Package tui renders a live view of a set of routers with bubbletea.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-i2p/go-onionpath/lib/path"
	"github.com/go-i2p/go-onionpath/lib/router"
)

var (
	textColor    = lipgloss.Color("#fff")
	primaryColor = lipgloss.Color("#7d56f4")
	titleStyle   = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor).
			Background(primaryColor).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	rowStyle    = lipgloss.NewStyle().Padding(0, 1)
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// StatsSource returns the routers to display.
type StatsSource func() []router.Stats

// Action runs when its key is pressed and returns a line for the status bar.
type Action func() (string, error)

type tickMsg time.Time

type actionMsg struct {
	status string
	err    error
}

// Model is the dashboard's bubbletea model.
type Model struct {
	source   StatsSource
	build    Action
	interval time.Duration

	rows     []router.Stats
	status   string
	err      error
	width    int
	lastTick time.Time
}

// New creates a dashboard that refreshes from source every interval. build,
// if set, runs when "b" is pressed.
func New(source StatsSource, build Action, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{source: source, build: build, interval: interval}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return tickMsg(time.Now()) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch x := msg.(type) {
	case tea.KeyMsg:
		switch x.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "b":
			if m.build == nil {
				return m, nil
			}
			build := m.build
			return m, func() tea.Msg {
				s, err := build()
				return actionMsg{status: s, err: err}
			}
		}
	case tea.WindowSizeMsg:
		m.width = x.Width
	case tickMsg:
		m.lastTick = time.Time(x)
		m.refresh()
		return m, m.tickCmd()
	case actionMsg:
		m.status, m.err = x.status, x.err
		m.refresh()
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.source == nil {
		return
	}
	rows := m.source()
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID.Less(rows[j].ID) })
	m.rows = rows
}

const rowFormat = "%-18s %8s %8s %8s %8s %10s %10s %10s"

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("onion paths"))
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf(rowFormat,
		"router", "built", "pending", "failed", "transit", "sent", "received", "rejected")))
	b.WriteString("\n")
	for _, st := range m.rows {
		failed := st.Expired.TimedOut + st.Paths[path.TimedOut]
		b.WriteString(rowStyle.Render(fmt.Sprintf(rowFormat,
			st.ID.Short(),
			fmt.Sprint(st.Paths[path.Established]),
			fmt.Sprint(st.Paths[path.Building]),
			fmt.Sprint(failed),
			fmt.Sprint(st.TransitHops),
			fmt.Sprint(st.Sent),
			fmt.Sprint(st.Received),
			fmt.Sprint(st.BuildRejections),
		)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "q quit"
	if m.build != nil {
		help = "b build path · " + help
	}
	if !m.lastTick.IsZero() {
		help += " · " + m.lastTick.Format(time.TimeOnly)
	}
	b.WriteString(barStyle.Render(help))
	if m.err != nil {
		b.WriteString("\n" + errStyle.Render(m.err.Error()))
	} else if m.status != "" {
		b.WriteString("\n" + m.status)
	}
	return b.String()
}

// Run shows the dashboard until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
