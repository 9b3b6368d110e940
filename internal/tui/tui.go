// Package tui implements the interactive single-job watch screen used by the
// slurmctl CLI. It polls the scheduler for queue state and tails the job's
// per-node output files until the job leaves the queue.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"slurmjobs/internal/job"
	"slurmjobs/internal/output"
)

const (
	tickInterval     = 250 * time.Millisecond
	statusQueryEvery = 3 * time.Second
	statusTimeout    = 10 * time.Second
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	terminalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type statusMsg struct {
	state job.State
	err   error
}

type tickMsg time.Time

// Model is the bubbletea model for watching one job.
type Model struct {
	controller *job.Controller
	job        job.Job

	// AutoExit quits the program once the job is observed terminal.
	AutoExit bool

	spin    spinner.Model
	vp      viewport.Model
	vpReady bool
	width   int
	height  int

	state      job.State
	terminal   bool
	queryErr   error
	polls      int
	lastQuery  time.Time
	outCache   string
	statusText string
}

// New creates a watch model for the given job.
func New(controller *job.Controller, j job.Job) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = activeStyle
	return Model{
		controller: controller,
		job:        j,
		spin:       sp,
	}
}

func waitForTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) queryStatusCmd() tea.Cmd {
	controller, j := m.controller, m.job
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()
		state, err := controller.Status(ctx, j)
		return statusMsg{state: state, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.queryStatusCmd(), waitForTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		bodyHeight := maxInt(6, m.height-9)
		if !m.vpReady {
			m.vp = viewport.New(maxInt(20, m.width-4), bodyHeight)
			m.vpReady = true
		} else {
			m.vp.Width = maxInt(20, m.width-4)
			m.vp.Height = bodyHeight
		}
		m.outCache = "\x00"
		m.refreshOutput()

	case statusMsg:
		m.polls++
		m.lastQuery = time.Now()
		m.queryErr = msg.err
		if msg.err == nil {
			m.state = msg.state
			if msg.state.Terminal() && !m.terminal {
				m.terminal = true
				m.statusText = "job left the queue"
				m.refreshOutput()
				if m.AutoExit {
					return m, tea.Quit
				}
			}
		}

	case tickMsg:
		if !m.terminal && time.Since(m.lastQuery) >= statusQueryEvery {
			cmds = append(cmds, m.queryStatusCmd())
		}
		if !m.terminal {
			m.refreshOutput()
		}
		cmds = append(cmds, waitForTick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			cmds = append(cmds, m.queryStatusCmd())
		}
		if m.vpReady {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// refreshOutput re-reads the per-node output files and updates the viewport.
func (m *Model) refreshOutput() {
	if !m.vpReady {
		return
	}
	content := m.controller.Output(m.job).Render()
	if content == m.outCache {
		return
	}
	atBottom := m.vp.AtBottom()
	m.vp.SetContent(content)
	if atBottom {
		m.vp.GotoBottom()
	}
	m.outCache = content
}

func (m Model) View() string {
	header := titleStyle.Render("slurmctl watch") + "  " + m.job.Name

	var stateLine string
	switch {
	case m.queryErr != nil:
		stateLine = errorStyle.Render(fmt.Sprintf("scheduler error: %v", m.queryErr))
	case m.terminal:
		stateLine = terminalStyle.Render("TERMINAL (job no longer in queue)")
	case m.polls == 0:
		stateLine = m.spin.View() + " querying scheduler..."
	default:
		stateLine = m.spin.View() + activeStyle.Render(" ACTIVE")
	}

	var rows string
	if len(m.state.Rows) > 0 {
		rows = strings.Join(m.state.Rows, "\n")
	} else if m.terminal {
		rows = hintStyle.Render("(no queue rows)")
	} else {
		rows = hintStyle.Render("(waiting for first scheduler response)")
	}

	if !m.vpReady {
		return header + "\n" + stateLine + "\n\nInitializing..."
	}

	info := fmt.Sprintf("nodes: %d  polls: %d", m.job.NodeCount, m.polls)
	actions := hintStyle.Render("[r] refresh  [up/down] scroll output  [q] quit")

	sections := []string{
		header,
		stateLine + "  " + hintStyle.Render(info),
		panelStyle.Render(rows),
		panelStyle.Render(m.vp.View()),
		actions,
	}
	if m.statusText != "" {
		sections = append(sections, hintStyle.Render(m.statusText))
	}
	return strings.Join(sections, "\n")
}

// Run starts the watch program and blocks until it exits. It returns the
// job's final output report when the job was observed terminal.
func Run(controller *job.Controller, j job.Job, autoExit bool) (output.Report, bool, error) {
	m := New(controller, j)
	m.AutoExit = autoExit

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return output.Report{}, false, err
	}

	fm, ok := final.(Model)
	if !ok {
		return output.Report{}, false, nil
	}
	if fm.terminal {
		return controller.Output(j), true, nil
	}
	return output.Report{}, false, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
