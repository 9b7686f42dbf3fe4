package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lupon1/Django-Project-Assistant/internal/events"
	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
	"github.com/lupon1/Django-Project-Assistant/internal/server"
)

// consoleLines bounds the scrollback kept by the console.
const consoleLines = 2000

// ServerHandle is the dev server as seen by the console.
type ServerHandle interface {
	Running() bool
	Start() error
	Stop() error
	Stats() (server.Stats, error)
}

// Outcome is delivered once the pipeline worker finishes. Server is nil
// when no server is managed for this run.
type Outcome struct {
	Result scaffold.Result
	Server ServerHandle
	URL    string
}

// ConsoleModel renders pipeline progress and the dev server's output.
type ConsoleModel struct {
	title   string
	bus     *events.Bus
	outcome <-chan Outcome

	logs     *LogBuffer
	viewport viewport.Model
	spinner  spinner.Model
	keys     keyMap
	styles   *Styles

	status    string
	result    *scaffold.Result
	srv       ServerHandle
	url       string
	busClosed bool

	resources   ResourceStats
	serverStats server.Stats
	serverUp    bool

	width    int
	height   int
	ready    bool
	quitting bool

	openBrowser func(string) error
}

type keyMap struct {
	Quit        key.Binding
	Server      key.Binding
	OpenBrowser key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Server: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start/stop server"),
		),
		OpenBrowser: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
	}
}

// Styles holds the console's lipgloss styles.
type Styles struct {
	Header   lipgloss.Style
	Status   lipgloss.Style
	Log      lipgloss.Style
	Server   lipgloss.Style
	Footer   lipgloss.Style
	HelpKey  lipgloss.Style
	Running  lipgloss.Style
	Stopped  lipgloss.Style
	Critical lipgloss.Style
}

// DefaultStyles returns the console color scheme.
func DefaultStyles() *Styles {
	return &Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1),
		Status:   lipgloss.NewStyle().Foreground(infoColor),
		Log:      lipgloss.NewStyle().Foreground(subtleColor),
		Server:   lipgloss.NewStyle(),
		Footer:   lipgloss.NewStyle().Foreground(subtleColor).Padding(0, 1),
		HelpKey:  lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Running:  lipgloss.NewStyle().Bold(true).Foreground(successColor),
		Stopped:  lipgloss.NewStyle().Foreground(subtleColor),
		Critical: lipgloss.NewStyle().Bold(true).Foreground(errorColor),
	}
}

type tickMsg time.Time
type resourceUpdateMsg ResourceStats
type serverStatsMsg struct {
	stats server.Stats
	err   error
}
type eventMsg events.Event
type busClosedMsg struct{}
type outcomeMsg Outcome
type actionErrMsg struct{ err error }

// NewConsole creates the console for one run. title is usually the
// project name.
func NewConsole(title string, bus *events.Bus, outcome <-chan Outcome) *ConsoleModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &ConsoleModel{
		title:       title,
		bus:         bus,
		outcome:     outcome,
		logs:        NewLogBuffer(consoleLines),
		viewport:    vp,
		spinner:     sp,
		keys:        defaultKeyMap(),
		styles:      DefaultStyles(),
		status:      "Starting...",
		openBrowser: OpenBrowser,
	}
}

// Result returns the pipeline result once it has arrived.
func (m *ConsoleModel) Result() (scaffold.Result, bool) {
	if m.result == nil {
		return scaffold.Result{}, false
	}
	return *m.result, true
}

// Init implements tea.Model
func (m *ConsoleModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(),
		m.fetchResourceStats(),
		m.listenForEvents(),
		m.waitForOutcome(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *ConsoleModel) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.bus.C()
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg(e)
	}
}

func (m *ConsoleModel) waitForOutcome() tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg(<-m.outcome)
	}
}

func (m *ConsoleModel) fetchResourceStats() tea.Cmd {
	return func() tea.Msg {
		return resourceUpdateMsg(GetResourceStats())
	}
}

func (m *ConsoleModel) fetchServerStats() tea.Cmd {
	srv := m.srv
	if srv == nil || !srv.Running() {
		return nil
	}
	return func() tea.Msg {
		stats, err := srv.Stats()
		return serverStatsMsg{stats: stats, err: err}
	}
}

// Update implements tea.Model
func (m *ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			if m.srv != nil && m.srv.Running() {
				m.srv.Stop()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Server):
			if cmd := m.toggleServer(); cmd != nil {
				cmds = append(cmds, cmd)
			}

		case key.Matches(msg, m.keys.OpenBrowser):
			if m.url != "" && m.serverUp {
				url, open := m.url, m.openBrowser
				cmds = append(cmds, func() tea.Msg {
					if err := open(url); err != nil {
						return actionErrMsg{err}
					}
					return nil
				})
			}

		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 3)
		m.ready = true
		m.refreshViewport()

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, tickCmd(), m.fetchResourceStats())
		if cmd := m.fetchServerStats(); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case resourceUpdateMsg:
		m.resources = ResourceStats(msg)

	case serverStatsMsg:
		if msg.err == nil {
			m.serverStats = msg.stats
		}

	case eventMsg:
		m.handleEvent(events.Event(msg))
		cmds = append(cmds, m.listenForEvents())

	case busClosedMsg:
		m.busClosed = true

	case outcomeMsg:
		o := Outcome(msg)
		m.result = &o.Result
		m.srv = o.Server
		m.url = o.URL
		m.serverUp = o.Server != nil && o.Server.Running()
		if cmd := m.fetchServerStats(); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case actionErrMsg:
		m.appendLine(formatStatus("Warning: " + msg.err.Error()))
	}

	return m, tea.Batch(cmds...)
}

func (m *ConsoleModel) handleEvent(e events.Event) {
	switch e.Kind {
	case events.Status:
		m.status = e.Text
		m.appendLine(formatStatus(e.Text))
	case events.Log:
		for _, line := range strings.Split(strings.TrimRight(e.Text, "\n"), "\n") {
			m.appendLine(m.styles.Log.Render("  " + line))
		}
	case events.ServerLine:
		m.serverUp = true
		m.appendLine(m.styles.Server.Render(e.Text))
	case events.ServerStopped:
		m.serverUp = false
		m.serverStats = server.Stats{}
		msg := "Server stopped"
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		m.appendLine(m.styles.Stopped.Render(msg))
	}
}

func (m *ConsoleModel) toggleServer() tea.Cmd {
	srv := m.srv
	if srv == nil {
		return nil
	}
	if srv.Running() {
		m.appendLine(formatStatus("Stopping server..."))
		return func() tea.Msg {
			if err := srv.Stop(); err != nil && !errors.Is(err, server.ErrNotRunning) {
				return actionErrMsg{err}
			}
			return nil
		}
	}
	m.appendLine(formatStatus("Starting server at " + m.url))
	m.serverUp = true
	return func() tea.Msg {
		if err := srv.Start(); err != nil {
			return actionErrMsg{fmt.Errorf("failed to start server: %w", err)}
		}
		return nil
	}
}

func (m *ConsoleModel) appendLine(line string) {
	m.logs.Append(line)
	m.refreshViewport()
}

func (m *ConsoleModel) refreshViewport() {
	// Only auto-scroll to bottom if user was already at the bottom
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.logs.GetAll(), "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model
func (m *ConsoleModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.spinner.View() + " " + m.status
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderFooter(),
	)
}

func (m *ConsoleModel) renderHeader() string {
	var state string
	switch {
	case m.result == nil:
		state = m.spinner.View() + " " + m.styles.Status.Render(m.status)
	case m.result.Success:
		state = successStyle.Render("✔ created")
	default:
		state = m.styles.Critical.Render("✖ failed")
	}
	return m.styles.Header.Render("djassist · "+m.title) + "  " + state
}

func (m *ConsoleModel) renderFooter() string {
	parts := []string{
		fmt.Sprintf("CPU %.0f%%", m.resources.CPUPercent),
		fmt.Sprintf("Mem %.0f%%", m.resources.MemPercent),
	}
	if m.srv != nil {
		if m.serverUp {
			s := m.styles.Running.Render("server up")
			if m.serverStats.PID > 0 {
				s += fmt.Sprintf(" pid %d %s", m.serverStats.PID, FormatBytes(m.serverStats.RSS))
			}
			parts = append(parts, s)
		} else {
			parts = append(parts, m.styles.Stopped.Render("server down"))
		}
	}
	if n := m.bus.Dropped(); n > 0 {
		parts = append(parts, m.styles.Critical.Render(FormatDropped(n)))
	}

	help := []string{m.styles.HelpKey.Render("↑↓") + " scroll"}
	if m.srv != nil {
		help = append(help, m.styles.HelpKey.Render("s")+" server")
		if m.serverUp {
			help = append(help, m.styles.HelpKey.Render("o")+" open")
		}
	}
	help = append(help, m.styles.HelpKey.Render("q")+" quit")

	return m.styles.Footer.Render(strings.Join(parts, " • ") + "   " + strings.Join(help, " • "))
}

// FormatDropped describes how many events the bus discarded.
func FormatDropped(n int64) string {
	if n == 1 {
		return "1 line dropped"
	}
	return fmt.Sprintf("%d lines dropped", n)
}

// RunConsole runs the console until the user quits or ctx is done. It
// returns the pipeline result if one arrived.
func RunConsole(ctx context.Context, model *ConsoleModel) (scaffold.Result, bool, error) {
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return scaffold.Result{}, false, err
	}
	res, ok := model.Result()
	return res, ok, nil
}
