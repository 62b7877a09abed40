package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/thinkwright/tastebuddy-chat/internal/app"
	"github.com/thinkwright/tastebuddy-chat/internal/chat"
	"github.com/thinkwright/tastebuddy-chat/internal/compose"
	"github.com/thinkwright/tastebuddy-chat/internal/poller"
	"github.com/thinkwright/tastebuddy-chat/internal/render"
	"github.com/thinkwright/tastebuddy-chat/internal/transport"
	"github.com/thinkwright/tastebuddy-chat/internal/watcher"
)

type pollTickMsg time.Time

type pollDoneMsg struct {
	res poller.Result
	err error
}

type sentMsg struct{ err error }

type joinedMsg struct{}

type resetDoneMsg struct{ err error }

type exportDoneMsg struct {
	path string
	err  error
}

type clearAlertMsg struct{ seq int }

func pollTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

// Model is the chat screen: transcript, compose line and status bar.
type Model struct {
	ctx      context.Context
	session  *app.App
	watch    *watcher.Watcher
	server   string
	interval time.Duration

	pane    TranscriptPane
	input   textinput.Model
	spinner spinner.Model

	width  int
	height int
	ready  bool

	polling      bool
	sending      bool
	pollErr      bool
	confirmQuit  bool
	confirmReset bool

	alert    string
	alertErr bool
	alertSeq int
}

// NewModel builds the chat screen for session. watch may be nil.
func NewModel(ctx context.Context, session *app.App, server string, watch *watcher.Watcher) Model {
	input := textinput.New()
	input.Placeholder = "Message the group… (@tastebuddy to ask directly)"
	input.CharLimit = 2000
	input.Prompt = "› "
	input.PromptStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	input.TextStyle = lipgloss.NewStyle().Foreground(ColorBarText)
	input.PlaceholderStyle = lipgloss.NewStyle().Foreground(ColorDim)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorCyan)

	return Model{
		ctx:      ctx,
		session:  session,
		watch:    watch,
		server:   server,
		interval: session.Loop().Interval(),
		pane:     NewTranscriptPane(session.Transcript()),
		input:    input,
		spinner:  sp,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, m.joinCmd(), pollTickCmd(m.interval)}
	if m.watch != nil {
		cmds = append(cmds, m.watch.Next())
	}
	return tea.Batch(cmds...)
}

func (m Model) joinCmd() tea.Cmd {
	return func() tea.Msg {
		m.session.Join(m.ctx)
		return joinedMsg{}
	}
}

func (m Model) pollCmd() tea.Cmd {
	loop := m.session.Loop()
	return func() tea.Msg {
		res, err := loop.Tick(m.ctx)
		return pollDoneMsg{res: res, err: err}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{err: m.session.Submit(m.ctx, text)}
	}
}

func (m Model) resetCmd() tea.Cmd {
	return func() tea.Msg {
		return resetDoneMsg{err: m.session.Reset(m.ctx)}
	}
}

func (m Model) exportCmd() tea.Cmd {
	return func() tea.Msg {
		path, err := m.session.Export(m.ctx)
		return exportDoneMsg{path: path, err: err}
	}
}

// startPoll runs a sync unless one is already running.
func (m *Model) startPoll() tea.Cmd {
	if m.polling {
		return nil
	}
	m.polling = true
	return m.pollCmd()
}

func (m *Model) setAlert(text string, isErr bool) tea.Cmd {
	m.alert = text
	m.alertErr = isErr
	m.alertSeq++
	seq := m.alertSeq
	return tea.Tick(6*time.Second, func(time.Time) tea.Msg {
		return clearAlertMsg{seq: seq}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case pollTickMsg:
		return m, tea.Batch(pollTickCmd(m.interval), m.startPoll())

	case joinedMsg:
		return m, m.startPoll()

	case pollDoneMsg:
		m.polling = false
		if errors.Is(msg.err, poller.ErrSkipped) {
			return m, nil
		}
		m.pollErr = msg.err != nil
		m.pane.Sync()
		return m, nil

	case sentMsg:
		m.sending = false
		m.pane.Sync()
		if msg.err != nil && !errors.Is(msg.err, compose.ErrEmpty) {
			return m, m.setAlert("Send failed: "+transport.Describe(msg.err), true)
		}
		// Fetch right away so the sent message shows up without waiting a full interval
		return m, m.startPoll()

	case resetDoneMsg:
		m.pane.Sync()
		if msg.err != nil {
			return m, m.setAlert("Reset failed: "+transport.Describe(msg.err), true)
		}
		return m, m.setAlert("Memory reset", false)

	case exportDoneMsg:
		if msg.err != nil {
			if transport.IsPrecondition(msg.err) {
				return m, m.setAlert("Nothing to export: "+transport.Describe(msg.err), true)
			}
			return m, m.setAlert("Export failed: "+transport.Describe(msg.err), true)
		}
		return m, m.setAlert("Exported "+msg.path, false)

	case clearAlertMsg:
		if msg.seq == m.alertSeq {
			m.alert = ""
		}
		return m, nil

	case watcher.ConfigChangedMsg:
		var cmd tea.Cmd
		if m.session.ApplyConfig(msg.Config) {
			cmd = m.setAlert("Now chatting as "+m.session.DisplayName(), false)
		}
		if m.watch == nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.watch.Next())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.confirmQuit {
			return m.handleConfirmQuit(msg)
		}
		if m.confirmReset {
			return m.handleConfirmReset(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleConfirmQuit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter", "ctrl+c":
		return m, tea.Quit
	default:
		m.confirmQuit = false
	}
	return m, nil
}

func (m Model) handleConfirmReset(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.confirmReset = false
	switch msg.String() {
	case "y", "Y", "enter":
		return m, m.resetCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.confirmQuit = true
		return m, nil

	case "enter":
		text := m.input.Value()
		m.input.Reset()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.sending = true
		return m, m.sendCmd(text)

	case "ctrl+r":
		m.confirmReset = true
		return m, nil

	case "ctrl+e":
		return m, m.exportCmd()

	case "ctrl+y":
		recs := m.session.Renderer().LastRecommendations()
		if len(recs) == 0 {
			return m, m.setAlert("No recommendations to copy yet", true)
		}
		if err := clipboard.WriteAll(render.VenuesText(recs)); err != nil {
			return m, m.setAlert("Clipboard unavailable: "+err.Error(), true)
		}
		return m, m.setAlert(fmt.Sprintf("Copied %d recommendations", len(recs)), false)

	case "pgup":
		m.pane.ScrollUp(max(m.pane.Height()/2, 1))
		return m, nil
	case "pgdown":
		m.pane.ScrollDown(max(m.pane.Height()/2, 1))
		return m, nil
	case "ctrl+up":
		m.pane.ScrollUp(1)
		return m, nil
	case "ctrl+down":
		m.pane.ScrollDown(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// header + panel borders + input + status bar
const chromeLines = 5

func (m *Model) layout() {
	m.input.Width = max(m.width-4, 10)
	m.pane.SetSize(m.width-2, max(m.height-chromeLines, 3))
}

func (m Model) View() string {
	if !m.ready {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	title := "CHAT"
	if !m.pane.IsTailing() {
		title = "CHAT (scrolled)"
	}
	b.WriteString(RenderPanel(title, m.pane.View(), m.width, max(m.height-chromeLines, 3), true))
	b.WriteString("\n")
	b.WriteString(" " + m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	if m.confirmQuit {
		return overlayCenter(b.String(), renderConfirm("QUIT", "Leave the chat?", ColorYellow), m.width, m.height)
	}
	if m.confirmReset {
		return overlayCenter(b.String(), renderConfirm("RESET", "Clear the shared memory for everyone?", ColorRed), m.width, m.height)
	}
	return b.String()
}

func (m Model) renderHeader() string {
	bg := lipgloss.NewStyle().Background(ColorBarBg)

	left := bg.Render(" ") +
		bg.Foreground(ColorGreen).Bold(true).Render("✦") +
		bg.Render(" ") +
		bg.Foreground(ColorCyan).Bold(true).Render("TASTEBUDDY") +
		bg.Foreground(ColorDim).Render("  as ") +
		bg.Foreground(ColorBarText).Render(m.session.DisplayName())

	var right string
	if trend := m.pane.HarmonyTrend(); len(trend) > 0 {
		last := trend[len(trend)-1]
		right = bg.Foreground(ColorDim).Render("HARMONY ") +
			bg.Foreground(render.MoodColor(chat.MoodFor(last))).Render(Sparkline(trend, 16)) +
			bg.Render("  ")
	}
	clock := bg.Foreground(ColorBarText).Render(time.Now().Format("15:04") + " ")

	spacer := max(m.width-visibleLen(left)-visibleLen(right)-visibleLen(clock), 1)
	return left + bg.Render(strings.Repeat(" ", spacer)) + right + clock
}

func (m Model) renderStatusBar() string {
	bg := lipgloss.NewStyle().Background(ColorBarBg)

	keys := "  [Enter] Send  [^R] Reset  [^E] Export  [^Y] Copy picks  [PgUp/PgDn] Scroll  [Esc] Quit"
	left := bg.Foreground(ColorBarText).Render(keys)

	var parts []string
	if m.alert != "" {
		style := bg.Foreground(ColorGreen)
		if m.alertErr {
			style = ErrorStyle.Background(ColorBarBg)
		}
		parts = append(parts, style.Render(m.alert))
	}
	switch {
	case m.sending:
		parts = append(parts, m.spinner.View()+bg.Foreground(ColorYellow).Render(" SENDING"))
	case m.polling:
		parts = append(parts, m.spinner.View()+bg.Foreground(ColorDim).Render(" SYNC"))
	case m.pollErr:
		parts = append(parts, ErrorStyle.Background(ColorBarBg).Render("OFFLINE"))
	default:
		parts = append(parts, bg.Foreground(ColorGreen).Render("LIVE"))
	}
	parts = append(parts, bg.Foreground(ColorDim).Render(m.server))

	right := strings.Join(parts, bg.Foreground(ColorDim).Render(" │ ")) + bg.Render("  ")
	spacer := max(m.width-visibleLen(left)-visibleLen(right), 1)
	return left + bg.Render(strings.Repeat(" ", spacer)) + right
}
