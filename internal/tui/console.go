package tui

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wsclient/internal/client"
	"github.com/muurk/wsclient/internal/wserr"
)

// maxEntries bounds the transcript kept in memory.
const maxEntries = 1000

// binaryPreviewBytes is how much of a binary payload is shown in hex.
const binaryPreviewBytes = 32

// Conn is the part of *client.Client driven by the console.
type Conn interface {
	Connect(ctx context.Context, rawURL string) error
	Send(text string) error
	SendBinary(data []byte) error
	Ping(payload []byte) error
	DisconnectAsync() <-chan struct{}
	State() client.State
}

type connectResultMsg struct{ err error }
type disconnectedMsg struct{}

type entryKind int

const (
	entryInfo entryKind = iota
	entryInbound
	entryOutbound
	entryError
)

type entry struct {
	At   time.Time
	Kind entryKind
	Text string
}

// consoleKeyMap defines key bindings for the console screen
type consoleKeyMap struct {
	Send       key.Binding
	Ping       key.Binding
	Mode       key.Binding
	Disconnect key.Binding
	Reconnect  key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Quit       key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k consoleKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Ping, k.Mode, k.Disconnect, k.Reconnect, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k consoleKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Mode, k.Ping},
		{k.Disconnect, k.Reconnect},
		{k.PageUp, k.PageDown, k.Quit},
	}
}

func newConsoleKeyMap() consoleKeyMap {
	return consoleKeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Ping: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "ping"),
		),
		Mode: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "text/hex"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "disconnect"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reconnect"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ConsoleModel is the interactive session screen: a scrolling transcript
// of the conversation above a composer line.
type ConsoleModel struct {
	Conn   Conn
	URL    string
	ctx    context.Context
	bridge *Bridge

	Connecting bool
	HexMode    bool
	Quitting   bool
	Entries    []entry

	// UI state
	Width    int
	Height   int
	Viewport viewport.Model
	Input    textinput.Model
	Spinner  spinner.Model
	Help     help.Model
	Keys     consoleKeyMap

	now func() time.Time
}

// NewConsoleModel creates a console that connects to url on Init.
func NewConsoleModel(ctx context.Context, conn Conn, bridge *Bridge, url string) ConsoleModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "type a message"
	input.Focus()

	m := ConsoleModel{
		Conn:       conn,
		URL:        url,
		ctx:        ctx,
		bridge:     bridge,
		Connecting: true,
		Viewport:   viewport.New(MinTerminalWidth-6, 10),
		Input:      input,
		Spinner:    s,
		Help:       help.New(),
		Keys:       newConsoleKeyMap(),
		now:        time.Now,
	}
	m.Input.Prompt = m.prompt()
	m.appendEntry(entryInfo, "connecting to "+url)
	return m
}

// Init starts the connection and begins draining client events
func (m ConsoleModel) Init() tea.Cmd {
	return tea.Batch(
		m.connectCmd(),
		m.bridge.waitForEvent(),
		m.Spinner.Tick,
		textinput.Blink,
	)
}

// Update handles messages and updates the model
func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case connectResultMsg:
		m.Connecting = false
		// the error itself arrives through OnError
		if msg.err != nil {
			if hint := wserr.Hint(msg.err); hint != "" {
				m.appendEntry(entryInfo, hint)
			}
		}
		return m, nil

	case disconnectedMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.Connecting {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case openedMsg:
		m.appendEntry(entryInfo, "connected to "+m.URL)
		return m, m.bridge.waitForEvent()

	case textMsg:
		m.appendEntry(entryInbound, msg.text)
		return m, m.bridge.waitForEvent()

	case binaryMsg:
		m.appendEntry(entryInbound, formatBinary(msg.data))
		return m, m.bridge.waitForEvent()

	case clientErrorMsg:
		m.appendEntry(entryError, wserr.ShortMessage(msg.err))
		return m, m.bridge.waitForEvent()

	case closedMsg:
		m.appendEntry(entryInfo, "connection closed")
		return m, m.bridge.waitForEvent()

	case stateMsg:
		return m, m.bridge.waitForEvent()
	}

	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// updateKeys handles keyboard input
func (m ConsoleModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Quitting = true
		return m, tea.Sequence(m.disconnectCmd(), tea.Quit)

	case key.Matches(msg, m.Keys.Send):
		return m.sendInput()

	case key.Matches(msg, m.Keys.Ping):
		if err := m.Conn.Ping(nil); err != nil {
			m.appendEntry(entryError, wserr.ShortMessage(err))
		} else {
			m.appendEntry(entryOutbound, "[ping]")
		}
		return m, nil

	case key.Matches(msg, m.Keys.Mode):
		m.HexMode = !m.HexMode
		m.Input.Prompt = m.prompt()
		return m, nil

	case key.Matches(msg, m.Keys.Disconnect):
		if m.Conn.State() != client.StateOpen {
			return m, nil
		}
		return m, m.disconnectCmd()

	case key.Matches(msg, m.Keys.Reconnect):
		if m.Conn.State() != client.StateClosed || m.Connecting {
			return m, nil
		}
		m.Connecting = true
		m.appendEntry(entryInfo, "connecting to "+m.URL)
		return m, tea.Batch(m.connectCmd(), m.Spinner.Tick)

	case key.Matches(msg, m.Keys.PageUp, m.Keys.PageDown):
		m.Viewport, cmd = m.Viewport.Update(msg)
		return m, cmd
	}

	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// sendInput sends the composer contents as a text or binary message
func (m ConsoleModel) sendInput() (tea.Model, tea.Cmd) {
	value := m.Input.Value()
	if value == "" {
		return m, nil
	}

	if m.HexMode {
		data, err := decodeHex(value)
		if err != nil {
			m.appendEntry(entryError, "invalid hex: "+err.Error())
			return m, nil
		}
		if err := m.Conn.SendBinary(data); err != nil {
			m.appendEntry(entryError, wserr.ShortMessage(err))
			return m, nil
		}
		m.appendEntry(entryOutbound, formatBinary(data))
	} else {
		if err := m.Conn.Send(value); err != nil {
			m.appendEntry(entryError, wserr.ShortMessage(err))
			return m, nil
		}
		m.appendEntry(entryOutbound, value)
	}

	m.Input.SetValue("")
	return m, nil
}

func (m ConsoleModel) connectCmd() tea.Cmd {
	conn, ctx, url := m.Conn, m.ctx, m.URL
	return func() tea.Msg {
		return connectResultMsg{err: conn.Connect(ctx, url)}
	}
}

func (m ConsoleModel) disconnectCmd() tea.Cmd {
	conn := m.Conn
	return func() tea.Msg {
		<-conn.DisconnectAsync()
		return disconnectedMsg{}
	}
}

func (m ConsoleModel) prompt() string {
	if m.HexMode {
		return PromptStyle.Render("hex> ")
	}
	return PromptStyle.Render("text> ")
}

func (m *ConsoleModel) resize(width, height int) {
	m.Width = width
	m.Height = height

	w := contentWidth(width)
	m.Viewport.Width = w
	m.Viewport.Height = max(3, height-12)
	m.Input.Width = w - 10
	m.refresh()
}

func (m *ConsoleModel) appendEntry(kind entryKind, text string) {
	m.Entries = append(m.Entries, entry{At: m.now(), Kind: kind, Text: text})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.refresh()
}

func (m *ConsoleModel) refresh() {
	m.Viewport.SetContent(m.renderEntries())
	m.Viewport.GotoBottom()
}

func (m ConsoleModel) renderEntries() string {
	bodyWidth := max(10, m.Viewport.Width-12)
	lines := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		var marker string
		var style lipgloss.Style
		switch e.Kind {
		case entryInbound:
			marker, style = "← ", InboundStyle
		case entryOutbound:
			marker, style = "→ ", OutboundStyle
		case entryError:
			marker, style = "✗ ", FailureStyle
		default:
			marker, style = "• ", InfoStyle
		}
		body := style.Width(bodyWidth).Render(marker + e.Text)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			TimeStyle.Render(e.At.Format("15:04:05")), " ", body))
	}
	return strings.Join(lines, "\n")
}

// View renders the console screen
func (m ConsoleModel) View() string {
	var b strings.Builder

	status := RenderState(m.Conn.State()) + "  " + m.URL
	if m.Connecting {
		status = m.Spinner.View() + " " + status
	}
	b.WriteString(StatusBarStyle.Render(status))
	b.WriteString("\n\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n\n")
	b.WriteString(m.Input.View())

	return RenderApplicationContainer(b.String(), m.Help.View(m.Keys), m.Width, m.Height)
}

// decodeHex accepts hex digits with optional whitespace between bytes.
func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(s), ""))
}

func formatBinary(data []byte) string {
	preview := data
	suffix := ""
	if len(preview) > binaryPreviewBytes {
		preview = preview[:binaryPreviewBytes]
		suffix = "…"
	}
	return fmt.Sprintf("[binary %d bytes] %s%s", len(data), hex.EncodeToString(preview), suffix)
}
