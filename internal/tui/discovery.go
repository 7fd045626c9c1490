package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wsclient/internal/discovery"
	"github.com/muurk/wsclient/internal/urls"
)

// EndpointScanner finds WebSocket endpoints; *discovery.Scanner satisfies it.
type EndpointScanner interface {
	Scan(ctx context.Context) ([]*discovery.Endpoint, error)
}

// Messages for async operations
type scanCompleteMsg struct {
	endpoints []*discovery.Endpoint
	err       error
}
type scanTickMsg time.Time

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual URL entry mode
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// endpointItem wraps an Endpoint for use with bubbles/list
type endpointItem struct {
	endpoint *discovery.Endpoint
}

func (e endpointItem) FilterValue() string {
	return e.endpoint.Instance + " " + e.endpoint.Hostname + " " + e.endpoint.IP
}

func (e endpointItem) Title() string       { return e.endpoint.Instance }
func (e endpointItem) Description() string { return e.endpoint.URL() }

// endpointDelegate renders endpoints as cards
type endpointDelegate struct {
	width int
}

func (d endpointDelegate) Height() int                               { return 7 }
func (d endpointDelegate) Spacing() int                              { return 1 }
func (d endpointDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d endpointDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ei, ok := item.(endpointItem)
	if !ok {
		return
	}
	ep := ei.endpoint
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + ep.Instance))
	} else {
		content.WriteString("  " + ep.Instance)
	}
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("  URL:      %s\n", ep.URL()))
	content.WriteString(fmt.Sprintf("  Host:     %s\n", ep.Hostname))

	security := lipgloss.NewStyle().Foreground(WarningColor).Render("plain")
	if ep.Secure {
		security = lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true).Render("TLS")
	}
	content.WriteString(fmt.Sprintf("  Security: %s", security))

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth)
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel is the endpoint picker: it browses mDNS for WebSocket
// services and also accepts a URL typed by hand.
type DiscoveryModel struct {
	Scanner     EndpointScanner
	ScanTimeout time.Duration

	// Discovery state
	Scanning     bool
	EndpointList list.Model
	Selected     bool
	Err          error

	// Manual URL entry state
	ManualMode bool
	ManualErr  error
	URLInput   textinput.Model

	// UI state
	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap

	now func() time.Time
}

// NewDiscoveryModel creates a new discovery screen model
func NewDiscoveryModel(scanner EndpointScanner, timeout time.Duration) DiscoveryModel {
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	urlInput := textinput.New()
	urlInput.Placeholder = "ws://localhost:8080/"
	urlInput.CharLimit = 2048
	urlInput.Width = 50

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	endpointList := list.New([]list.Item{}, endpointDelegate{width: MinTerminalWidth}, 0, 0)
	endpointList.Title = "Discovered Endpoints"
	endpointList.SetShowStatusBar(false)
	endpointList.SetFilteringEnabled(true)
	endpointList.DisableQuitKeybindings()
	endpointList.Styles.Title = TitleStyle

	m := DiscoveryModel{
		Scanner:      scanner,
		ScanTimeout:  timeout,
		EndpointList: endpointList,
		URLInput:     urlInput,
		Spinner:      s,
		ProgressBar:  progressBar,
		Help:         help.New(),
		Keys: discoveryKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "move up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "move down"),
			),
			Enter: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "connect"),
			),
			Rescan: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "rescan"),
			),
			Manual: key.NewBinding(
				key.WithKeys("m"),
				key.WithHelp("m", "enter URL"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc"),
				key.WithHelp("q", "quit"),
			),
		},
		ManualKeys: manualModeKeyMap{
			Confirm: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "connect"),
			),
			Cancel: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "cancel"),
			),
		},
		now: time.Now,
	}
	// Init always scans
	m.Scanning = true
	m.ScanStartTime = m.now()
	return m
}

// Init starts scanning immediately
func (m DiscoveryModel) Init() tea.Cmd {
	return m.scanCmds()
}

func (m *DiscoveryModel) startScan() tea.Cmd {
	m.Scanning = true
	m.ScanStartTime = m.now()
	return m.scanCmds()
}

func (m DiscoveryModel) scanCmds() tea.Cmd {
	return tea.Batch(
		scanEndpoints(m.Scanner, m.ScanTimeout),
		m.Spinner.Tick,
		scanTick(),
	)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.EndpointList.SetDelegate(endpointDelegate{width: msg.Width})
		m.EndpointList.SetWidth(msg.Width - 4)
		m.EndpointList.SetHeight(msg.Height - 10)
		return m, nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.endpoints))
		for i, ep := range msg.endpoints {
			items[i] = endpointItem{endpoint: ep}
		}
		cmd = m.EndpointList.SetItems(items)
		return m, cmd

	case scanTickMsg:
		if !m.Scanning {
			return m, nil
		}
		return m, scanTick()

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.ManualMode && !m.Scanning {
		m.EndpointList, cmd = m.EndpointList.Update(msg)
	}
	return m, cmd
}

// updateNormalMode handles keyboard input in the endpoint list
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// while filtering, every key belongs to the list
	if m.EndpointList.FilterState() == list.Filtering {
		m.EndpointList, cmd = m.EndpointList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.Keys.Enter):
		if !m.Scanning && m.EndpointList.SelectedItem() != nil {
			m.Selected = true
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return m, nil
		}
		m.EndpointList.SetItems(nil)
		m.Err = nil
		cmd = m.startScan()
		return m, cmd

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.ManualErr = nil
		m.URLInput.SetValue("")
		return m, m.URLInput.Focus()
	}

	if !m.Scanning {
		m.EndpointList, cmd = m.EndpointList.Update(msg)
	}
	return m, cmd
}

// updateManualMode handles keyboard input in manual URL entry mode
func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.ManualErr = nil
		m.URLInput.SetValue("")
		m.URLInput.Blur()
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		value := strings.TrimSpace(m.URLInput.Value())
		if value == "" {
			return m, nil
		}
		u, err := urls.Parse(value)
		if err != nil {
			m.ManualErr = err
			return m, nil
		}
		ep := &discovery.Endpoint{
			Instance:     "Manual: " + value,
			Hostname:     u.Host,
			IP:           u.Host,
			Port:         u.Port,
			Secure:       u.Secure(),
			Metadata:     map[string]string{"path": u.RequestURI()},
			DiscoveredAt: m.now(),
		}
		items := append([]list.Item{endpointItem{endpoint: ep}}, m.EndpointList.Items()...)
		cmd = m.EndpointList.SetItems(items)
		m.EndpointList.Select(0)
		m.ManualMode = false
		m.URLInput.SetValue("")
		m.URLInput.Blur()
		m.Selected = true
		return m, cmd
	}

	m.URLInput, cmd = m.URLInput.Update(msg)
	return m, cmd
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderScanning renders a centered scanning progress display
func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := m.now().Sub(m.ScanStartTime)
	fraction := float64(elapsed) / float64(m.ScanTimeout)
	if fraction > 1 {
		fraction = 1
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" SEARCHING FOR ENDPOINTS"),
		"",
		SubtitleStyle.Render("Browsing mDNS for _ws._tcp and _wss._tcp services..."),
		"",
		m.ProgressBar.ViewAs(fraction),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderResults renders the endpoint list or an empty/error message
func (m DiscoveryModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString("  Press m to enter a URL by hand.\n")

	case len(m.EndpointList.Items()) == 0:
		b.WriteString("  ")
		b.WriteString(lipgloss.NewStyle().Foreground(WarningColor).Bold(true).
			Render("⚠ No WebSocket services advertised on your network"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Servers must advertise _ws._tcp or _wss._tcp over mDNS\n")
		b.WriteString("    • Multicast traffic may be blocked by your network\n")
		b.WriteString("    • Press r to rescan or m to enter a URL\n")

	default:
		b.WriteString(m.EndpointList.View())
	}

	return b.String()
}

// renderManualEntry renders the manual URL entry dialog
func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder

	b.WriteString(RenderSubtitle("Enter a ws:// or wss:// URL"))
	b.WriteString("\n\n")
	b.WriteString("  URL: ")
	b.WriteString(m.URLInput.View())
	b.WriteString("\n\n")
	if m.ManualErr != nil {
		b.WriteString(RenderError(m.ManualErr.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// SelectedURL returns the URL of the chosen endpoint, or "" when nothing
// has been chosen yet.
func (m DiscoveryModel) SelectedURL() string {
	if !m.Selected {
		return ""
	}
	if item, ok := m.EndpointList.SelectedItem().(endpointItem); ok {
		return item.endpoint.URL()
	}
	return ""
}

// scanEndpoints is a command that performs endpoint discovery
func scanEndpoints(scanner EndpointScanner, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		endpoints, err := scanner.Scan(ctx)
		return scanCompleteMsg{endpoints: endpoints, err: err}
	}
}

// scanTick redraws the progress bar while a scan runs.
func scanTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return scanTickMsg(t)
	})
}
