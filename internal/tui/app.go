package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenConsole   Screen = "console"
)

// AppOptions configures NewAppModel.
type AppOptions struct {
	Conn   Conn
	Bridge *Bridge

	// URL skips discovery and opens the console directly.
	URL string

	Scanner     EndpointScanner
	ScanTimeout time.Duration
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	DiscoveryModel DiscoveryModel
	ConsoleModel   ConsoleModel

	ctx  context.Context
	opts AppOptions

	Width  int
	Height int
}

// NewAppModel creates the application model. Without a URL it starts on
// the discovery screen.
func NewAppModel(ctx context.Context, opts AppOptions) AppModel {
	m := AppModel{ctx: ctx, opts: opts}
	if opts.URL != "" {
		m.CurrentScreen = ScreenConsole
		m.ConsoleModel = NewConsoleModel(ctx, opts.Conn, opts.Bridge, opts.URL)
	} else {
		m.CurrentScreen = ScreenDiscovery
		m.DiscoveryModel = NewDiscoveryModel(opts.Scanner, opts.ScanTimeout)
	}
	return m
}

// Init initializes the current screen
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.Init()
	case ScreenConsole:
		return m.ConsoleModel.Init()
	default:
		return nil
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tea.KeyMsg:
		// the console handles ctrl+c itself so it can close the connection
		if msg.String() == "ctrl+c" && m.CurrentScreen != ScreenConsole {
			return m, tea.Quit
		}
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenDiscovery:
		quittable := m.canQuitDiscovery()
		updated, c := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		cmd = c

		if url := m.DiscoveryModel.SelectedURL(); url != "" {
			return m.transitionTo(ScreenConsole, url)
		}

		if keyMsg, ok := msg.(tea.KeyMsg); ok && quittable {
			if keyMsg.String() == "q" || keyMsg.String() == "esc" {
				return m, tea.Quit
			}
		}

	case ScreenConsole:
		updated, c := m.ConsoleModel.Update(msg)
		m.ConsoleModel = updated.(ConsoleModel)
		cmd = c
	}

	return m, cmd
}

// canQuitDiscovery is false while q or esc belong to a text field.
func (m AppModel) canQuitDiscovery() bool {
	d := m.DiscoveryModel
	return !d.ManualMode && d.EndpointList.FilterState() == list.Unfiltered
}

// transitionTo transitions to a new screen
func (m AppModel) transitionTo(screen Screen, url string) (tea.Model, tea.Cmd) {
	m.CurrentScreen = screen

	switch screen {
	case ScreenConsole:
		m.ConsoleModel = NewConsoleModel(m.ctx, m.opts.Conn, m.opts.Bridge, url)
		m.ConsoleModel.resize(m.Width, m.Height)
		return m, m.ConsoleModel.Init()

	case ScreenDiscovery:
		m.DiscoveryModel = NewDiscoveryModel(m.opts.Scanner, m.opts.ScanTimeout)
		return m, m.DiscoveryModel.Init()
	}

	return m, nil
}

// URL returns the URL of the console session, if one was opened.
func (m AppModel) URL() string {
	if m.CurrentScreen != ScreenConsole {
		return ""
	}
	return m.ConsoleModel.URL
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.View()
	case ScreenConsole:
		return m.ConsoleModel.View()
	default:
		return "Unknown screen"
	}
}
