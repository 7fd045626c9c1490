package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wsclient/internal/client"
)

// Messages delivered from the client callbacks
type openedMsg struct{}
type textMsg struct{ text string }
type binaryMsg struct{ data []byte }
type clientErrorMsg struct{ err error }
type closedMsg struct{}
type stateMsg struct{ from, to client.State }

// Bridge turns client callbacks into Bubble Tea messages. Callbacks run on
// the client's goroutines; the console drains them one at a time with
// waitForEvent. Once the bridge is closed, pending callbacks are dropped so
// the reader goroutine never blocks on a program that has exited.
type Bridge struct {
	events    chan tea.Msg
	quit      chan struct{}
	closeOnce sync.Once
}

// NewBridge creates a bridge with room for size undelivered events.
func NewBridge(size int) *Bridge {
	if size <= 0 {
		size = 256
	}
	return &Bridge{
		events: make(chan tea.Msg, size),
		quit:   make(chan struct{}),
	}
}

// Handlers returns client handlers that feed the bridge. OnFrame is taken
// from base so frame observers (capture) keep working.
func (b *Bridge) Handlers(base client.Handlers) client.Handlers {
	return client.Handlers{
		OnOpen:   func() { b.emit(openedMsg{}) },
		OnText:   func(text string) { b.emit(textMsg{text: text}) },
		OnBinary: func(data []byte) { b.emit(binaryMsg{data: data}) },
		OnError:  func(err error) { b.emit(clientErrorMsg{err: err}) },
		OnClose:  func() { b.emit(closedMsg{}) },
		OnStateChange: func(from, to client.State) {
			b.emit(stateMsg{from: from, to: to})
			if base.OnStateChange != nil {
				base.OnStateChange(from, to)
			}
		},
		OnFrame: base.OnFrame,
	}
}

func (b *Bridge) emit(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.quit:
	}
}

// Close stops delivery. It is safe to call more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.quit) })
}

// waitForEvent returns a command that blocks until the next client event.
func (b *Bridge) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.quit:
			return nil
		}
	}
}
