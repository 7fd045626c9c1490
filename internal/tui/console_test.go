package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wsclient/internal/client"
	"github.com/muurk/wsclient/internal/protocol"
	"github.com/muurk/wsclient/internal/wserr"
)

type fakeConn struct {
	mu          sync.Mutex
	state       client.State
	texts       []string
	binaries    [][]byte
	pings       int
	connects    int
	disconnects int
	connectErr  error
	sendErr     error
}

func (c *fakeConn) Connect(ctx context.Context, rawURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr != nil {
		return c.connectErr
	}
	c.state = client.StateOpen
	return nil
}

func (c *fakeConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeConn) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.binaries = append(c.binaries, data)
	return nil
}

func (c *fakeConn) Ping(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) DisconnectAsync() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.state = client.StateClosed
	done := make(chan struct{})
	close(done)
	return done
}

func (c *fakeConn) State() client.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func newTestConsole(t *testing.T, conn *fakeConn) ConsoleModel {
	t.Helper()
	m := NewConsoleModel(context.Background(), conn, NewBridge(16), "ws://echo.local:8080/")
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.resize(100, 40)
	return m
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (ConsoleModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	cm, ok := updated.(ConsoleModel)
	require.True(t, ok)
	return cm, cmd
}

func lastEntry(m ConsoleModel) entry {
	return m.Entries[len(m.Entries)-1]
}

func TestConsole_SendText(t *testing.T) {
	conn := &fakeConn{state: client.StateOpen}
	m := newTestConsole(t, conn)

	m.Input.SetValue("hello")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"hello"}, conn.texts)
	assert.Empty(t, m.Input.Value())
	assert.Equal(t, entry{At: m.now(), Kind: entryOutbound, Text: "hello"}, lastEntry(m))

	// empty composer sends nothing
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, conn.texts, 1)
}

func TestConsole_HexMode(t *testing.T) {
	conn := &fakeConn{state: client.StateOpen}
	m := newTestConsole(t, conn)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.True(t, m.HexMode)
	assert.Contains(t, m.Input.Prompt, "hex>")

	m.Input.SetValue("zz")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, conn.binaries)
	assert.Equal(t, entryError, lastEntry(m).Kind)
	assert.Equal(t, "zz", m.Input.Value())

	m.Input.SetValue("01 02 ff")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, conn.binaries, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0xff}, conn.binaries[0])
	assert.Equal(t, "[binary 3 bytes] 0102ff", lastEntry(m).Text)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.False(t, m.HexMode)
}

func TestConsole_SendError(t *testing.T) {
	conn := &fakeConn{sendErr: wserr.New(wserr.ErrTypeInvalidState, "connection is CLOSED")}
	m := newTestConsole(t, conn)

	m.Input.SetValue("hello")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	e := lastEntry(m)
	assert.Equal(t, entryError, e.Kind)
	assert.Equal(t, "Invalid State: connection is CLOSED", e.Text)
	assert.Equal(t, "hello", m.Input.Value(), "a failed send keeps the draft")
}

func TestConsole_Ping(t *testing.T) {
	conn := &fakeConn{state: client.StateOpen}
	m := newTestConsole(t, conn)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, 1, conn.pings)
	assert.Equal(t, "[ping]", lastEntry(m).Text)
}

func TestConsole_ConnectLifecycle(t *testing.T) {
	conn := &fakeConn{}
	m := newTestConsole(t, conn)
	require.True(t, m.Connecting)
	assert.Equal(t, "connecting to ws://echo.local:8080/", lastEntry(m).Text)

	msg := m.connectCmd()()
	assert.Equal(t, connectResultMsg{}, msg)
	assert.Equal(t, 1, conn.connects)

	m, _ = update(t, m, msg)
	assert.False(t, m.Connecting)

	// disconnect only when open
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	require.NotNil(t, cmd)
	assert.Equal(t, disconnectedMsg{}, cmd())
	assert.Equal(t, client.StateClosed, conn.State())

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Nil(t, cmd)

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	assert.True(t, m.Connecting)

	// a second reconnect while one is running is ignored
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Nil(t, cmd)
}

func TestConsole_ConnectFailureShowsHint(t *testing.T) {
	conn := &fakeConn{connectErr: wserr.New(wserr.ErrTypeTimeout, "handshake timed out")}
	m := newTestConsole(t, conn)

	m, _ = update(t, m, m.connectCmd()())
	assert.False(t, m.Connecting)
	assert.Equal(t, entryInfo, lastEntry(m).Kind)
	assert.Contains(t, lastEntry(m).Text, "--timeout")
}

func TestConsole_Quit(t *testing.T) {
	conn := &fakeConn{state: client.StateOpen}
	m := newTestConsole(t, conn)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.Quitting)
	assert.NotNil(t, cmd)
}

func TestConsole_BridgeEvents(t *testing.T) {
	conn := &fakeConn{state: client.StateOpen}
	m := newTestConsole(t, conn)
	h := m.bridge.Handlers(client.Handlers{})

	h.OnOpen()
	h.OnText("hi")
	h.OnBinary([]byte{0xde, 0xad})
	h.OnError(wserr.New(wserr.ErrTypeFrame, "masked frame"))
	h.OnStateChange(client.StateOpen, client.StateClosing)
	h.OnClose()

	var texts []string
	for i := 0; i < 6; i++ {
		var cmd tea.Cmd
		m, cmd = update(t, m, m.bridge.waitForEvent()())
		require.NotNil(t, cmd, "every event re-arms the wait")
	}
	for _, e := range m.Entries[1:] {
		texts = append(texts, e.Text)
	}

	assert.Equal(t, []string{
		"connected to ws://echo.local:8080/",
		"hi",
		"[binary 2 bytes] dead",
		"Frame Error: masked frame",
		"connection closed",
	}, texts)
	assert.Equal(t, entryInbound, m.Entries[2].Kind)
	assert.Equal(t, entryError, m.Entries[4].Kind)
}

func TestBridge_ChainsBaseHandlers(t *testing.T) {
	var frames, changes int
	b := NewBridge(4)
	h := b.Handlers(client.Handlers{
		OnFrame:       func(client.Direction, *protocol.Frame) { frames++ },
		OnStateChange: func(from, to client.State) { changes++ },
	})

	h.OnFrame(client.Inbound, &protocol.Frame{})
	h.OnStateChange(client.StateClosed, client.StateConnecting)

	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, changes)
}

func TestBridge_CloseUnblocksCallbacks(t *testing.T) {
	b := NewBridge(1)
	h := b.Handlers(client.Handlers{})
	h.OnText("fills the buffer")

	done := make(chan struct{})
	go func() {
		h.OnText("would block")
		close(done)
	}()

	b.Close()
	b.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback still blocked after Close")
	}
}

func TestConsole_TranscriptIsBounded(t *testing.T) {
	m := newTestConsole(t, &fakeConn{})
	for i := 0; i < maxEntries+50; i++ {
		m.appendEntry(entryInbound, "x")
	}
	assert.Len(t, m.Entries, maxEntries)
}

func TestConsole_View(t *testing.T) {
	m := newTestConsole(t, &fakeConn{state: client.StateOpen})
	m.appendEntry(entryInbound, "visible message")

	view := m.View()
	assert.Contains(t, view, "OPEN")
	assert.Contains(t, view, "ws://echo.local:8080/")
	assert.Contains(t, view, "visible message")
	assert.Contains(t, view, AppName)
}

func TestFormatBinary(t *testing.T) {
	long := make([]byte, binaryPreviewBytes+8)
	got := formatBinary(long)
	assert.True(t, strings.HasPrefix(got, "[binary 40 bytes] "))
	assert.True(t, strings.HasSuffix(got, "…"))

	_, err := decodeHex("0")
	assert.Error(t, err)
	data, err := decodeHex(" 0a\t0B ")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x0b}, data)
}

func TestConsole_ErrorsUnwrapToShortMessage(t *testing.T) {
	m := newTestConsole(t, &fakeConn{})
	m, _ = update(t, m, clientErrorMsg{err: errors.New("plain failure")})
	assert.Equal(t, "plain failure", lastEntry(m).Text)
}
