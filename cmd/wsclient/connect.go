package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/capture"
	"github.com/muurk/wsclient/internal/client"
	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/discovery"
	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/protocol"
	"github.com/muurk/wsclient/internal/tui"
	"github.com/muurk/wsclient/internal/ui"
	"github.com/muurk/wsclient/internal/wserr"
)

// Connect command flags
var (
	connectFlags    connFlags
	connectLines    bool
	connectBinary   bool
	connectLinger   time.Duration
	connectDiscover time.Duration
)

func init() {
	connectFlags.register(connectCmd.Flags())
	connectCmd.Flags().BoolVar(&connectLines, "lines", false, "Line mode even on a terminal: stdin lines are sent, received messages go to stdout")
	connectCmd.Flags().BoolVar(&connectBinary, "binary", false, "Line mode: treat each input line as hex and send it as a binary message")
	connectCmd.Flags().DurationVar(&connectLinger, "linger", 0, "Line mode: keep receiving this long after stdin ends")
	connectCmd.Flags().DurationVar(&connectDiscover, "discover-timeout", discovery.DefaultScanTimeout, "How long the console browses for endpoints when no URL is given")

	rootCmd.AddCommand(connectCmd)
}

var connectCmd = &cobra.Command{
	Use:   "connect [url]",
	Short: "Open a WebSocket session",
	Long: `Open a WebSocket session to a ws:// or wss:// URL.

On a terminal this starts the interactive console: received messages scroll
above a composer line, enter sends, ctrl+t switches to hex (binary) input.
Without a URL the console first browses the local network for advertised
WebSocket services, unless a profile or a default profile supplies one.

When stdin or stdout is not a terminal (or with --lines) wsclient runs in
line mode: every stdin line is sent as one message and every received
message is written to stdout on its own line. Status goes to stderr.`,
	Example: `  # Interactive console
  wsclient connect wss://echo.example.com/

  # Browse the network, then connect
  wsclient connect

  # Pipe messages through a server
  printf 'one\ntwo\n' | wsclient connect ws://localhost:8080/ --linger 2s

  # Use a saved profile and capture the session
  wsclient connect --profile staging --capture-dir ./captures`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	url, cfg, err := connectFlags.resolve(cmd, args)
	if err != nil {
		return err
	}
	cfg = withUserAgent(cfg)

	rec, paths, err := connectFlags.openCapture(url)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	if rec != nil {
		defer closeCapture(cmd.ErrOrStderr(), rec, paths)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := !connectLines && ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout)
	if interactive {
		return runConsole(ctx, url, cfg, rec)
	}

	if url == "" {
		return errors.New("a URL is required in line mode (or use --profile)")
	}
	return runLineMode(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), url, cfg, rec)
}

// frameHandlers returns the handlers every session starts from: frames go
// to the recorder when capture is on.
func frameHandlers(rec *capture.Recorder) client.Handlers {
	var h client.Handlers
	if rec != nil {
		h.OnFrame = func(d client.Direction, f *protocol.Frame) {
			rec.Observe(d.String(), f)
		}
	}
	return h
}

func closeCapture(w io.Writer, rec *capture.Recorder, paths []string) {
	if err := rec.Close(); err != nil {
		logging.Warn("Failed to close capture", zap.Error(err))
	}
	p := ui.NewPrinter(w)
	p.PrintNotice(fmt.Sprintf("captured %d frames to %s", rec.Count(), strings.Join(paths, ", ")))
}

// runConsole runs the interactive console until the user quits.
func runConsole(ctx context.Context, url string, cfg config.Config, rec *capture.Recorder) error {
	bridge := tui.NewBridge(0)
	defer bridge.Close()

	var c *client.Client
	base := frameHandlers(rec)
	if rec != nil {
		// the URL is only known once discovery has picked an endpoint
		base.OnStateChange = func(from, to client.State) {
			if to == client.StateOpen {
				rec.SetURL(c.URL())
			}
		}
	}

	c, err := client.New(cfg, client.WithHandlers(bridge.Handlers(base)))
	if err != nil {
		return err
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = connectDiscover

	app := tui.NewAppModel(ctx, tui.AppOptions{
		Conn:        c,
		Bridge:      bridge,
		URL:         url,
		Scanner:     scanner,
		ScanTimeout: connectDiscover,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, runErr := p.Run()

	// stop delivery first so the reader can never block on the bridge
	bridge.Close()
	if err := c.Disconnect(); err != nil {
		logging.Warn("Disconnect failed", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("console: %w", runErr)
	}
	return nil
}

// runLineMode connects, pipes in to the server and server messages to out.
func runLineMode(ctx context.Context, in io.Reader, out, errOut io.Writer, url string, cfg config.Config, rec *capture.Recorder) error {
	s := newLineSession(out, errOut)

	c, err := client.New(cfg, client.WithHandlers(s.handlers(frameHandlers(rec))))
	if err != nil {
		return err
	}

	if err := c.Connect(ctx, url); err != nil {
		return err
	}
	defer func() {
		if err := c.Disconnect(); err != nil {
			logging.Warn("Disconnect failed", zap.Error(err))
		}
	}()

	return s.run(ctx, c, in, lineOptions{
		binary:  connectBinary,
		linger:  connectLinger,
		maxLine: int(cfg.MaxFrameSize),
	})
}

// messageSender is the part of the client line mode needs.
type messageSender interface {
	Send(text string) error
	SendBinary(data []byte) error
}

type lineOptions struct {
	binary  bool
	linger  time.Duration
	maxLine int
}

// lineSession serializes client callbacks onto plain line output.
type lineSession struct {
	mu      sync.Mutex
	out     io.Writer
	status  *ui.Printer
	lastErr error

	closed    chan struct{}
	closeOnce sync.Once
}

func newLineSession(out, errOut io.Writer) *lineSession {
	return &lineSession{
		out:    out,
		status: ui.NewPrinter(errOut),
		closed: make(chan struct{}),
	}
}

func (s *lineSession) handlers(base client.Handlers) client.Handlers {
	base.OnOpen = func() { s.notice("connected") }
	base.OnText = func(text string) { s.write(text) }
	base.OnBinary = func(data []byte) { s.write(hex.EncodeToString(data)) }
	base.OnError = func(err error) {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.notice(wserr.ShortMessage(err))
	}
	base.OnClose = func() {
		s.notice("connection closed")
		s.closeOnce.Do(func() { close(s.closed) })
	}
	return base
}

func (s *lineSession) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.out, line)
}

func (s *lineSession) notice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.PrintNotice(text)
}

// err is the error that ended the connection, if any.
func (s *lineSession) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// run sends every line of in until in ends, ctx is cancelled or the
// connection closes. After in ends it keeps receiving for opts.linger.
func (s *lineSession) run(ctx context.Context, c messageSender, in io.Reader, opts lineOptions) error {
	lines := make(chan string)
	readDone := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(in)
		if opts.maxLine > bufio.MaxScanTokenSize {
			sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), opts.maxLine)
		}
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-s.closed:
				return
			case <-ctx.Done():
				return
			}
		}
		readDone <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-s.closed:
			return s.err()

		case err := <-readDone:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return s.linger(ctx, opts.linger)

		case line := <-lines:
			if err := s.send(c, line, opts.binary); err != nil {
				s.notice(wserr.ShortMessage(err))
			}
		}
	}
}

func (s *lineSession) send(c messageSender, line string, binary bool) error {
	if !binary {
		return c.Send(line)
	}
	data, err := hex.DecodeString(strings.Join(strings.Fields(line), ""))
	if err != nil {
		return wserr.Wrap(wserr.ErrTypeInvalidParameter, "input line is not hex", err)
	}
	return c.SendBinary(data)
}

func (s *lineSession) linger(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return nil
	case <-s.closed:
		return s.err()
	}
}
