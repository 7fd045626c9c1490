package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsclient/internal/client"
	"github.com/muurk/wsclient/internal/ui"
)

// Send command flags
var (
	sendFlags  connFlags
	sendBinary bool
	sendWait   time.Duration
	sendCount  int
)

func init() {
	sendFlags.register(sendCmd.Flags())
	sendCmd.Flags().BoolVar(&sendBinary, "binary", false, "Message is hex and is sent as a binary message")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 2*time.Second, "How long to wait for replies")
	sendCmd.Flags().IntVarP(&sendCount, "count", "n", 1, "Number of replies to wait for (0 sends without waiting)")

	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <url> <message...>",
	Short: "Send one message and print the replies",
	Long: `Connect, send a single message, print up to --count replies and close.

The message arguments are joined with spaces. With --binary the message is
hex (whitespace ignored) and goes out as a binary message. The command exits
non-zero when the connection fails or fewer than --count replies arrive
within --wait.`,
	Example: `  # Round trip through an echo server
  wsclient send ws://localhost:8080/echo hello world

  # Binary message, wait for three replies
  wsclient send wss://feed.example.com/ --binary "01 02 ff" --count 3 --wait 5s

  # Fire and forget
  wsclient send ws://localhost:8080/ping -n 0 ping`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	url, cfg, err := sendFlags.resolve(cmd, args[:1])
	if err != nil {
		return err
	}
	cfg = withUserAgent(cfg)

	message := strings.Join(args[1:], " ")
	var payload []byte
	kind := "text"
	if sendBinary {
		payload, err = hex.DecodeString(strings.Join(strings.Fields(message), ""))
		if err != nil {
			return fmt.Errorf("--binary message is not hex: %w", err)
		}
		kind = "binary"
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Send Message", "wsclient send", []ui.Param{
		{Key: "URL", Value: url},
		{Key: "Type", Value: kind},
		{Key: "Replies", Value: fmt.Sprintf("%d within %s", sendCount, sendWait)},
	})

	rec, paths, err := sendFlags.openCapture(url)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	if rec != nil {
		defer closeCapture(cmd.ErrOrStderr(), rec, paths)
	}

	replies := newReplyQueue()
	h := frameHandlers(rec)
	h.OnText = func(text string) { replies.push(text) }
	h.OnBinary = func(data []byte) { replies.push(describeBinary(data)) }
	h.OnClose = replies.close

	c, err := client.New(cfg, client.WithHandlers(h))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := c.Connect(ctx, url); err != nil {
		p.PrintFailure("Connection Failed", err)
		return errReported
	}
	defer func() { _ = c.Disconnect() }()

	if sendBinary {
		err = c.SendBinary(payload)
		p.PrintOutbound(describeBinary(payload))
	} else {
		err = c.Send(message)
		p.PrintOutbound(message)
	}
	if err != nil {
		p.PrintFailure("Send Failed", err)
		return errReported
	}

	got := replies.collect(ctx, sendCount, sendWait, p.PrintInbound)

	compression := "off"
	if params, ok := c.Negotiated(); ok {
		compression = params.String()
	}
	details := []ui.Param{
		{Key: "Replies", Value: strconv.Itoa(got)},
		{Key: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
		{Key: "Compression", Value: compression},
	}

	p.Newline()
	if got < sendCount {
		p.PrintWarning("Fewer Replies Than Expected", details)
		return errReported
	}
	p.PrintSuccess("Message Sent", details)
	return nil
}

// describeBinary renders a binary message on one line.
func describeBinary(data []byte) string {
	return fmt.Sprintf("[binary %d bytes] %s", len(data), hex.EncodeToString(data))
}

// replyQueue hands messages from the client's reader to the command.
type replyQueue struct {
	mu       sync.Mutex
	messages []string
	notify   chan struct{}
	closed   chan struct{}
	once     sync.Once
}

func newReplyQueue() *replyQueue {
	return &replyQueue{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (q *replyQueue) push(msg string) {
	q.mu.Lock()
	q.messages = append(q.messages, msg)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *replyQueue) close() {
	q.once.Do(func() { close(q.closed) })
}

func (q *replyQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs := q.messages
	q.messages = nil
	return msgs
}

// collect passes up to want messages to emit and returns how many it saw.
// It stops early when the connection closes, ctx ends or wait elapses.
func (q *replyQueue) collect(ctx context.Context, want int, wait time.Duration, emit func(string)) int {
	if want <= 0 {
		return 0
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	got := 0
	take := func() bool {
		for _, msg := range q.drain() {
			if got == want {
				return true
			}
			emit(msg)
			got++
		}
		return got == want
	}

	for {
		select {
		case <-q.notify:
			if take() {
				return got
			}
		case <-q.closed:
			take()
			return got
		case <-deadline.C:
			take()
			return got
		case <-ctx.Done():
			return got
		}
	}
}
