package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wsclient/internal/capture"
	"github.com/muurk/wsclient/internal/client"
	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/protocol"
	"github.com/muurk/wsclient/internal/testpeer"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		value string
		err   bool
	}{
		{in: "Authorization: Bearer abc", name: "Authorization", value: "Bearer abc"},
		{in: "X-Trace=1", name: "X-Trace", value: "1"},
		{in: "X-Time: 12:30", name: "X-Time", value: "12:30"},
		{in: "X-Empty:", name: "X-Empty", value: ""},
		{in: ": value", err: true},
		{in: "no separator", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, value, err := parseHeader(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestConnFlags_ApplyOnlyChanged(t *testing.T) {
	var f connFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse([]string{
		"--compress",
		"--ping-interval", "0",
		"-H", "Authorization: Bearer abc",
		"--extension", "x-custom; level=2",
		"--ca-file", "/etc/ca.pem",
	}))

	cfg := config.Default()
	cfg.Timeout = 42 * time.Second // from a profile
	require.NoError(t, f.apply(fs, &cfg))

	assert.Equal(t, 42*time.Second, cfg.Timeout, "unset flags keep the profile value")
	assert.True(t, cfg.Compression)
	assert.Zero(t, cfg.PingInterval)
	assert.Equal(t, "Bearer abc", cfg.Headers["Authorization"])
	assert.Equal(t, "level=2", cfg.Extensions["x-custom"])
	assert.Equal(t, "/etc/ca.pem", cfg.TLS.CAFile)
	assert.False(t, cfg.TLS.InsecureSkipVerify)
}

func TestConnFlags_ApplyValidates(t *testing.T) {
	var f connFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.registerConfig(fs)
	require.NoError(t, fs.Parse([]string{"--compression-level", "12"}))

	cfg := config.Default()
	assert.Error(t, f.apply(fs, &cfg))
}

func TestWithUserAgent(t *testing.T) {
	cfg := withUserAgent(config.Default())
	assert.True(t, strings.HasPrefix(cfg.Headers["User-Agent"], "wsclient/"))

	custom := config.Default()
	custom.Headers = map[string]string{"user-agent": "probe/1"}
	cfg = withUserAgent(custom)
	assert.Equal(t, map[string]string{"user-agent": "probe/1"}, cfg.Headers)
}

func TestOpenCapture(t *testing.T) {
	var f connFlags
	rec, paths, err := f.openCapture("ws://x/")
	require.NoError(t, err)
	assert.Nil(t, rec, "capture is off by default")
	assert.Empty(t, paths)

	dir := t.TempDir()
	f.captureDir = dir
	f.captureDB = dir + "/frames.db"
	rec, paths, err = f.openCapture("ws://x/")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, paths, 2)

	h := frameHandlers(rec)
	h.OnFrame(client.Outbound, &protocol.Frame{FIN: true, Opcode: protocol.OpcodeText, Masked: true, Payload: []byte("hi")})
	require.NoError(t, rec.Close())

	records, err := capture.ReadJSONL(paths[0])
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "outbound", records[0].Direction)
	assert.Equal(t, "ws://x/", records[0].URL)
}

func TestReplyQueue_Collect(t *testing.T) {
	q := newReplyQueue()
	var printed []string
	record := func(s string) { printed = append(printed, s) }

	q.push("one")
	q.push("two")
	q.push("three")

	got := q.collect(context.Background(), 2, time.Second, record)
	assert.Equal(t, 2, got)
	assert.Equal(t, []string{"one", "two"}, printed)
}

func TestReplyQueue_StopsOnCloseAndTimeout(t *testing.T) {
	q := newReplyQueue()
	q.push("only")
	q.close()

	var printed []string
	got := q.collect(context.Background(), 3, 5*time.Second, func(s string) { printed = append(printed, s) })
	assert.Equal(t, 1, got)
	assert.Equal(t, []string{"only"}, printed)

	start := time.Now()
	got = newReplyQueue().collect(context.Background(), 1, 50*time.Millisecond, func(string) {})
	assert.Zero(t, got)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Zero(t, newReplyQueue().collect(context.Background(), 0, time.Hour, func(string) {}))
}

func TestDescribeBinary(t *testing.T) {
	assert.Equal(t, "[binary 3 bytes] 0102ff", describeBinary([]byte{0x01, 0x02, 0xff}))
}

type recordingSender struct {
	texts    []string
	binaries [][]byte
	err      error
}

func (s *recordingSender) Send(text string) error {
	s.texts = append(s.texts, text)
	return s.err
}

func (s *recordingSender) SendBinary(data []byte) error {
	s.binaries = append(s.binaries, data)
	return s.err
}

func TestLineSession_SendsEveryLine(t *testing.T) {
	var out, status bytes.Buffer
	s := newLineSession(&out, &status)
	sender := &recordingSender{}

	err := s.run(context.Background(), sender, strings.NewReader("one\ntwo\n\nthree"), lineOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "", "three"}, sender.texts)
}

func TestLineSession_BinaryLines(t *testing.T) {
	var out, status bytes.Buffer
	s := newLineSession(&out, &status)
	sender := &recordingSender{}

	err := s.run(context.Background(), sender, strings.NewReader("01 02\nnot hex\nff\n"), lineOptions{binary: true})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x01, 0x02}, {0xff}}, sender.binaries)
	assert.Contains(t, status.String(), "not hex", "bad lines are reported and skipped")
}

func TestLineSession_ReportsSendErrors(t *testing.T) {
	var out, status bytes.Buffer
	s := newLineSession(&out, &status)
	sender := &recordingSender{err: errors.New("broken pipe")}

	require.NoError(t, s.run(context.Background(), sender, strings.NewReader("x\n"), lineOptions{}))
	assert.Contains(t, status.String(), "broken pipe")
}

func TestLineSession_RoundTrip(t *testing.T) {
	srv, err := testpeer.Start(testpeer.Options{})
	require.NoError(t, err)
	defer srv.Close()

	var out, status bytes.Buffer
	s := newLineSession(&out, &status)

	c, err := client.New(config.Default(), client.WithHandlers(s.handlers(client.Handlers{})))
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background(), srv.URL()))
	defer func() { _ = c.Disconnect() }()

	peer, err := srv.Accept(2 * time.Second)
	require.NoError(t, err)

	peerDone := make(chan error, 1)
	go func() {
		f, err := peer.ReadFrame(2 * time.Second)
		if err != nil {
			peerDone <- err
			return
		}
		if err := peer.WriteFrame(protocol.OpcodeText, true, append([]byte("echo: "), f.Payload...)); err != nil {
			peerDone <- err
			return
		}
		peerDone <- peer.WriteClose(protocol.CloseNormal, "bye")
	}()

	err = s.run(context.Background(), c, strings.NewReader("hello\n"), lineOptions{linger: 5 * time.Second})
	require.NoError(t, err)
	require.NoError(t, <-peerDone)

	assert.Equal(t, "echo: hello\n", out.String())
	assert.Contains(t, status.String(), "connected")
	assert.Contains(t, status.String(), "connection closed")
}

func TestProfileRows(t *testing.T) {
	reg := config.NewRegistry()
	reg.SetProfile("local", "ws://localhost:8080/", "echo server", config.Default())
	reg.SetProfile("prod", "wss://example.com/ws", "", config.Default())
	reg.Profiles["prod"].LastUsed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	reg.Preferences.DefaultProfile = "prod"

	assert.Equal(t, [][]string{
		{"local", "ws://localhost:8080/", "never", "echo server"},
		{"prod *", "wss://example.com/ws", "2025-03-01 12:00", ""},
	}, profileRows(reg))
}

func TestRecordRows(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	records := []capture.Record{
		{Seq: 1, Timestamp: ts, Direction: "outbound", FrameType: "text", FIN: true, Masked: true, PayloadLen: 5, PayloadASCII: "hello"},
		{Seq: 2, Timestamp: ts, Direction: "inbound", FrameType: "continuation", PayloadLen: 60, PayloadASCII: strings.Repeat("a", 60)},
	}

	rows := recordRows(records)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "12:00:00.000", "→", "text", "FM", "5", "hello"}, rows[0])
	assert.Equal(t, "←", rows[1][2])
	assert.Equal(t, "-", rows[1][4])
	assert.Equal(t, strings.Repeat("a", previewChars)+"…", rows[1][6])
}

func TestLoadRecords_ArgumentErrors(t *testing.T) {
	defer func() { captureShowDB, captureShowURL = "", "" }()

	_, err := loadRecords(nil)
	assert.Error(t, err)

	captureShowDB = "frames.db"
	_, err = loadRecords([]string{"file.jsonl"})
	assert.Error(t, err)

	captureShowDB, captureShowURL = "", "ws://x/"
	_, err = loadRecords([]string{"file.jsonl"})
	assert.Error(t, err)
}
