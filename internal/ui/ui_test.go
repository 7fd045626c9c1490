package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muurk/wsclient/internal/wserr"
)

func TestHeader_KeepsParamOrder(t *testing.T) {
	h := NewHeader("WebSocket Session", "wsclient connect", []Param{
		{Key: "URL", Value: "ws://localhost:8080/"},
		{Key: "Compression", Value: "on"},
		{Key: "Timeout", Value: "5s"},
	}).SetWidth(80)

	out := h.String()
	assert.Contains(t, out, "WEBSOCKET SESSION")
	assert.Contains(t, out, "wsclient connect")

	url := strings.Index(out, "ws://localhost:8080/")
	compression := strings.Index(out, "Compression")
	timeout := strings.Index(out, "Timeout")
	assert.True(t, url < compression && compression < timeout, "params out of order:\n%s", out)
}

func TestResult_Failure(t *testing.T) {
	err := wserr.Wrap(wserr.ErrTypeTLS, "certificate verification failed", assert.AnError)
	out := NewFailureResult("Connection failed", err).SetWidth(90).Render()

	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "TLS Error: certificate verification failed")
	assert.Contains(t, out, "--ca-file")
}

func TestResult_SuccessDetails(t *testing.T) {
	r := NewSuccessResult("Message sent", nil).SetWidth(80)
	r.AddDetail("Bytes", "12").AddDetail("Replies", "1")

	out := r.Render()
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "Bytes:")
	assert.Less(t, strings.Index(out, "Bytes"), strings.Index(out, "Replies"))

	assert.Contains(t, NewWarningResult("No endpoints found", nil).Render(), "WARNING")
}

func TestPrinter_Transcript(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOutbound("ping")
	p.PrintInbound("pong")
	p.PrintNotice("closed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"→ ping", "← pong", "• closed"}, lines)
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTable([]string{"NAME", "URL"}, [][]string{
		{"echo", "ws://localhost:8080/"},
		{"production", "wss://example.com/ws"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "NAME        URL", lines[0])
	assert.Equal(t, "echo        ws://localhost:8080/", lines[1])
	assert.Equal(t, "production  wss://example.com/ws", lines[2])
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yes", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"I AGREE\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(strings.NewReader(tt.input), &out, "Delete profile", []string{"This cannot be undone"})
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Delete profile")
		})
	}
}
