package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/protocol"
)

// echoServer answers every message with the same message. A text message
// "close" makes it start the closing handshake instead.
func echoServer(t *testing.T, tls, compression bool) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{EnableCompression: compression}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.EnableWriteCompression(compression)

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && string(data) == "close" {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				continue
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	})

	var srv *httptest.Server
	if tls {
		srv = httptest.NewTLSServer(handler)
	} else {
		srv = httptest.NewServer(handler)
	}
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/echo"
	return srv, url
}

func TestInterop_Echo(t *testing.T) {
	tests := []struct {
		name        string
		tls         bool
		compression bool
	}{
		{name: "plain"},
		{name: "compressed", compression: true},
		{name: "tls", tls: true},
		{name: "tls compressed", tls: true, compression: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, url := echoServer(t, tt.tls, tt.compression)

			cfg := config.Default()
			cfg.Compression = tt.compression
			cfg.TLS.InsecureSkipVerify = tt.tls

			rec := newRecorder()
			c := newTestClient(t, cfg, rec.handlers())
			require.NoError(t, c.Connect(context.Background(), url))

			_, negotiated := c.Negotiated()
			assert.Equal(t, tt.compression, negotiated)

			large := strings.Repeat("0123456789abcdef", 8<<10)
			for _, msg := range []string{"hello", "", "héllo wörld", large} {
				require.NoError(t, c.Send(msg))
				assert.Equal(t, msg, rec.nextText(t))
			}

			blob := make([]byte, 70000)
			for i := range blob {
				blob[i] = byte(i * 7)
			}
			require.NoError(t, c.SendBinary(blob))
			select {
			case got := <-rec.binaries:
				assert.Equal(t, blob, got)
			case <-time.After(waitTimeout):
				t.Fatal("no binary echo")
			}

			require.NoError(t, c.Ping([]byte("still there?")))
			require.NoError(t, c.Disconnect())
			assert.Equal(t, StateClosed, c.State())
			assert.Len(t, rec.errs, 0)
		})
	}
}

func TestInterop_ServerInitiatedClose(t *testing.T) {
	_, url := echoServer(t, false, false)

	rec := newRecorder()
	var closeCode int
	h := rec.handlers()
	h.OnFrame = func(dir Direction, f *protocol.Frame) {
		if dir == Inbound && f.Opcode == protocol.OpcodeClose {
			closeCode, _, _ = protocol.ParseClosePayload(f.Payload)
		}
	}
	c := newTestClient(t, config.Default(), h)
	require.NoError(t, c.Connect(context.Background(), url))

	require.NoError(t, c.Send("close"))
	rec.waitClosed(t)

	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, protocol.CloseNormal, closeCode)
	assert.EqualValues(t, 1, rec.closes.Load())
	assert.Len(t, rec.errs, 0)
}

func TestInterop_UntrustedCertificate(t *testing.T) {
	_, url := echoServer(t, true, false)

	rec := newRecorder()
	c := newTestClient(t, config.Default(), rec.handlers())

	err := c.Connect(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, err, rec.nextError(t))
}
