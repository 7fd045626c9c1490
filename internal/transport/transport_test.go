package transport

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/wserr"
)

func listen(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)
	return ln, addr.IP.String(), addr.Port
}

func TestDial_SendRecv(t *testing.T) {
	ln, host, port := listen(t)

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 5)
		if _, err := c.Read(buf); err != nil {
			return
		}
		_, _ = c.Write(buf)
		time.Sleep(100 * time.Millisecond)
	}()

	tr, err := NewDialer(Options{}).Dial(context.Background(), host, port, false, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	if ActiveTransports() < 1 {
		t.Error("ActiveTransports() should count the open transport")
	}

	if err := tr.SendAll([]byte("hello")); err != nil {
		t.Fatalf("SendAll() error = %v", err)
	}

	buf := make([]byte, 16)
	got := 0
	deadline := time.Now().Add(2 * time.Second)
	for got < 5 && time.Now().Before(deadline) {
		n, err := tr.RecvSome(buf[got:], 50*time.Millisecond)
		if err != nil {
			t.Fatalf("RecvSome() error = %v", err)
		}
		got += n
	}
	if string(buf[:got]) != "hello" {
		t.Errorf("received %q, want %q", buf[:got], "hello")
	}
}

func TestRecvSome_TimeoutAndEOF(t *testing.T) {
	ln, host, port := listen(t)

	release := make(chan struct{})
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		<-release
		_ = c.Close()
	}()

	tr, err := NewDialer(Options{}).Dial(context.Background(), host, port, false, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	buf := make([]byte, 16)
	n, err := tr.RecvSome(buf, 20*time.Millisecond)
	if n != 0 || err != nil {
		t.Fatalf("RecvSome() on idle connection = %d, %v; want 0, nil", n, err)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err = tr.RecvSome(buf, 50*time.Millisecond)
		if err != nil {
			break
		}
	}
	if !wserr.IsConnectionError(err) {
		t.Errorf("RecvSome() after peer close error = %v, want connection error", err)
	}
}

func TestDial_Refused(t *testing.T) {
	ln, host, port := listen(t)
	_ = ln.Close()

	before := ActiveTransports()
	_, err := NewDialer(Options{}).Dial(context.Background(), host, port, false, time.Second)
	if err == nil {
		t.Fatal("Dial() to a closed port succeeded")
	}
	if !wserr.IsConnectionError(err) && !wserr.IsTimeout(err) {
		t.Errorf("Dial() error type = %v", wserr.TypeOf(err))
	}
	if ActiveTransports() != before {
		t.Error("failed Dial leaked a shared state reference")
	}
}

func TestClose_Idempotent(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	tr := NewConn(a)
	if err := tr.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := tr.SendAll([]byte("x")); !wserr.IsConnectionError(err) {
		t.Errorf("SendAll() after Close error = %v, want connection error", err)
	}
}

func tlsServer(t *testing.T) (*httptest.Server, string, int) {
	t.Helper()
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(ts.Close)
	host, portStr, _ := net.SplitHostPort(ts.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ts, host, port
}

func TestDial_TLS(t *testing.T) {
	ts, host, port := tlsServer(t)

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ts.Certificate().Raw})
	if err := os.WriteFile(caFile, pemBytes, 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("trusted via CA file", func(t *testing.T) {
		d := NewDialer(Options{TLS: config.TLSConfig{CAFile: caFile}})
		tr, err := d.Dial(context.Background(), host, port, true, 2*time.Second)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		_ = tr.Close()
	})

	t.Run("untrusted", func(t *testing.T) {
		_, err := NewDialer(Options{}).Dial(context.Background(), host, port, true, 2*time.Second)
		if !wserr.IsTLSError(err) {
			t.Errorf("Dial() error = %v, want TLS error", err)
		}
	})

	t.Run("insecure skip verify", func(t *testing.T) {
		d := NewDialer(Options{TLS: config.TLSConfig{InsecureSkipVerify: true}})
		tr, err := d.Dial(context.Background(), host, port, true, 2*time.Second)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		_ = tr.Close()
	})
}

func TestNewTLSConfig(t *testing.T) {
	cfg, err := NewTLSConfig("example.com", config.TLSConfig{ServerName: "override.example"}, nil)
	if err != nil {
		t.Fatalf("NewTLSConfig() error = %v", err)
	}
	if cfg.ServerName != "override.example" {
		t.Errorf("ServerName = %q", cfg.ServerName)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x", cfg.MinVersion)
	}

	_, err = NewTLSConfig("example.com", config.TLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")}, nil)
	if !wserr.IsTLSError(err) {
		t.Errorf("missing CA file error = %v, want TLS error", err)
	}
}

func TestSharedState_RefCount(t *testing.T) {
	base := ActiveTransports()

	c1 := acquire()
	c2 := acquire()
	if c1 == nil || c1 != c2 {
		t.Error("acquire() should hand out the same cache while referenced")
	}
	if ActiveTransports() != base+2 {
		t.Errorf("ActiveTransports() = %d, want %d", ActiveTransports(), base+2)
	}
	release()
	release()
	if ActiveTransports() != base {
		t.Errorf("ActiveTransports() = %d, want %d", ActiveTransports(), base)
	}
}
