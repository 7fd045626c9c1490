package wserr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantMsg  string
	}{
		{
			name:     "timeout",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: &timeoutError{}},
			wantType: ErrTypeTimeout,
			wantMsg:  "timed out",
		},
		{
			name:     "wrapped timeout",
			err:      fmt.Errorf("read: %w", &net.OpError{Op: "read", Net: "tcp", Err: &timeoutError{}}),
			wantType: ErrTypeTimeout,
			wantMsg:  "timed out",
		},
		{
			name:     "context deadline",
			err:      context.DeadlineExceeded,
			wantType: ErrTypeTimeout,
			wantMsg:  "timed out",
		},
		{
			name:     "context canceled",
			err:      context.Canceled,
			wantType: ErrTypeConnection,
			wantMsg:  "canceled",
		},
		{
			name:     "connection refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			wantType: ErrTypeConnection,
			wantMsg:  "connection refused",
		},
		{
			name:     "host unreachable",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: syscall.EHOSTUNREACH},
			wantType: ErrTypeConnection,
			wantMsg:  "host unreachable",
		},
		{
			name:     "dns",
			err:      &net.DNSError{Err: "no such host", Name: "nowhere.invalid"},
			wantType: ErrTypeConnection,
			wantMsg:  "nowhere.invalid",
		},
		{
			name:     "eof",
			err:      fmt.Errorf("read: %w", io.EOF),
			wantType: ErrTypeConnection,
			wantMsg:  "closed by peer",
		},
		{
			name:     "tls",
			err:      errors.New("tls: handshake failure"),
			wantType: ErrTypeTLS,
			wantMsg:  "TLS failure",
		},
		{
			name:     "already classified",
			err:      New(ErrTypeHandshake, "bad accept"),
			wantType: ErrTypeHandshake,
			wantMsg:  "bad accept",
		},
		{
			name:     "generic",
			err:      errors.New("something odd"),
			wantType: ErrTypeConnection,
			wantMsg:  "dial",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err, "dial")
			if got == nil {
				t.Fatal("ClassifyNetworkError() = nil")
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if !strings.Contains(got.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestClassifyNetworkError_Nil(t *testing.T) {
	if got := ClassifyNetworkError(nil, "dial"); got != nil {
		t.Errorf("ClassifyNetworkError(nil) = %v, want nil", got)
	}
}

func TestTypeOf_ThroughWrapping(t *testing.T) {
	inner := New(ErrTypeFrame, "reserved opcode 0x3")
	wrapped := fmt.Errorf("dispatch: %w", inner)

	if got := TypeOf(wrapped); got != ErrTypeFrame {
		t.Errorf("TypeOf() = %v, want %v", got, ErrTypeFrame)
	}
	if !IsFrameError(wrapped) {
		t.Error("IsFrameError() = false, want true")
	}
	if IsTimeout(wrapped) {
		t.Error("IsTimeout() = true, want false")
	}
	if got := TypeOf(errors.New("plain")); got != ErrTypeUnknown {
		t.Errorf("TypeOf(plain) = %v, want %v", got, ErrTypeUnknown)
	}
	if Is(nil, ErrTypeUnknown) {
		t.Error("Is(nil, ...) = true, want false")
	}
}

func TestError_Format(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Wrap(ErrTypeConnection, "send failed", cause)

	want := "Connection Error: send failed (caused by: broken pipe)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	plain := Newf(ErrTypeInvalidState, "connection is %s", "CLOSED")
	if plain.Error() != "Invalid State: connection is CLOSED" {
		t.Errorf("Error() = %q", plain.Error())
	}
}

func TestHint(t *testing.T) {
	if Hint(New(ErrTypeTimeout, "x")) == "" {
		t.Error("Hint(timeout) is empty")
	}
	if Hint(New(ErrTypeInvalidState, "x")) != "" {
		t.Error("Hint(invalid state) should be empty")
	}
	if got := ShortMessage(Wrap(ErrTypeTLS, "handshake", errors.New("x509"))); got != "TLS Error: handshake" {
		t.Errorf("ShortMessage() = %q", got)
	}
}
