package protocol

import (
	"fmt"
	"io"
)

// WebSocket frame opcodes
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

// MaxControlPayload is the largest payload a control frame may carry.
const MaxControlPayload = 125

// Frame represents a WebSocket frame
type Frame struct {
	FIN     bool
	RSV1    bool // per-message compressed (permessage-deflate)
	RSV2    bool
	RSV3    bool
	Opcode  byte
	Masked  bool
	Length  uint64
	MaskKey [4]byte
	Payload []byte // always unmasked
	Raw     []byte // Original frame bytes for debugging (ReadFrame only)
}

// ReadFrame reads one WebSocket frame from r, blocking until it is complete.
// It applies the same validation as Parse; maxPayload <= 0 disables the
// length limit.
func ReadFrame(r io.Reader, maxPayload int64) (*Frame, error) {
	// Read first two bytes
	raw := make([]byte, 2, 14)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	// Extended payload length and mask key
	extra := extendedHeaderSize(raw[1])
	if extra > 0 {
		raw = raw[:2+extra]
		if _, err := io.ReadFull(r, raw[2:]); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	frame, headerLen, err := decodeHeader(raw, maxPayload)
	if err != nil {
		return nil, err
	}

	frame.Raw = raw[:headerLen]
	if frame.Length > 0 {
		payload := make([]byte, frame.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		frame.Raw = append(frame.Raw, payload...)

		if frame.Masked {
			frame.Payload = UnmaskPayload(payload, frame.MaskKey)
		} else {
			frame.Payload = payload
		}
	}

	return frame, nil
}

// UnmaskPayload applies the XOR mask to payload and returns a new slice.
// Masking is symmetric so the same function masks outgoing payloads.
func UnmaskPayload(payload []byte, maskKey [4]byte) []byte {
	unmasked := make([]byte, len(payload))
	for i := 0; i < len(payload); i++ {
		unmasked[i] = payload[i] ^ maskKey[i%4]
	}
	return unmasked
}

// maskInPlace is UnmaskPayload without the allocation.
func maskInPlace(b []byte, maskKey [4]byte) {
	for i := range b {
		b[i] ^= maskKey[i%4]
	}
}

// IsControl reports whether opcode is a control opcode (close, ping, pong).
func IsControl(opcode byte) bool {
	return opcode&0x8 != 0
}

// IsData reports whether opcode starts or continues a data message.
func IsData(opcode byte) bool {
	return opcode == OpcodeContinuation || opcode == OpcodeText || opcode == OpcodeBinary
}

// OpcodeName returns a human-readable opcode name
func OpcodeName(opcode byte) string {
	switch opcode {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", opcode)
	}
}

// OpcodeString returns a human-readable opcode name
func (f *Frame) OpcodeString() string {
	return OpcodeName(f.Opcode)
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, RSV1=%v, Length=%d}",
		f.FIN, f.OpcodeString(), f.Masked, f.RSV1, f.Length)
}
