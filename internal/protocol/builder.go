package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/muurk/wsclient/internal/wserr"
)

// Close status codes (RFC 6455 section 7.4.1)
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	CloseNoStatus        = 1005 // never sent on the wire
	CloseAbnormal        = 1006 // never sent on the wire
	CloseInvalidPayload  = 1007
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009
	CloseInternalError   = 1011
)

// NewMaskKey returns a fresh masking key from crypto/rand.
func NewMaskKey() ([4]byte, error) {
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("failed to generate mask key: %w", err)
	}
	return key, nil
}

// Serialize encodes a single frame. When masked is true a fresh random key
// is used; payload itself is never modified.
func Serialize(opcode byte, fin bool, payload []byte, masked bool) ([]byte, error) {
	f := &Frame{FIN: fin, Opcode: opcode, Masked: masked, Payload: payload}
	if masked {
		key, err := NewMaskKey()
		if err != nil {
			return nil, err
		}
		f.MaskKey = key
	}
	return AppendFrame(nil, f), nil
}

// AppendFrame appends the wire encoding of f to dst. The length field is
// taken from len(f.Payload); when f.Masked is set f.MaskKey is applied.
//
// Header layout:
//
//	byte 0    FIN | RSV1 | RSV2 | RSV3 | opcode(4)
//	byte 1    MASK | len7
//	+2 / +8   extended length, big endian (len7 == 126 / 127)
//	+4        mask key
func AppendFrame(dst []byte, f *Frame) []byte {
	var b0 byte
	if f.FIN {
		b0 |= 0x80
	}
	if f.RSV1 {
		b0 |= 0x40
	}
	if f.RSV2 {
		b0 |= 0x20
	}
	if f.RSV3 {
		b0 |= 0x10
	}
	b0 |= f.Opcode & 0x0F

	var maskBit byte
	if f.Masked {
		maskBit = 0x80
	}

	n := len(f.Payload)
	switch {
	case n < 126:
		dst = append(dst, b0, maskBit|byte(n))
	case n <= 0xFFFF:
		dst = append(dst, b0, maskBit|126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, b0, maskBit|127)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}

	if !f.Masked {
		return append(dst, f.Payload...)
	}

	dst = append(dst, f.MaskKey[:]...)
	start := len(dst)
	dst = append(dst, f.Payload...)
	maskInPlace(dst[start:], f.MaskKey)
	return dst
}

// BuildClosePayload encodes a close frame body: a 2-byte status code
// followed by an optional UTF-8 reason, truncated to fit a control frame.
// Code 0 produces an empty body.
func BuildClosePayload(code int, reason string) []byte {
	if code == 0 {
		return nil
	}
	if len(reason) > MaxControlPayload-2 {
		reason = reason[:MaxControlPayload-2]
		for !utf8.ValidString(reason) {
			reason = reason[:len(reason)-1]
		}
	}
	buf := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(buf, uint16(code))
	return append(buf, reason...)
}

// ParseClosePayload decodes a close frame body. An empty body yields
// CloseNoStatus.
func ParseClosePayload(payload []byte) (int, string, error) {
	switch len(payload) {
	case 0:
		return CloseNoStatus, "", nil
	case 1:
		return 0, "", wserr.New(wserr.ErrTypeFrame, "close payload of 1 byte")
	}

	code := int(binary.BigEndian.Uint16(payload))
	if !ValidCloseCode(code) {
		return 0, "", wserr.Newf(wserr.ErrTypeFrame, "invalid close code %d", code)
	}
	reason := payload[2:]
	if !utf8.Valid(reason) {
		return 0, "", wserr.New(wserr.ErrTypeFrame, "close reason is not valid UTF-8")
	}
	return code, string(reason), nil
}

// ValidCloseCode reports whether code may be sent in a close frame.
func ValidCloseCode(code int) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1014:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}
