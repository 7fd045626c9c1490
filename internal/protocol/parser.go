package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/muurk/wsclient/internal/wserr"
)

// ErrIncomplete is returned by Parse when the buffer does not yet hold a
// whole frame. It is recoverable: append more bytes and call Parse again.
var ErrIncomplete = errors.New("incomplete frame")

// ErrTooLarge is wrapped by the FrameError returned for a frame whose
// declared length exceeds the caller's limit.
var ErrTooLarge = errors.New("frame too large")

// extendedHeaderSize returns how many header bytes follow the first two,
// derived from the second header byte alone.
func extendedHeaderSize(b1 byte) int {
	n := 0
	switch b1 & 0x7F {
	case 126:
		n = 2
	case 127:
		n = 8
	}
	if b1&0x80 != 0 {
		n += 4
	}
	return n
}

// decodeHeader decodes and validates the frame header at the start of buf.
// The returned frame carries everything except the payload; headerLen is the
// header size in bytes. ErrIncomplete is returned while header bytes are
// missing. The length limit is checked as soon as the length is known so a
// hostile peer cannot make the caller buffer an oversized payload.
func decodeHeader(buf []byte, maxPayload int64) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}

	b0, b1 := buf[0], buf[1]
	frame := &Frame{
		FIN:    b0&0x80 != 0,
		RSV1:   b0&0x40 != 0,
		RSV2:   b0&0x20 != 0,
		RSV3:   b0&0x10 != 0,
		Opcode: b0 & 0x0F,
		Masked: b1&0x80 != 0,
	}

	if frame.RSV2 || frame.RSV3 {
		return nil, 0, wserr.New(wserr.ErrTypeFrame, "reserved bits RSV2/RSV3 set")
	}
	switch frame.Opcode {
	case OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
	default:
		return nil, 0, wserr.Newf(wserr.ErrTypeFrame, "reserved opcode 0x%X", frame.Opcode)
	}

	pos := 2
	switch l := b1 & 0x7F; l {
	case 126:
		if len(buf) < pos+2 {
			return nil, 0, ErrIncomplete
		}
		frame.Length = uint64(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
		if frame.Length < 126 {
			return nil, 0, wserr.Newf(wserr.ErrTypeFrame, "non-minimal 16-bit length %d", frame.Length)
		}
	case 127:
		if len(buf) < pos+8 {
			return nil, 0, ErrIncomplete
		}
		frame.Length = binary.BigEndian.Uint64(buf[pos:])
		pos += 8
		if frame.Length&(1<<63) != 0 {
			return nil, 0, wserr.New(wserr.ErrTypeFrame, "64-bit length has its most significant bit set")
		}
		if frame.Length <= 0xFFFF {
			return nil, 0, wserr.Newf(wserr.ErrTypeFrame, "non-minimal 64-bit length %d", frame.Length)
		}
	default:
		frame.Length = uint64(l)
	}

	if IsControl(frame.Opcode) {
		if !frame.FIN {
			return nil, 0, wserr.Newf(wserr.ErrTypeFrame, "fragmented %s frame", frame.OpcodeString())
		}
		if frame.Length > MaxControlPayload {
			return nil, 0, wserr.Newf(wserr.ErrTypeFrame, "%s frame payload %d exceeds %d bytes",
				frame.OpcodeString(), frame.Length, MaxControlPayload)
		}
	}

	if maxPayload > 0 && frame.Length > uint64(maxPayload) {
		return nil, 0, wserr.Wrap(wserr.ErrTypeFrame,
			fmt.Sprintf("frame payload %d exceeds limit of %d bytes", frame.Length, maxPayload), ErrTooLarge)
	}

	if frame.Masked {
		if len(buf) < pos+4 {
			return nil, 0, ErrIncomplete
		}
		copy(frame.MaskKey[:], buf[pos:pos+4])
		pos += 4
	}

	return frame, pos, nil
}

// Parse decodes one frame from the front of buf and reports how many bytes
// it consumed. It returns ErrIncomplete when buf holds only part of a frame
// and a Frame error for protocol violations, including a declared payload
// length above maxPayload (maxPayload <= 0 disables the limit).
//
// The returned payload is a copy, so the caller may discard or reuse buf.
func Parse(buf []byte, maxPayload int64) (*Frame, int, error) {
	frame, headerLen, err := decodeHeader(buf, maxPayload)
	if err != nil {
		return nil, 0, err
	}

	// Length is bounded by maxPayload or by the 63-bit check above, but a
	// frame claiming more than the buffer can ever hold is still incomplete.
	if uint64(len(buf)-headerLen) < frame.Length {
		return nil, 0, ErrIncomplete
	}

	end := headerLen + int(frame.Length)
	frame.Payload = make([]byte, frame.Length)
	copy(frame.Payload, buf[headerLen:end])
	if frame.Masked {
		maskInPlace(frame.Payload, frame.MaskKey)
	}

	return frame, end, nil
}
