package compress

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/muurk/wsclient/internal/wserr"
)

// ExtensionName is the Sec-WebSocket-Extensions token for RFC 7692.
const ExtensionName = "permessage-deflate"

const (
	// DefaultLevel matches the zlib default.
	DefaultLevel = 6
	// windowSize is the LZ77 window carried between messages when the
	// server keeps its compression context.
	windowSize = 32 << 10
)

// deflateTail terminates a message for the decompressor: the sync-flush
// marker stripped by the sender, then an empty final stored block so the
// reader stops with io.EOF.
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff, 0x01, 0x00, 0x00, 0xff, 0xff}

// Codec compresses and decompresses whole message payloads.
type Codec interface {
	Name() string
	Compress(p []byte, level int) ([]byte, error)
	// Decompress inflates p, failing when the output would exceed limit
	// bytes (limit <= 0 disables the check).
	Decompress(p []byte, limit int64) ([]byte, error)
}

// Params are the negotiated permessage-deflate parameters.
type Params struct {
	ServerNoContextTakeover bool
	ClientNoContextTakeover bool
	ServerMaxWindowBits     int // 0 when not negotiated
	ClientMaxWindowBits     int // 0 when not negotiated
}

// String renders the parameters the way they appear in the extension header.
func (p Params) String() string {
	s := ExtensionName
	if p.ServerNoContextTakeover {
		s += "; server_no_context_takeover"
	}
	if p.ClientNoContextTakeover {
		s += "; client_no_context_takeover"
	}
	if p.ServerMaxWindowBits != 0 {
		s += "; server_max_window_bits=" + strconv.Itoa(p.ServerMaxWindowBits)
	}
	if p.ClientMaxWindowBits != 0 {
		s += "; client_max_window_bits=" + strconv.Itoa(p.ClientMaxWindowBits)
	}
	return s
}

// ParseParams validates extension parameters returned by the server.
func ParseParams(params map[string]string) (Params, error) {
	var p Params
	for name, value := range params {
		switch name {
		case "server_no_context_takeover":
			p.ServerNoContextTakeover = true
		case "client_no_context_takeover":
			p.ClientNoContextTakeover = true
		case "server_max_window_bits", "client_max_window_bits":
			bits := 15
			if value != "" {
				n, err := strconv.Atoi(value)
				if err != nil || n < 8 || n > 15 {
					return Params{}, wserr.Newf(wserr.ErrTypeCompression, "invalid %s value %q", name, value)
				}
				bits = n
			}
			if name == "server_max_window_bits" {
				p.ServerMaxWindowBits = bits
			} else {
				p.ClientMaxWindowBits = bits
			}
		default:
			return Params{}, wserr.Newf(wserr.ErrTypeCompression, "unknown %s parameter %q", ExtensionName, name)
		}
	}
	return p, nil
}

// Deflate is the permessage-deflate Codec.
//
// Outgoing messages are always compressed without context takeover, which
// every server must accept. Incoming messages keep the last 32 KiB of output
// as a dictionary unless the server agreed to server_no_context_takeover.
type Deflate struct {
	params Params

	wmu    sync.Mutex
	fw     *flate.Writer
	fwLvl  int
	outBuf bytes.Buffer

	rmu    sync.Mutex
	fr     io.ReadCloser
	window []byte
}

// NewDeflate creates a codec for the negotiated parameters.
func NewDeflate(params Params) *Deflate {
	return &Deflate{params: params}
}

// Name returns the extension token.
func (d *Deflate) Name() string {
	return ExtensionName
}

// Params returns the negotiated parameters.
func (d *Deflate) Params() Params {
	return d.params
}

// Compress deflates p as one message and strips the trailing sync marker.
func (d *Deflate) Compress(p []byte, level int) ([]byte, error) {
	d.wmu.Lock()
	defer d.wmu.Unlock()

	d.outBuf.Reset()
	if d.fw == nil || d.fwLvl != level {
		fw, err := flate.NewWriter(&d.outBuf, level)
		if err != nil {
			return nil, wserr.Wrap(wserr.ErrTypeCompression, fmt.Sprintf("invalid compression level %d", level), err)
		}
		d.fw, d.fwLvl = fw, level
	} else {
		d.fw.Reset(&d.outBuf)
	}

	if _, err := d.fw.Write(p); err != nil {
		return nil, wserr.Wrap(wserr.ErrTypeCompression, "deflate write failed", err)
	}
	if err := d.fw.Flush(); err != nil {
		return nil, wserr.Wrap(wserr.ErrTypeCompression, "deflate flush failed", err)
	}

	out := d.outBuf.Bytes()
	out = bytes.TrimSuffix(out, deflateTail[:4])
	return append([]byte(nil), out...), nil
}

// Decompress inflates one message.
func (d *Deflate) Decompress(p []byte, limit int64) ([]byte, error) {
	d.rmu.Lock()
	defer d.rmu.Unlock()

	input := io.MultiReader(bytes.NewReader(p), bytes.NewReader(deflateTail))

	var dict []byte
	if !d.params.ServerNoContextTakeover {
		dict = d.window
	}

	if d.fr == nil {
		d.fr = flate.NewReaderDict(input, dict)
	} else if err := d.fr.(flate.Resetter).Reset(input, dict); err != nil {
		return nil, wserr.Wrap(wserr.ErrTypeCompression, "inflate reset failed", err)
	}

	var r io.Reader = d.fr
	if limit > 0 {
		r = io.LimitReader(d.fr, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, wserr.Wrap(wserr.ErrTypeCompression, "corrupt deflate stream", err)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, wserr.Newf(wserr.ErrTypeCompression, "inflated message exceeds %d bytes", limit)
	}

	if !d.params.ServerNoContextTakeover {
		d.window = appendWindow(d.window, out)
	}
	return out, nil
}

// appendWindow keeps the most recent windowSize bytes of history.
func appendWindow(window, out []byte) []byte {
	if len(out) >= windowSize {
		return append(window[:0], out[len(out)-windowSize:]...)
	}
	if excess := len(window) + len(out) - windowSize; excess > 0 {
		window = append(window[:0], window[excess:]...)
	}
	return append(window, out...)
}
