package capture

import (
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/protocol"
)

// Record is one captured frame.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Seq          int       `json:"seq"`
	URL          string    `json:"url"`
	Direction    string    `json:"direction"`
	FrameType    string    `json:"frame_type"`
	Opcode       byte      `json:"opcode"`
	FIN          bool      `json:"fin"`
	RSV1         bool      `json:"rsv1"`
	Masked       bool      `json:"masked"`
	PayloadLen   int       `json:"payload_length"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadASCII string    `json:"payload_ascii"`
}

// Payload decodes PayloadHex.
func (r Record) Payload() ([]byte, error) {
	return hex.DecodeString(r.PayloadHex)
}

// NewRecord describes f as seen at ts.
func NewRecord(ts time.Time, seq int, url, direction string, f *protocol.Frame) Record {
	return Record{
		Timestamp:    ts,
		Seq:          seq,
		URL:          url,
		Direction:    direction,
		FrameType:    f.OpcodeString(),
		Opcode:       f.Opcode,
		FIN:          f.FIN,
		RSV1:         f.RSV1,
		Masked:       f.Masked,
		PayloadLen:   len(f.Payload),
		PayloadHex:   hex.EncodeToString(f.Payload),
		PayloadASCII: toASCII(f.Payload),
	}
}

// Sink stores records.
type Sink interface {
	Write(r Record) error
	Close() error
}

// Recorder numbers frames and fans them out to sinks. Sink failures are
// logged, never returned, so a broken capture cannot break a connection.
type Recorder struct {
	url   string
	sinks []Sink
	now   func() time.Time

	mu  sync.Mutex
	seq int
}

// NewRecorder creates a recorder for frames exchanged with url.
func NewRecorder(url string, sinks ...Sink) *Recorder {
	return &Recorder{url: url, sinks: sinks, now: time.Now}
}

// Observe records one frame. It has the shape of a client OnFrame hook
// once the direction is converted to a string.
func (r *Recorder) Observe(direction string, f *protocol.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rec := NewRecord(r.now(), r.seq, r.url, direction, f)
	for _, s := range r.sinks {
		if err := s.Write(rec); err != nil {
			logging.Error("Failed to write capture record",
				zap.Int("seq", rec.Seq),
				zap.Error(err),
			)
		}
	}
}

// SetURL changes the URL stamped on later records. Interactive sessions
// only learn the URL once an endpoint has been picked.
func (r *Recorder) SetURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.url = url
}

// Count returns how many frames have been observed.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Close closes every sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
