package capture

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wsclient/internal/protocol"
)

type failingSink struct{ writes int }

func (s *failingSink) Write(Record) error { s.writes++; return errors.New("disk full") }
func (s *failingSink) Close() error       { return errors.New("close failed") }

func TestNewRecord(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &protocol.Frame{FIN: true, RSV1: true, Opcode: protocol.OpcodeText, Masked: true, Payload: []byte("hi\x01")}

	r := NewRecord(ts, 7, "ws://h/", "outbound", f)

	assert.Equal(t, ts, r.Timestamp)
	assert.Equal(t, 7, r.Seq)
	assert.Equal(t, "text", r.FrameType)
	assert.Equal(t, byte(protocol.OpcodeText), r.Opcode)
	assert.True(t, r.FIN && r.RSV1 && r.Masked)
	assert.Equal(t, 3, r.PayloadLen)
	assert.Equal(t, "686901", r.PayloadHex)
	assert.Equal(t, "hi.", r.PayloadASCII)

	p, err := r.Payload()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi\x01"), p)
}

func TestJSONLSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	sink, err := OpenJSONL(dir, time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "capture-20250301-123045.jsonl"), sink.Path())

	rec := NewRecorder("ws://echo/", sink)
	rec.Observe("outbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeText, Masked: true, Payload: []byte("ping?")})
	rec.Observe("inbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeBinary, Payload: []byte{0, 1, 2}})
	require.NoError(t, rec.Close())
	assert.Equal(t, 2, rec.Count())

	assert.ErrorIs(t, sink.Write(Record{}), os.ErrClosed)
	assert.NoError(t, sink.Close(), "second Close")

	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"payload_hex":"70696e673f"`)

	records, err := ReadJSONL(sink.Path())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Seq)
	assert.Equal(t, "outbound", records[0].Direction)
	assert.Equal(t, "ping?", records[0].PayloadASCII)
	assert.Equal(t, 2, records[1].Seq)
	assert.Equal(t, "binary", records[1].FrameType)
	assert.Equal(t, "ws://echo/", records[1].URL)
}

func TestReadJSONL_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n\nnot json\n"), 0644))

	_, err := ReadJSONL(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.jsonl:3")

	_, err = ReadJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.db")
	sink, err := OpenSQLite(path)
	require.NoError(t, err)

	a := NewRecorder("ws://a/", sink)
	a.Observe("outbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeText, Masked: true, Payload: []byte("one")})
	a.Observe("inbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeClose, Payload: protocol.BuildClosePayload(1000, "")})
	NewRecorder("ws://b/", sink).Observe("inbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodePong})

	all, err := sink.Records("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := sink.Records("ws://a/")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, "one", onlyA[0].PayloadASCII)
	assert.True(t, onlyA[0].Masked)
	assert.Equal(t, "close", onlyA[1].FrameType)
	assert.Equal(t, "03e8", onlyA[1].PayloadHex)
	assert.False(t, onlyA[1].Timestamp.IsZero())
	require.NoError(t, sink.Close())

	// reopening keeps earlier sessions
	sink, err = OpenSQLite(path)
	require.NoError(t, err)
	defer sink.Close()
	all, err = sink.Records("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecorder_SinkErrors(t *testing.T) {
	bad := &failingSink{}
	rec := NewRecorder("ws://x/", bad)

	rec.Observe("inbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeText})
	rec.Observe("inbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeText})

	assert.Equal(t, 2, bad.writes)
	assert.Equal(t, 2, rec.Count())
	assert.EqualError(t, rec.Close(), "close failed")
}

type memorySink struct{ records []Record }

func (s *memorySink) Write(r Record) error { s.records = append(s.records, r); return nil }
func (s *memorySink) Close() error         { return nil }

func TestRecorder_SetURL(t *testing.T) {
	mem := &memorySink{}
	rec := NewRecorder("", mem)

	rec.Observe("outbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeText})
	rec.SetURL("ws://picked.local:8080/")
	rec.Observe("inbound", &protocol.Frame{FIN: true, Opcode: protocol.OpcodeText})

	require.Len(t, mem.records, 2)
	assert.Empty(t, mem.records[0].URL)
	assert.Equal(t, "ws://picked.local:8080/", mem.records[1].URL)
	assert.Equal(t, 2, mem.records[1].Seq)
}
