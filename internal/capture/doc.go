// Package capture records WebSocket frames for later analysis.
//
// A Recorder receives every frame from the client's OnFrame hook and writes
// it to one or more sinks:
//
//   - JSONLSink: one JSON object per line in capture-<timestamp>.jsonl
//   - SQLiteSink: a "frames" table that accumulates across sessions
//
// Payloads are stored unmasked and, for outbound messages, before
// compression, so captures show what the application actually sent.
package capture
