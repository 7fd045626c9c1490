// Package compress implements the permessage-deflate WebSocket extension
// (RFC 7692) on top of github.com/klauspost/compress/flate.
//
// A compressed message is a raw DEFLATE stream ending in a sync flush whose
// final 0x00 0x00 0xff 0xff is removed before framing. The first frame of
// such a message carries RSV1.
package compress
