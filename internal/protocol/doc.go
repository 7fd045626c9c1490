// Package protocol implements the RFC 6455 WebSocket frame codec.
//
// # Frame Format
//
//	 0                   1                   2                   3
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|     Masking-key (0 or 4 bytes) and payload data ...           |
//	+---------------------------------------------------------------+
//
// Frames sent by a client are always masked with a fresh random key;
// frames sent by a server never are. Lengths use the shortest encoding:
// 0-125 inline, up to 65535 in a 16-bit field, otherwise a 64-bit field
// whose most significant bit must be zero.
//
// # Usage Example - Parsing a receive buffer
//
//	for {
//		frame, n, err := protocol.Parse(buf, maxFrameSize)
//		if errors.Is(err, protocol.ErrIncomplete) {
//			break // wait for more bytes
//		}
//		if err != nil {
//			return err // protocol violation, connection must close
//		}
//		buf = buf[n:]
//		handle(frame)
//	}
//
// # Usage Example - Building
//
//	wire, err := protocol.Serialize(protocol.OpcodeText, true, []byte("hello"), true)
//
// ReadFrame is the blocking counterpart of Parse for io.Reader based code
// such as test peers.
package protocol
