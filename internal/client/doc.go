// Package client implements a WebSocket (RFC 6455) client connection.
//
// A Client moves through four states:
//
//	CLOSED -> CONNECTING -> OPEN -> CLOSING -> CLOSED
//
// Connect performs the opening handshake synchronously and, once OPEN,
// starts a single reader goroutine. The reader polls the transport with a
// short timeout so that keepalive pings and Disconnect are noticed
// promptly; it reassembles fragmented messages, answers pings, echoes the
// peer's close frame and delivers messages to the Handlers in order.
//
// Outbound frames are always masked with a fresh key and written under a
// single send lock, so concurrent Send calls never interleave on the wire.
//
// Example:
//
//	c, err := client.New(config.Default())
//	if err != nil {
//	    return err
//	}
//	c.SetOnText(func(s string) { fmt.Println(s) })
//	if err := c.Connect(ctx, "wss://echo.example.com/ws"); err != nil {
//	    return err
//	}
//	defer c.Disconnect()
//	return c.Send("hello")
package client
