// Package logging provides structured logging for the WebSocket client.
//
// This package wraps a zap logger with convenience functions for the
// logging patterns used throughout the client. Logging is silent unless a
// level is configured, so library users see nothing by default.
//
// # Log Levels
//
//   - Debug: handshake bytes, frame headers, ping/pong
//   - Info: connection lifecycle and state changes
//   - Warn: protocol violations, unexpected peer behavior
//   - Error: failures reported to the application
//
// # Structured Logging
//
//	logging.Info("Handshake accepted",
//	    zap.String("url", u.String()),
//	    zap.String("extensions", ext),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection(url, "dialing")
//	logging.LogStateChange(url, "CONNECTING", "OPEN")
//	logging.LogWebSocketMessage(url, "received", protocol.OpcodeText, payload)
//	logging.LogRawBytes("handshake response", block)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// or leave the level empty and set WSCLIENT_LOG_LEVEL.
package logging
