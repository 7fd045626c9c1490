// Package ui renders the styled, non-interactive output of the wsclient
// commands.
//
// Commands that run once and exit (send, discover, profile, capture) print
// through a Printer: a Header describing what is about to happen, transcript
// lines while it happens, and a Result box at the end. Failure results pull
// their troubleshooting text from the error's category (see wserr.Hint).
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("WebSocket Send", "wsclient send", []ui.Param{{Key: "URL", Value: url}})
//	if err := c.Connect(ctx, url); err != nil {
//	    p.PrintFailure("Connection failed", err)
//	    return err
//	}
//
// # Logging Integration
//
// zap logging is controlled by the WSCLIENT_LOG_LEVEL environment variable
// and goes to stderr. When unset, logging is silent and only the curated
// output below is shown.
//
// The interactive console lives in package tui.
package ui
