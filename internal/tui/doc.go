// Package tui implements the interactive WebSocket console.
//
// Built on Bubble Tea, it follows the Elm architecture: every screen is a
// model with Init, Update and View, and all screens render through
// RenderApplicationContainer for a consistent header and help footer.
//
// # Screens
//
//   - Discovery: browses mDNS for _ws._tcp and _wss._tcp services, or takes
//     a URL typed by hand
//   - Console: connects, then shows a scrolling transcript above a
//     composer line; text or hex (binary) messages are sent with enter
//
// # Client events
//
// Client callbacks run on the connection's goroutines. A Bridge turns them
// into tea.Msg values which the console drains one at a time, so the model
// is only ever touched by the Bubble Tea event loop:
//
//	bridge := tui.NewBridge(256)
//	c, _ := client.New(cfg, client.WithHandlers(bridge.Handlers(client.Handlers{})))
//	app := tui.NewAppModel(ctx, tui.AppOptions{Conn: c, Bridge: bridge, URL: url})
//	_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
//	bridge.Close()
//
// # Framework Components
//
//   - bubbles/viewport: scrolling transcript
//   - bubbles/textinput: composer and manual URL entry
//   - bubbles/list: discovered endpoints with filtering
//   - bubbles/spinner, bubbles/progress: connect and scan indicators
//   - bubbles/help, bubbles/key: context-aware key bindings
package tui
