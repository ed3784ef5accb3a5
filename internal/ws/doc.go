// Package ws provides the WebSocket surface for the rendering collaborator.
//
// One connection carries both directions: the client sends command lines,
// logical keys, interrupts and autocomplete requests; the server pushes a
// frame snapshot whenever the visible state changes.
//
// Message Types (Client → Server):
//   - execute: submit a command line
//   - key: logical key for the open PTY session
//   - interrupt: Ctrl+C equivalent
//   - autocomplete: complete the word under the cursor
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - system: connection established
//   - frame: engine frame snapshot
//   - autocomplete: completion result
//   - error: request failed
//   - quit: engine is shutting down
package ws
