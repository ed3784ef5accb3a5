// Package server provides the HTTP surface over the shell engine.
//
// Routes:
//   - GET  /          liveness
//   - GET  /health    engine state summary
//   - GET  /frame     current frame snapshot
//   - GET  /jobs      background process table
//   - GET  /metrics   Prometheus metrics
//   - GET  /stream    WebSocket keystroke-in / frame-out stream
//   - POST /execute   submit a command line
//   - POST /pty/key   logical key for the open PTY session
//   - POST /interrupt Ctrl+C equivalent
//   - POST /autocomplete complete the word under the cursor
//
// The middleware stack is recovery, request id, request logging, CORS and
// request metrics.
package server
