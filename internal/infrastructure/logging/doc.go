// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output with lowercase levels for machine parsing
//   - Development: colored console output with stack traces enabled
//
// Log Levels:
//   - Debug: verbose debugging information
//   - Info: general informational messages
//   - Warn: warning messages
//   - Error: error messages
//   - Fatal: fatal errors (exits process)
//
// Features:
//   - Level parsed from configuration text
//   - Structured fields for context
//   - Configurable output paths
//   - No-op constructor for tests
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Error("Failed to connect", zap.Error(err))
package logging
