// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - key-value helpers (InfoKV, WarnKV, ErrorKV, DebugKV).
//
// Logs go to stderr so that stdout stays free for the output of update jobs
// and for user-facing confirmations. Services accept a context and extract
// the logger from it, so run and job identifiers follow every message.
package logger
