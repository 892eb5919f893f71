// Package audit implements async event dispatching for token lifecycle operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: audit record with timestamp, type, subject, token id, IP and metadata.
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the Engine does.
package audit
