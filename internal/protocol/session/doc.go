// Package session owns the host side of the serial link.
//
// Ownership boundary:
// - connection lifecycle (connect, read loop, close)
// - inbound pipeline: port bytes -> frame.LineFramer -> protocol.Decode -> handler
// - outbound pipeline: protocol.Encode -> Outbox (single writer) -> port bytes
// - reconnect backoff primitives used by the application supervisor
//
// Exactly one reader runs per Connection. Sends may come from any goroutine;
// the Outbox writes one complete line at a time so lines never interleave.
package session
