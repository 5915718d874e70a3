// Package protocol owns the wire contract between the host and the master
// controller.
//
// Ownership boundary:
// - message shape (method + positional or named params)
// - line codec (one JSON object per line, no trailing newline)
// - method and parameter names shared with the firmware
//
// Framing lives in protocol/frame; connection lifecycle in protocol/session.
package protocol
