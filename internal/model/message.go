// Package model defines the core data structures used throughout logflux.
package model

// Well-known message keys.
const (
	// TimestampKey carries the point timestamp, passed through verbatim.
	TimestampKey = "@timestamp"

	// MessageKey holds the free-text body of a legacy-format message.
	MessageKey = "message"
)

// Message is a normalized log message: a flat string-to-string mapping
// produced by the normalizer from one received datagram. It is never
// mutated after normalization and is discarded once points are built.
type Message map[string]string

// Timestamp returns the @timestamp value and whether it is present.
func (m Message) Timestamp() (string, bool) {
	ts, ok := m[TimestampKey]
	return ts, ok
}
