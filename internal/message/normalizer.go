// Package message converts raw datagram payloads into structured messages,
// auto-detecting the wire format on first use.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/logflux/internal/model"
)

// Format identifies the wire encoding of incoming messages.
type Format int32

const (
	// FormatAuto means no format has been committed yet; the first
	// successfully processed message decides.
	FormatAuto Format = iota
	FormatJSON
	FormatLegacy
)

// ParseFormat maps a configured format name to a Format. An empty name
// selects auto-detection.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "legacy":
		return FormatLegacy, nil
	default:
		return FormatAuto, fmt.Errorf("unknown message format: %s", name)
	}
}

// Normalizer turns raw payloads into Messages. The detected format is a
// single-assignment cell: once committed it stays fixed for the life of
// the process, even if a later payload does not parse under it. Safe for
// concurrent use.
type Normalizer struct {
	format atomic.Int32
	logger logger.ILogger
}

// NewNormalizer creates a normalizer. FormatAuto defers the decision to
// the first message.
func NewNormalizer(format Format, log logger.ILogger) *Normalizer {
	n := &Normalizer{logger: log.SubLogger("Normalizer")}
	n.format.Store(int32(format))
	return n
}

// Format returns the currently committed format.
func (n *Normalizer) Format() Format {
	return Format(n.format.Load())
}

// Normalize parses one raw payload into a Message. Under FormatAuto the
// first payload commits the format: a successful JSON parse commits JSON
// and is used directly; a JSON failure commits legacy and the same payload
// is re-parsed with the legacy parser. Concurrent first messages race on a
// compare-and-swap; the loser adopts whichever format won.
func (n *Normalizer) Normalize(raw []byte) (model.Message, error) {
	switch Format(n.format.Load()) {
	case FormatJSON:
		return parseJSON(raw)
	case FormatLegacy:
		return parseLegacy(raw)
	}

	msg, err := parseJSON(raw)
	if err == nil {
		if n.format.CompareAndSwap(int32(FormatAuto), int32(FormatJSON)) {
			n.logger.Info("first message appears to be JSON format, setting format to JSON")
		}
	} else {
		if n.format.CompareAndSwap(int32(FormatAuto), int32(FormatLegacy)) {
			n.logger.Info("first message does not appear to be JSON format, setting format to legacy")
		}
	}

	// A racer may have committed the other format; re-parse under the
	// committed one so behavior matches every later message.
	switch Format(n.format.Load()) {
	case FormatJSON:
		if err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return parseLegacy(raw)
	}
}

// parseJSON decodes the payload as a single JSON object. The object must
// be the entire payload; trailing data is a parse error. Non-string
// scalars are stringified (numbers keep their literal form); nested
// values are re-marshalled to their JSON text.
func parseJSON(raw []byte) (model.Message, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(raw)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("parsing JSON message: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("parsing JSON message: trailing data after object")
	}

	msg := make(model.Message, len(obj))
	for k, v := range obj {
		msg[k] = stringify(v)
	}
	return msg, nil
}

// stringify flattens a decoded JSON value to its string form.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// parseLegacy splits the payload into `key: value` header lines up to the
// first blank line; everything after the blank separator is rejoined with
// newlines under the message key. The message key is always set, possibly
// to the empty string.
func parseLegacy(raw []byte) (model.Message, error) {
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	msg := make(model.Message)

	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("malformed header line: %q", line)
		}
		msg[k] = v
	}

	msg[model.MessageKey] = strings.Join(lines[i:], "\n")
	return msg, nil
}
