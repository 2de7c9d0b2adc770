package rule

import (
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/logflux/internal/model"
)

// defaultFields is the implicit field map for rules that declare none:
// a single `value` field sourced from the message body.
var defaultFields = map[string]Lookup{
	"value": {Ref: model.MessageKey},
}

// BuildPoint assembles the measurement point for one matched rule.
// The measurement is the rule name and the timestamp is the message's
// @timestamp, passed through verbatim. A point with no resolvable fields
// is a configuration error, not an empty emission.
func (r *Rule) BuildPoint(msg model.Message, m *Match, log logger.ILogger) (*model.Point, error) {
	ts, ok := msg.Timestamp()
	if !ok {
		return nil, fmt.Errorf("message has no %s key", model.TimestampKey)
	}

	fieldSpecs := r.Fields
	if len(fieldSpecs) == 0 {
		fieldSpecs = defaultFields
	}

	fields, err := r.resolveAll(msg, m, fieldSpecs, log)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("unable to populate field values")
	}

	tags, err := r.resolveAll(msg, m, r.Tags, log)
	if err != nil {
		return nil, err
	}

	p := &model.Point{
		Measurement: r.Name,
		Time:        ts,
		Fields:      fields,
	}
	if len(tags) > 0 {
		p.Tags = tags
	}
	return p, nil
}
