package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Point is one time-series datum assembled from a matched rule.
// Time is the message's @timestamp carried verbatim; sinks that need a
// parsed timestamp interpret it at their own boundary.
type Point struct {
	Measurement string
	Time        string
	Fields      map[string]any
	Tags        map[string]any
}

// Line renders the point in its human-readable line form:
//
//	measurement[,tag=val,...] field=val[,field=val...] timestamp
//
// Floats print in decimal form, integers with a trailing 'i', and all
// other values as double-quoted strings with embedded quotes escaped.
// Keys are sorted so output is deterministic.
func (p *Point) Line() string {
	var b strings.Builder
	b.WriteString(p.Measurement)
	if len(p.Tags) > 0 {
		b.WriteByte(',')
		b.WriteString(formatValues(p.Tags))
	}
	b.WriteByte(' ')
	b.WriteString(formatValues(p.Fields))
	b.WriteByte(' ')
	b.WriteString(p.Time)
	return b.String()
}

// formatValues renders a field or tag map as comma-separated key=value pairs.
func formatValues(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m))
	for _, k := range keys {
		pairs = append(pairs, k+"="+formatValue(m[k]))
	}
	return strings.Join(pairs, ",")
}

// formatValue renders a single value per the line representation rules.
func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10) + "i"
	case int:
		return strconv.Itoa(val) + "i"
	default:
		s := fmt.Sprint(val)
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
}
