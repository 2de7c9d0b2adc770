package rule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/logflux/internal/model"
)

// refSep separates the match key from the capture group name in a
// capture-group lookup reference.
const refSep = "."

// Resolve derives the concrete value for one lookup against a message and
// match result. A nil value with a nil error means "absent": the lookup is
// dropped from the output map. Only a missing message key or capture group
// counts as absent; resolved empty strings and zero values are preserved.
//
// A dotted reference whose prefix is not the rule's own match key is a
// configuration error and fails the point. So does a coercion that cannot
// parse the resolved value.
func (r *Rule) Resolve(msg model.Message, m *Match, lk Lookup, log logger.ILogger) (any, error) {
	var (
		value string
		found bool
	)

	if strings.Contains(lk.Ref, refSep) {
		key, group, _ := strings.Cut(lk.Ref, refSep)
		if key != r.Key {
			return nil, fmt.Errorf(
				"invalid lookup %q: capture-group lookups cannot reference message parts other than the %q key",
				lk.Ref, r.Key)
		}
		value, found = m.Group(group)
	} else {
		value, found = msg[lk.Ref]
	}

	if !found {
		log.Errorf("invalid field/tag reference: %s; matches were:", lk.Ref)
		groups := m.Groups()
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			log.Errorf("  %s: %s", name, groups[name])
		}
		return nil, nil
	}

	switch lk.Coerce {
	case CoerceInt:
		if value == "" {
			log.Debugf("dropping empty value for typed lookup %s", lk.Ref)
			return nil, nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("coercing %q to integer: %w", value, err)
		}
		return i, nil

	case CoerceFloat:
		if value == "" {
			log.Debugf("dropping empty value for typed lookup %s", lk.Ref)
			return nil, nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("coercing %q to float: %w", value, err)
		}
		return f, nil

	default:
		return value, nil
	}
}

// resolveAll resolves a whole lookup map, skipping absent values.
func (r *Rule) resolveAll(msg model.Message, m *Match, specs map[string]Lookup, log logger.ILogger) (map[string]any, error) {
	out := make(map[string]any, len(specs))
	for name, lk := range specs {
		v, err := r.Resolve(msg, m, lk, log)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		out[name] = v
	}
	return out, nil
}
