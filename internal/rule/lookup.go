package rule

import "fmt"

// Coercion is an optional type conversion applied to a resolved value.
type Coercion int

const (
	CoerceNone Coercion = iota
	CoerceInt
	CoerceFloat
)

// Lookup is the compiled form of a field/tag lookup spec: a reference to a
// message key (or `<matchKey>.<captureGroup>`) with an optional coercion.
// Config presents lookups duck-typed; they are normalized here exactly once
// at compile time.
type Lookup struct {
	Ref    string
	Coerce Coercion
}

// parseLookups normalizes a definition's raw field or tag map.
func parseLookups(raw map[string]any) (map[string]Lookup, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make(map[string]Lookup, len(raw))
	for name, spec := range raw {
		lk, err := parseLookup(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = lk
	}
	return out, nil
}

// parseLookup accepts either a bare string reference or a map carrying
// "lookup" and an optional "type".
func parseLookup(spec any) (Lookup, error) {
	switch v := spec.(type) {
	case string:
		return Lookup{Ref: v}, nil

	case map[string]any:
		ref, ok := v["lookup"].(string)
		if !ok || ref == "" {
			return Lookup{}, fmt.Errorf("lookup spec requires a 'lookup' reference")
		}

		lk := Lookup{Ref: ref}
		if t, present := v["type"]; present {
			ts, ok := t.(string)
			if !ok {
				return Lookup{}, fmt.Errorf("lookup type must be a string, got %T", t)
			}
			coerce, err := parseCoercion(ts)
			if err != nil {
				return Lookup{}, err
			}
			lk.Coerce = coerce
		}
		return lk, nil

	default:
		return Lookup{}, fmt.Errorf("lookup spec must be a string or a map, got %T", spec)
	}
}

// parseCoercion maps a configured type name to a Coercion.
func parseCoercion(name string) (Coercion, error) {
	switch name {
	case "int", "integer":
		return CoerceInt, nil
	case "float", "floating-point":
		return CoerceFloat, nil
	default:
		return CoerceNone, fmt.Errorf("unknown lookup type: %s", name)
	}
}
