package ir

import (
	"fmt"
	"math"
	"strconv"
)

// Record is one raw JSON object taken from the genesis document.
// Numbers are decoded as json.Number so amounts never pass through float64.
type Record map[string]any

// Field returns the raw value of a field and whether it was present.
func (r Record) Field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// String returns a field rendered as a string. Numbers keep their exact
// decimal text. Missing fields, nulls, objects and arrays are errors.
func (r Record) String(name string) (string, error) {
	v, ok := r[name]
	if !ok {
		return "", fmt.Errorf("field %q is missing", name)
	}
	s, err := Stringify(v)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", name, err)
	}
	return s, nil
}

// List returns a field that must hold a list of objects.
func (r Record) List(name string) ([]Record, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("field %q is missing", name)
	}
	recs, err := AsRecords(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	return recs, nil
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// Stringify renders a scalar JSON value for transport.
func Stringify(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		// json.Number (stdlib or goccy) keeps the literal text.
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		// Documents decoded without UseNumber: integers up to 2^53 are exact.
		if val != math.Trunc(val) || math.Abs(val) > maxExactFloat {
			return "", fmt.Errorf("float value %v would lose precision; decode with UseNumber", val)
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case nil:
		return "", fmt.Errorf("value is null")
	default:
		return "", fmt.Errorf("value of type %T is not a scalar", v)
	}
}

// AsRecords converts a decoded JSON array of objects into records.
func AsRecords(v any) ([]Record, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %s", jsonKind(v))
	}
	recs := make([]Record, len(list))
	for i, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d: expected an object, got %s", i, jsonKind(elem))
		}
		recs[i] = Record(obj)
	}
	return recs, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	case fmt.Stringer, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
