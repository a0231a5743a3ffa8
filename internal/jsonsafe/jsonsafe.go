// Package jsonsafe implements the JSON Sanitizer (spec §4.3): a
// deserializer that drops prototype-pollution-style keys while it builds
// the object, rather than filtering a finished tree.
//
// Go maps have no prototype chain, so "__proto__"/"constructor"/"prototype"
// pose no object-mutation risk here by themselves. The spec still treats
// them as dangerous (§9: "in target languages without prototype chains the
// equivalent risk is deserializer gadgets and polymorphic tag confusion")
// and requires rejecting the three named keys for cross-runtime parity with
// the browser reference, so this package enforces that regardless of Go's
// own semantics.
package jsonsafe

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DangerousKeys are stripped at every depth, wherever they appear as an
// object's own key.
var DangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// Parse decodes jsonString into a map[string]any, dropping dangerous keys
// as they are encountered (never adding them to the result). It returns
// nil if the JSON is invalid or the root value is not an object — arrays
// and primitives are rejected, matching CandidateSchema's invariant
// (spec §3).
func Parse(jsonString string) map[string]any {
	dec := json.NewDecoder(strings.NewReader(jsonString))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil
	}
	obj, err := decodeObject(dec)
	if err != nil {
		return nil
	}
	// Reject trailing garbage after the object.
	if _, err := dec.Token(); err != io.EOF {
		return nil
	}
	return obj
}

func decodeObject(dec *json.Decoder) (map[string]any, error) {
	result := make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("jsonsafe: non-string object key")
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		if DangerousKeys[key] {
			continue // dropped at construction time, never stored
		}
		result[key] = value
	}
	// consume the closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return result, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	result := make([]any, 0)
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		result = append(result, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return result, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("jsonsafe: unexpected delimiter %v", v)
		}
	default:
		return v, nil
	}
}

// ContainsDangerousKeys reports whether any object anywhere in the tree
// (including inside arrays) has an own key in DangerousKeys.
func ContainsDangerousKeys(v any) bool {
	switch val := v.(type) {
	case map[string]any:
		for key, nested := range val {
			if DangerousKeys[key] {
				return true
			}
			if ContainsDangerousKeys(nested) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if ContainsDangerousKeys(item) {
				return true
			}
		}
	}
	return false
}

// Sanitize returns a structurally identical copy of v with every dangerous
// key removed at every depth. It is idempotent: Sanitize(Sanitize(v)) has
// the same shape as Sanitize(v).
func Sanitize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, nested := range val {
			if DangerousKeys[key] {
				continue
			}
			out[key] = Sanitize(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Sanitize(item)
		}
		return out
	default:
		return val
	}
}
