// Package wire holds small helpers for validating JSON payloads that
// originate from the caller rather than the gateway, before they are ever
// put on the network.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CheckNoCaseSmuggledKeys rejects JSON objects that contain the same key
// spelled with different casing at any level (e.g. both "audio" and
// "Audio"), which is a reliable sign of a caller-side bug building a
// plugin message body rather than a legitimate field name collision.
func CheckNoCaseSmuggledKeys(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not a JSON object: nothing to check here.
		return nil
	}
	return checkObject(raw)
}

func checkObject(obj map[string]json.RawMessage) error {
	seen := make(map[string]string, len(obj))
	for key := range obj {
		lower := strings.ToLower(key)
		if original, exists := seen[lower]; exists && original != key {
			return fmt.Errorf("duplicate key with different case: %q and %q", original, key)
		}
		seen[lower] = key
	}
	for key, val := range obj {
		if err := checkValue(val); err != nil {
			return fmt.Errorf("in field %q: %w", key, err)
		}
	}
	return nil
}

func checkValue(data json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		return checkObject(obj)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		for i, elem := range arr {
			if err := checkValue(elem); err != nil {
				return fmt.Errorf("in array index %d: %w", i, err)
			}
		}
	}
	return nil
}
