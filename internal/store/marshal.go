package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalJSON encodes a dimension or measure map as JSON TEXT.
// Keys come out sorted; HTML escaping is disabled so stored text matches
// what clients sent.
func marshalJSON[V any](m map[string]V) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDimensions(data string) (map[string]string, error) {
	dims := map[string]string{}
	if data == "" || data == "{}" {
		return dims, nil
	}
	if err := json.Unmarshal([]byte(data), &dims); err != nil {
		return nil, fmt.Errorf("unmarshal dimensions: %w", err)
	}
	return dims, nil
}

func unmarshalMeasures(data string) (map[string]float64, error) {
	measures := map[string]float64{}
	if err := json.Unmarshal([]byte(data), &measures); err != nil {
		return nil, fmt.Errorf("unmarshal measures: %w", err)
	}
	return measures, nil
}
