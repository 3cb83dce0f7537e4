// FILE: lixenwraith/conftree/codec_json.go
package conftree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func parseJSON(data []byte) (*Accumulator, error) {
	fileConfig := make(map[string]any)
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber() // Preserve number precision
	if err := decoder.Decode(&fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return AccumulatorFromMap(normalizeJSON(fileConfig).(map[string]any))
}

// normalizeJSON converts json.Number to int64 when integral, float64 otherwise,
// so that JSON files yield the same value types as TOML files.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeJSON(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeJSON(e)
		}
		return x
	default:
		return v
	}
}

// encodeJSON writes acc as indented JSON. Comments are dropped.
func encodeJSON(acc *Accumulator) ([]byte, error) {
	data, err := json.MarshalIndent(acc.toMap(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config data to JSON: %w", err)
	}
	return append(data, '\n'), nil
}
