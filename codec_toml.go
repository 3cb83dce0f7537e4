// FILE: lixenwraith/conftree/codec_toml.go
package conftree

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

func parseTOML(data []byte) (*Accumulator, error) {
	fileConfig := make(map[string]any)
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return AccumulatorFromMap(fileConfig)
}

// encodeTOML writes acc without comments. TOML has no null, so Null values are
// omitted.
func encodeTOML(acc *Accumulator) ([]byte, error) {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(dropNulls(acc.toMap())); err != nil {
		return nil, fmt.Errorf("failed to marshal config data to TOML: %w", err)
	}
	return buf.Bytes(), nil
}

func dropNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = dropNullValue(v)
	}
	return out
}

func dropNullValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return dropNulls(x)
	case []any:
		out := make([]any, 0, len(x))
		for _, e := range x {
			if e != nil {
				out = append(out, dropNullValue(e))
			}
		}
		return out
	default:
		return v
	}
}
