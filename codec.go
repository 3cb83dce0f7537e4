// FILE: lixenwraith/conftree/codec.go
package conftree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format names a configuration file encoding.
type Format string

const (
	FormatAuto Format = "auto"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. The empty string means FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatTOML, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Parse decodes data into a new accumulator. Only the YAML codec keeps comments.
func Parse(format Format, data []byte) (*Accumulator, error) {
	switch format {
	case FormatTOML:
		return parseTOML(data)
	case FormatJSON:
		return parseJSON(data)
	case FormatYAML:
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Encode serializes the content of n. The copy it encodes is taken under a bulk
// read, so concurrent writers never produce a partially updated file.
func Encode(format Format, n *Node) ([]byte, error) {
	acc, err := n.AccumulatorCopy()
	if err != nil {
		return nil, err
	}
	return EncodeAccumulator(format, acc)
}

// EncodeAccumulator serializes acc without consuming it.
func EncodeAccumulator(format Format, acc *Accumulator) ([]byte, error) {
	if err := acc.check(); err != nil {
		return nil, err
	}
	switch format {
	case FormatTOML:
		return encodeTOML(acc)
	case FormatJSON:
		return encodeJSON(acc)
	case FormatYAML:
		return encodeYAML(acc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// resolveFormat picks the format to use for a file: explicit, extension, then content.
func resolveFormat(format Format, path string, data []byte) (Format, error) {
	if format != "" && format != FormatAuto {
		return format, nil
	}
	if f := detectFileFormat(path); f != "" {
		return f, nil
	}
	if f := detectFormatFromContent(data); f != "" {
		return f, nil
	}
	return "", fmt.Errorf("%w: cannot determine format of %q", ErrUnknownFormat, path)
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml", ".tml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		// .conf, .config and others: detect from content
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}

	// Try JSON first (strict format)
	var jsonTest map[string]any
	if err := json.Unmarshal(trimmed, &jsonTest); err == nil {
		return FormatJSON
	}

	// TOML before YAML: most TOML documents are valid YAML scalars
	var tomlTest map[string]any
	if err := toml.Unmarshal(trimmed, &tomlTest); err == nil {
		return FormatTOML
	}

	var yamlTest map[string]any
	if err := yaml.Unmarshal(trimmed, &yamlTest); err == nil {
		return FormatYAML
	}

	return ""
}
