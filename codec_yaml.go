// FILE: lixenwraith/conftree/codec_yaml.go
package conftree

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseYAML decodes data through the yaml.Node tree so that comments survive.
// A head comment (or, failing that, a line comment) is attached to its key.
func parseYAML(data []byte) (*Accumulator, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewAccumulator(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse YAML: top level must be a mapping, got %s", root.Tag)
	}
	acc, err := yamlMapping(root)
	if err != nil {
		return nil, err
	}
	// A comment block at the very top of the document belongs to the first key.
	if len(root.Content) > 0 {
		first := root.Content[0].Value
		if _, ok := acc.mirror.comments[first]; !ok && doc.HeadComment != "" {
			acc.mirror.comments[first] = stripYAMLComment(doc.HeadComment)
		}
	}
	return acc, nil
}

func yamlMapping(m *yaml.Node) (*Accumulator, error) {
	acc := NewAccumulator()
	for i := 0; i+1 < len(m.Content); i += 2 {
		keyNode, valueNode := m.Content[i], m.Content[i+1]
		key := keyNode.Value
		v, err := yamlValue(valueNode)
		if err != nil {
			return nil, fmt.Errorf("key %q (line %d): %w", key, keyNode.Line, err)
		}
		acc.put(key, v)

		comment := keyNode.HeadComment
		if comment == "" && i == 0 {
			comment = m.HeadComment
		}
		if comment == "" {
			comment = keyNode.LineComment
		}
		if comment == "" && valueNode.Kind == yaml.ScalarNode {
			comment = valueNode.LineComment
		}
		if comment != "" {
			acc.mirror.comments[key] = stripYAMLComment(comment)
		}
	}
	return acc, nil
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		return yamlMapping(n)
	case yaml.SequenceNode:
		list := make([]any, len(n.Content))
		for i, e := range n.Content {
			v, err := yamlValue(e)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return Null, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		if i, ok := v.(int); ok {
			return int64(i), nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d", n.Kind)
	}
}

// stripYAMLComment removes the comment markers of every line.
func stripYAMLComment(c string) string {
	lines := strings.Split(c, "\n")
	for i, line := range lines {
		line = strings.TrimPrefix(strings.TrimSpace(line), "#")
		lines[i] = strings.TrimPrefix(line, " ")
	}
	return strings.Join(lines, "\n")
}

func formatYAMLComment(c string) string {
	lines := strings.Split(c, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = "#"
		} else {
			lines[i] = "# " + line
		}
	}
	return strings.Join(lines, "\n")
}

// encodeYAML writes acc with its comments as head comments of their keys.
// Dangling comments cannot be represented and are dropped.
func encodeYAML(acc *Accumulator) ([]byte, error) {
	root, err := yamlMappingFor(acc)
	if err != nil {
		return nil, err
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal config data to YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config data to YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func yamlMappingFor(acc *Accumulator) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range sortedKeys(acc.mirror.values) {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		if c, ok := acc.mirror.comments[k]; ok {
			keyNode.HeadComment = formatYAMLComment(c)
		}
		valueNode, err := yamlNodeFor(acc.mirror.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		m.Content = append(m.Content, keyNode, valueNode)
	}
	return m, nil
}

func yamlNodeFor(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case *Accumulator:
		return yamlMappingFor(x)
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range x {
			n, err := yamlNodeFor(e)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case NullValue:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, err
		}
		return n, nil
	}
}
