package dynamic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

var placeholderPattern = regexp.MustCompile(`^\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}$`)

// placeholder reports the parameter name of a "{{name}}" string scalar.
func placeholder(n *yaml.Node) (string, bool) {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return "", false
	}
	m := placeholderPattern.FindStringSubmatch(n.Value)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// placeholders lists every parameter name referenced under n.
func placeholders(n *yaml.Node) []string {
	var names []string
	var walk func(*yaml.Node)
	walk = func(n *yaml.Node) {
		if n == nil {
			return
		}
		if name, ok := placeholder(n); ok {
			names = append(names, name)
			return
		}
		if n.Kind == yaml.AliasNode {
			walk(n.Alias)
			return
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(n)
	return names
}

// renderJSON encodes n as JSON, keeping mapping keys in file order and
// replacing placeholder scalars with values[name]. An unset node renders as
// nil.
func renderJSON(n *yaml.Node, values map[string]any) (json.RawMessage, error) {
	if n == nil || n.Kind == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, n, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, n *yaml.Node, values map[string]any) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, n.Content[0], values)

	case yaml.AliasNode:
		return writeJSON(buf, n.Alias, values)

	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, n.Content[i+1], values); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, c, values); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case yaml.ScalarNode:
		return writeScalar(buf, n, values)
	}
	return fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

func writeScalar(buf *bytes.Buffer, n *yaml.Node, values map[string]any) error {
	var v any
	if name, ok := placeholder(n); ok {
		value, found := values[name]
		if !found {
			return fmt.Errorf("line %d: no value for parameter %q", n.Line, name)
		}
		v = value
	} else {
		switch n.ShortTag() {
		case "!!str", "!!timestamp", "!!binary":
			v = n.Value
		default:
			if err := n.Decode(&v); err != nil {
				return fmt.Errorf("line %d: %w", n.Line, err)
			}
		}
	}

	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	buf.Write(out)
	return nil
}
