// Package tree defines the widget UI tree: an arbitrarily nested JSON
// document with three structural fields (type, schemaRef, children) plus
// free-form presentation fields. Documents are validated into the closed
// Node type at the JSON boundary so resolution logic never probes raw maps.
package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies a node for resolution purposes.
type Kind int

const (
	// KindLeaf has no reference and no children.
	KindLeaf Kind = iota
	// KindContainer has children and no reference.
	KindContainer
	// KindReference carries a schemaRef to another widget schema.
	KindReference
)

// Node is one element of a widget UI tree.
//
// Type, Text, and the Props map are presentation fields passed through to
// the renderer untouched. SchemaRef marks the node as a reference to the
// schema stored under that widget key. A node may combine a reference with
// its own presentation fields: the reference supplies content, the node
// supplies layout.
type Node struct {
	Type      string
	SchemaRef string
	Text      string
	Children  []*Node
	Props     map[string]any
}

// Kind returns the node's structural classification. A schemaRef wins over
// children: the reference is what resolution acts on.
func (n *Node) Kind() Kind {
	switch {
	case n.SchemaRef != "":
		return KindReference
	case len(n.Children) > 0:
		return KindContainer
	default:
		return KindLeaf
	}
}

// Decode validates raw JSON into a Node. The top-level value must be a JSON
// object; anything else is a boundary error.
func Decode(data []byte) (*Node, error) {
	n := new(Node)
	if err := json.Unmarshal(data, n); err != nil {
		return nil, err
	}
	return n, nil
}

// UnmarshalJSON applies the boundary rules:
//   - the value must be a JSON object;
//   - "type", "schemaRef", and "text" are lifted when they are strings,
//     otherwise they stay in Props with no structural meaning;
//   - an empty schemaRef is dropped (it references nothing);
//   - "children" is recursed into when it is an array; entries that are not
//     JSON objects are discarded; a non-array value stays in Props;
//   - every other field is preserved verbatim in Props (numbers kept as
//     json.Number so they round-trip exactly).
func (n *Node) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("tree: node must be a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return fmt.Errorf("tree: decode node: %w", err)
	}

	*n = Node{}

	if raw, ok := fields["type"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			n.Type = s
			delete(fields, "type")
		}
	}
	if raw, ok := fields["schemaRef"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			n.SchemaRef = s
			delete(fields, "schemaRef")
		}
	}
	if raw, ok := fields["text"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			n.Text = s
			delete(fields, "text")
		}
	}
	if raw, ok := fields["children"]; ok {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			delete(fields, "children")
			for _, item := range items {
				child := new(Node)
				if err := json.Unmarshal(item, child); err != nil {
					continue
				}
				n.Children = append(n.Children, child)
			}
		}
	}

	if len(fields) > 0 {
		n.Props = make(map[string]any, len(fields))
		for k, raw := range fields {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("tree: decode field %q: %w", k, err)
			}
			n.Props[k] = v
		}
	}

	return nil
}

// MarshalJSON reassembles the wire form. Output is deterministic (object
// keys sort lexicographically), which makes serialized trees usable as
// change-detection input.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Props)+4)
	for k, v := range n.Props {
		out[k] = v
	}
	if n.Type != "" {
		out["type"] = n.Type
	}
	if n.SchemaRef != "" {
		out["schemaRef"] = n.SchemaRef
	}
	if n.Text != "" {
		out["text"] = n.Text
	}
	if len(n.Children) > 0 {
		out["children"] = n.Children
	}
	return json.Marshal(out)
}

// Canonical returns the node's deterministic serialized form. Two trees with
// equal content produce equal bytes regardless of how they were built.
func (n *Node) Canonical() ([]byte, error) {
	return json.Marshal(n)
}

// Clone returns a deep copy. Resolution never mutates its input; it works on
// clones and assembles fresh trees.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:      n.Type,
		SchemaRef: n.SchemaRef,
		Text:      n.Text,
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	if len(n.Props) > 0 {
		out.Props = make(map[string]any, len(n.Props))
		for k, v := range n.Props {
			out.Props[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		// Scalars (string, bool, json.Number, nil) are immutable.
		return t
	}
}
