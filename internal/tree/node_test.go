package tree

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestDecode_LiftsStructuralFields(t *testing.T) {
	input := []byte(`{
		"type": "div",
		"schemaRef": "widget.b",
		"text": "hello",
		"className": "wrap",
		"style": {"color": "red"},
		"children": [{"type": "span", "text": "inner"}]
	}`)
	n, err := Decode(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Type != "div" {
		t.Errorf("type = %q, want div", n.Type)
	}
	if n.SchemaRef != "widget.b" {
		t.Errorf("schemaRef = %q, want widget.b", n.SchemaRef)
	}
	if n.Text != "hello" {
		t.Errorf("text = %q", n.Text)
	}
	if len(n.Children) != 1 || n.Children[0].Type != "span" {
		t.Errorf("children = %+v", n.Children)
	}
	if n.Props["className"] != "wrap" {
		t.Errorf("className prop = %v", n.Props["className"])
	}
	if _, ok := n.Props["style"].(map[string]any); !ok {
		t.Errorf("style prop = %T, want map", n.Props["style"])
	}
	if _, ok := n.Props["type"]; ok {
		t.Error("lifted field \"type\" must not remain in Props")
	}
}

func TestDecode_NonObjectRootRejected(t *testing.T) {
	for _, input := range []string{`"just a string"`, `42`, `[1,2]`, `null`, ``} {
		if _, err := Decode([]byte(input)); err == nil {
			t.Errorf("Decode(%q) expected error", input)
		}
	}
}

func TestDecode_MalformedFieldsStayInProps(t *testing.T) {
	// schemaRef must be a string to act as a reference; anything else is an
	// inert presentation field.
	n, err := Decode([]byte(`{"schemaRef": 42, "type": ["not", "a", "string"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.SchemaRef != "" {
		t.Errorf("schemaRef = %q, want empty", n.SchemaRef)
	}
	if n.Type != "" {
		t.Errorf("type = %q, want empty", n.Type)
	}
	if n.Props["schemaRef"] != json.Number("42") {
		t.Errorf("schemaRef prop = %v (%T)", n.Props["schemaRef"], n.Props["schemaRef"])
	}
	if n.Kind() != KindLeaf {
		t.Errorf("kind = %v, want leaf", n.Kind())
	}
}

func TestDecode_NonObjectChildrenDiscarded(t *testing.T) {
	n, err := Decode([]byte(`{"children": ["junk", 7, null, {"type": "span"}, [1]]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Children) != 1 || n.Children[0].Type != "span" {
		t.Errorf("children = %+v, want single span", n.Children)
	}
}

func TestDecode_NonArrayChildrenStayInProps(t *testing.T) {
	n, err := Decode([]byte(`{"children": "oops"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Children) != 0 {
		t.Errorf("children = %+v, want none", n.Children)
	}
	if n.Props["children"] != "oops" {
		t.Errorf("children prop = %v", n.Props["children"])
	}
}

func TestDecode_EmptySchemaRefDropped(t *testing.T) {
	n, err := Decode([]byte(`{"schemaRef": "", "type": "div"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind() != KindLeaf {
		t.Errorf("kind = %v, want leaf", n.Kind())
	}
}

func TestRoundTrip(t *testing.T) {
	input := []byte(`{"children":[{"text":"${self.raw.data.last}","type":"span"}],"pad":12,"style":{"width":"100%"},"type":"div"}`)
	n, err := Decode(input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Errorf("round trip:\n got %s\nwant %s", out, input)
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	a, _ := Decode([]byte(`{"b": 1, "a": 2, "type": "div"}`))
	b, _ := Decode([]byte(`{"type": "div", "a": 2, "b": 1}`))
	ca, err := a.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	cb, err := b.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ca, cb) {
		t.Errorf("canonical forms differ: %s vs %s", ca, cb)
	}
}

func TestKind(t *testing.T) {
	ref := &Node{SchemaRef: "k", Children: []*Node{{}}}
	if ref.Kind() != KindReference {
		t.Error("schemaRef should win over children")
	}
	if (&Node{Children: []*Node{{}}}).Kind() != KindContainer {
		t.Error("expected container")
	}
	if (&Node{Type: "span"}).Kind() != KindLeaf {
		t.Error("expected leaf")
	}
}

func TestClone_Independence(t *testing.T) {
	orig, _ := Decode([]byte(`{"type":"div","style":{"color":"red"},"children":[{"type":"span"}]}`))
	cp := orig.Clone()

	cp.Type = "section"
	cp.Children[0].Type = "em"
	cp.Props["style"].(map[string]any)["color"] = "blue"

	if orig.Type != "div" {
		t.Error("clone mutated original type")
	}
	if orig.Children[0].Type != "span" {
		t.Error("clone mutated original child")
	}
	if orig.Props["style"].(map[string]any)["color"] != "red" {
		t.Error("clone mutated original props")
	}
}
