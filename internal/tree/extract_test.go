package tree

import (
	"reflect"
	"testing"
)

func TestExtractRefs_DedupDocumentOrder(t *testing.T) {
	root, err := Decode([]byte(`{
		"type": "div",
		"children": [
			{"type": "div", "schemaRef": "widget.b"},
			{"type": "div", "children": [
				{"schemaRef": "widget.c"},
				{"schemaRef": "widget.b"}
			]},
			{"schemaRef": "widget.a"}
		]
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := ExtractRefs(root)
	want := []string{"widget.b", "widget.c", "widget.a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("refs = %v, want %v", got, want)
	}
}

func TestExtractRefs_NoRefs(t *testing.T) {
	root, _ := Decode([]byte(`{"type":"div","children":[{"type":"span","text":"hi"}]}`))
	if refs := ExtractRefs(root); len(refs) != 0 {
		t.Errorf("refs = %v, want none", refs)
	}
}

func TestExtractRefs_NilTree(t *testing.T) {
	if refs := ExtractRefs(nil); len(refs) != 0 {
		t.Errorf("refs = %v, want none", refs)
	}
}

func TestExtractRefs_RootReference(t *testing.T) {
	root, _ := Decode([]byte(`{"schemaRef":"widget.root"}`))
	got := ExtractRefs(root)
	if len(got) != 1 || got[0] != "widget.root" {
		t.Errorf("refs = %v", got)
	}
}
