package models

import "github.com/tesselcraft/tessera/internal/tree"

// Normalize applies the document rules every write path shares, whether the
// document arrives from the authoring API or a bundle import: a sane type,
// a deduplicated alias table, and a nestedSchemas list that matches the
// document's kind.
func Normalize(doc *SchemaProject) {
	if !doc.Type.Valid() {
		doc.Type = TypeStatic
	}
	doc.ChannelAliases = NormalizeBindings(doc.ChannelAliases)

	if doc.Type == TypeDynamic {
		// Dynamic schemas render channels, not other schemas. A stray
		// nestedSchemas list on one is legacy noise, not an error.
		doc.NestedSchemas = nil
		return
	}
	doc.NestedSchemas = mergeRefs(doc.NestedSchemas, tree.ExtractRefs(doc.Schema))
}

// mergeRefs unions declared and detected references, declared order first.
func mergeRefs(declared, detected []string) []string {
	seen := make(map[string]struct{}, len(declared)+len(detected))
	var out []string
	for _, lists := range [][]string{declared, detected} {
		for _, k := range lists {
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
