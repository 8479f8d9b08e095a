package tree

// ExtractRefs returns every widget key referenced anywhere in the tree,
// deduplicated, in document order. Nil trees contribute nothing.
//
// Used both for save-time auto-detection of nested-schema dependencies and
// as the traversal primitive for the dependency walks.
func ExtractRefs(root *Node) []string {
	seen := make(map[string]struct{})
	var out []string
	walk(root, func(n *Node) {
		if n.SchemaRef == "" {
			return
		}
		if _, dup := seen[n.SchemaRef]; dup {
			return
		}
		seen[n.SchemaRef] = struct{}{}
		out = append(out, n.SchemaRef)
	})
	return out
}

// walk visits root and every descendant depth-first.
func walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		walk(c, visit)
	}
}
