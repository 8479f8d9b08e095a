package binding

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/tree"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate returns a copy of the tree with every ${alias.path} expression
// in text and string props replaced by the value at that path inside the
// aliased payload. The first path segment selects the render-context entry,
// the remainder addresses into its JSON. Expressions whose alias is unbound
// or whose path matches nothing are left verbatim so missing data stays
// visible instead of rendering as empty strings.
func Interpolate(root *tree.Node, rctx models.RenderContext) *tree.Node {
	if root == nil {
		return nil
	}
	out := root.Clone()
	interpolateNode(out, rctx)
	return out
}

func interpolateNode(n *tree.Node, rctx models.RenderContext) {
	n.Text = interpolateString(n.Text, rctx)
	for k, v := range n.Props {
		n.Props[k] = interpolateValue(v, rctx)
	}
	for _, c := range n.Children {
		interpolateNode(c, rctx)
	}
}

func interpolateValue(v any, rctx models.RenderContext) any {
	switch t := v.(type) {
	case string:
		return interpolateString(t, rctx)
	case map[string]any:
		for k, e := range t {
			t[k] = interpolateValue(e, rctx)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = interpolateValue(e, rctx)
		}
		return t
	default:
		return t
	}
}

func interpolateString(s string, rctx models.RenderContext) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return exprPattern.ReplaceAllStringFunc(s, func(expr string) string {
		path := expr[2 : len(expr)-1]
		alias, rest, _ := strings.Cut(path, ".")
		payload, ok := rctx[alias]
		if !ok {
			return expr
		}
		if rest == "" {
			return string(payload)
		}
		res := gjson.GetBytes(payload, rest)
		if !res.Exists() {
			return expr
		}
		return res.String()
	})
}
