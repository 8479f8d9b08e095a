// Package resolver expands schema references inside a widget tree into the
// referenced schemas' own trees. Expansion is recursive, cycle-safe, and
// depth-bounded; every anomaly becomes an inline placeholder node so one bad
// reference never blocks the rest of a composed dashboard.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/tree"
)

// MaxDepth is the hard cap on nested reference expansions. A chain longer
// than this truncates with a placeholder instead of recursing further.
const MaxDepth = 10

// Placeholder node vocabulary. Placeholders carry the offending widget key
// both as a prop (for programmatic use) and in the text (for display).
const (
	PlaceholderType = "placeholder"

	ReasonNotFound = "schema-not-found"
	ReasonCircular = "circular-reference"
	ReasonMaxDepth = "max-depth-exceeded"
)

// Lookup is the single store capability resolution needs.
type Lookup interface {
	GetByWidgetKey(ctx context.Context, key string) (*models.SchemaProject, error)
}

// Resolver expands references against a schema store.
type Resolver struct {
	lookup Lookup
	logger *slog.Logger
}

func New(lookup Lookup, logger *slog.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve returns a new tree with every reference inlined. The input is never
// mutated. Graph anomalies (unknown key, cycle, depth overrun) resolve locally
// to placeholder nodes. A failing store read degrades the whole run instead:
// Resolve returns a copy of the ORIGINAL unresolved tree together with the
// error, never a partially expanded one, so the caller can still render
// something sensible.
func (r *Resolver) Resolve(ctx context.Context, root *tree.Node) (*tree.Node, error) {
	if root == nil {
		return nil, nil
	}
	resolved, err := r.expand(ctx, root, map[string]struct{}{}, 0)
	if err != nil {
		r.logger.Warn("resolution degraded to unresolved tree", slog.String("error", err.Error()))
		return root.Clone(), err
	}
	return resolved, nil
}

func (r *Resolver) expand(ctx context.Context, n *tree.Node, onPath map[string]struct{}, depth int) (*tree.Node, error) {
	out := &tree.Node{
		Type: n.Type,
		Text: n.Text,
	}
	if len(n.Props) > 0 {
		out.Props = make(map[string]any, len(n.Props))
		for k, v := range n.Props {
			out.Props[k] = v
		}
	}

	// The node's own children resolve first; an inlined reference tree is
	// appended after them so the referencing node wraps the referenced
	// content, keeping its presentation fields and layout position.
	for _, child := range n.Children {
		rc, err := r.expand(ctx, child, onPath, depth)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, rc)
	}

	key := n.SchemaRef
	if key == "" {
		return out, nil
	}

	if _, seen := onPath[key]; seen {
		r.logger.Warn("circular schema reference", slog.String("widgetKey", key))
		out.Children = append(out.Children, Placeholder(ReasonCircular, key))
		return out, nil
	}
	if depth >= MaxDepth {
		r.logger.Warn("max resolution depth exceeded", slog.String("widgetKey", key), slog.Int("depth", depth))
		out.Children = append(out.Children, Placeholder(ReasonMaxDepth, key))
		return out, nil
	}

	target, err := r.lookup.GetByWidgetKey(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		out.Children = append(out.Children, Placeholder(ReasonNotFound, key))
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: fetch %q: %w", key, err)
	}
	if target.Schema == nil {
		out.Children = append(out.Children, Placeholder(ReasonNotFound, key))
		return out, nil
	}

	onPath[key] = struct{}{}
	inner, err := r.expand(ctx, target.Schema, onPath, depth+1)
	delete(onPath, key)
	if err != nil {
		return nil, err
	}
	out.Children = append(out.Children, inner)
	return out, nil
}

// Placeholder builds the inline node substituted where expansion stopped.
func Placeholder(reason, widgetKey string) *tree.Node {
	var text string
	switch reason {
	case ReasonCircular:
		text = "circular reference: " + widgetKey
	case ReasonMaxDepth:
		text = "max depth exceeded: " + widgetKey
	default:
		text = "schema not found: " + widgetKey
	}
	return &tree.Node{
		Type: PlaceholderType,
		Text: text,
		Props: map[string]any{
			"reason":    reason,
			"widgetKey": widgetKey,
		},
	}
}
