package resolver

import (
	"context"
	"log/slog"
	"sort"

	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/tree"
)

// Catalog is the store capability channel collection needs: a full snapshot,
// used both to walk the reference closure and to find alias owners.
type Catalog interface {
	GetAll(ctx context.Context) ([]*models.SchemaProject, error)
}

// Collector computes which live data channels a composed tree needs.
type Collector struct {
	store  Catalog
	logger *slog.Logger
}

func NewCollector(store Catalog, logger *slog.Logger) *Collector {
	return &Collector{store: store, logger: logger}
}

// Collect walks the transitive closure of schema references under root and
// returns the channel bindings of every dynamic schema in it. Each channel
// key is paired with the alias defined by its owning schema: the first
// schema, in widget-key order, whose channelKeys lists the key and whose
// alias table names it. Channels no schema aliases are omitted so the caller
// never binds an unnamed channel into the render context. The result is
// deduplicated and deterministic.
func (c *Collector) Collect(ctx context.Context, root *tree.Node) ([]models.ChannelBinding, error) {
	if root == nil {
		return nil, nil
	}
	all, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*models.SchemaProject, len(all))
	for _, s := range all {
		byKey[s.WidgetKey] = s
	}

	closure := referenceClosure(root, byKey)

	var out []models.ChannelBinding
	seen := make(map[models.ChannelBinding]struct{})
	for _, key := range closure {
		s := byKey[key]
		if s == nil || s.Type != models.TypeDynamic {
			continue
		}
		for _, ck := range s.ChannelKeys {
			alias := ownerAlias(all, ck)
			if alias == "" {
				c.logger.Debug("channel has no alias, omitted",
					slog.String("channelKey", ck), slog.String("widgetKey", key))
				continue
			}
			b := models.ChannelBinding{ChannelKey: ck, Alias: alias}
			if _, dup := seen[b]; dup {
				continue
			}
			seen[b] = struct{}{}
			out = append(out, b)
		}
	}
	return out, nil
}

// Closure returns every widget key transitively referenced from root,
// bounded the same way Collect is. Callers use it to know which schemas a
// composed tree depends on.
func (c *Collector) Closure(ctx context.Context, root *tree.Node) ([]string, error) {
	if root == nil {
		return nil, nil
	}
	all, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*models.SchemaProject, len(all))
	for _, s := range all {
		byKey[s.WidgetKey] = s
	}
	return referenceClosure(root, byKey), nil
}

// referenceClosure returns every widget key reachable from root through
// schema references, bounded by the same depth cap resolution enforces, in
// sorted order. Keys absent from the snapshot still appear in the closure;
// they simply have no tree to expand.
func referenceClosure(root *tree.Node, byKey map[string]*models.SchemaProject) []string {
	type item struct {
		key   string
		depth int
	}
	visited := make(map[string]struct{})
	var queue []item
	for _, k := range tree.ExtractRefs(root) {
		if _, ok := visited[k]; ok {
			continue
		}
		visited[k] = struct{}{}
		queue = append(queue, item{k, 1})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= MaxDepth {
			continue
		}
		s := byKey[cur.key]
		if s == nil || s.Schema == nil {
			continue
		}
		for _, k := range tree.ExtractRefs(s.Schema) {
			if _, ok := visited[k]; ok {
				continue
			}
			visited[k] = struct{}{}
			queue = append(queue, item{k, cur.depth + 1})
		}
	}

	keys := make([]string, 0, len(visited))
	for k := range visited {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ownerAlias finds the alias for a channel key. The snapshot arrives in
// widget-key order, so the first schema that both lists the channel and
// aliases it wins deterministically.
func ownerAlias(all []*models.SchemaProject, channelKey string) string {
	for _, s := range all {
		if !s.BindsChannel(channelKey) {
			continue
		}
		if alias, ok := s.AliasFor(channelKey); ok {
			return alias
		}
	}
	return ""
}
