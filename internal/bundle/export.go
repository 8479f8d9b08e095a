package bundle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/tree"
)

// Export builds the bundle for a widget key: the schema itself plus every
// schema it transitively references, in discovery order. References to keys
// missing from the store are skipped; the importing side resolves them to
// placeholders the same way rendering does. The walk is cycle-safe.
func Export(ctx context.Context, store Store, widgetKey string) (*Bundle, error) {
	root, err := store.GetByWidgetKey(ctx, widgetKey)
	if err != nil {
		return nil, fmt.Errorf("bundle: export %q: %w", widgetKey, err)
	}

	visited := map[string]struct{}{widgetKey: {}}
	docs := []*models.SchemaProject{root}
	queue := tree.ExtractRefs(root.Schema)

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		doc, err := store.GetByWidgetKey(ctx, key)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("bundle: export %q: %w", key, err)
		}
		docs = append(docs, doc)
		queue = append(queue, tree.ExtractRefs(doc.Schema)...)
	}

	return &Bundle{
		Version:    Version,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		MainSchema: widgetKey,
		Schemas:    docs,
	}, nil
}
