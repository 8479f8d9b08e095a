package bundle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/models"
)

// Import applies an export document (single schema or bundle) to the store.
//
// Every document is validated before anything is written, so a malformed
// entry rejects the whole batch and leaves the store untouched. Per document
// the id policy follows the widget key: if the key already exists, the
// existing document's id and createdAt survive and the rest is replaced;
// otherwise a fresh id is minted and the widget key imported as-is.
func Import(ctx context.Context, store Store, data []byte) (*Result, error) {
	docs, mainSchema, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("bundle: no schemas to import: %w", apperr.ErrInvalid)
	}

	for i, doc := range docs {
		if err := validateDoc(doc); err != nil {
			return nil, fmt.Errorf("bundle: schema %d (%s): %v: %w", i, doc.WidgetKey, err, apperr.ErrInvalid)
		}
	}

	res := &Result{MainSchema: mainSchema}
	now := time.Now().UnixMilli()
	for _, doc := range docs {
		models.Normalize(doc)

		existing, err := store.GetByWidgetKey(ctx, doc.WidgetKey)
		switch {
		case err == nil:
			doc.ID = existing.ID
			doc.CreatedAt = existing.CreatedAt
			res.Updated = append(res.Updated, doc.WidgetKey)
		case errors.Is(err, apperr.ErrNotFound):
			doc.ID = uuid.NewString()
			doc.CreatedAt = now
			res.Created = append(res.Created, doc.WidgetKey)
		default:
			return nil, fmt.Errorf("bundle: lookup %q: %w", doc.WidgetKey, err)
		}
		doc.UpdatedAt = now

		if err := store.Put(ctx, doc); err != nil {
			return nil, fmt.Errorf("bundle: import %q: %w", doc.WidgetKey, err)
		}
	}
	return res, nil
}
