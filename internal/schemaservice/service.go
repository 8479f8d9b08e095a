package schemaservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/binding"
	"github.com/tesselcraft/tessera/internal/bundle"
	"github.com/tesselcraft/tessera/internal/composer"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/resolver"
	"github.com/tesselcraft/tessera/internal/store"
	"github.com/tesselcraft/tessera/internal/tree"
)

// Service coordinates the schema store, the resolution pipeline, and the live
// data layer. All widget-key mutations flow through it so cache invalidation
// and change events stay consistent.
type Service struct {
	store     store.SchemaStore
	collector *resolver.Collector
	composer  *composer.Composer
	live      binding.Source

	onChange func(kind, widgetKey string)
}

// NewService creates a new schema service.
func NewService(st store.SchemaStore, col *resolver.Collector, comp *composer.Composer, live binding.Source) *Service {
	return &Service{
		store:     st,
		collector: col,
		composer:  comp,
		live:      live,
	}
}

// OnChange registers the callback invoked after a schema mutation commits,
// with kind one of "created", "updated", "deleted". Set it during wiring,
// before the service handles requests.
func (s *Service) OnChange(fn func(kind, widgetKey string)) {
	s.onChange = fn
}

// Create stores a new schema document. The id is always minted here; a missing
// widget key is derived from the name. Returns ErrDuplicateWidgetKey when the
// key is already taken.
func (s *Service) Create(ctx context.Context, in *models.SchemaProject) (*models.SchemaProject, error) {
	if err := validateDraft(in); err != nil {
		return nil, err
	}

	in.ID = uuid.NewString()
	if in.WidgetKey == "" {
		in.WidgetKey = deriveWidgetKey(in.Name)
	}
	if in.Schema == nil {
		in.Schema = &tree.Node{}
	}
	models.Normalize(in)

	now := time.Now().UnixMilli()
	in.CreatedAt = now
	in.UpdatedAt = now

	if err := s.store.Put(ctx, in); err != nil {
		return nil, err
	}

	// A new key may satisfy previously dangling references.
	s.composer.Invalidate(in.WidgetKey)
	s.announce("created", in.WidgetKey)
	return in, nil
}

// Update replaces the document stored under widgetKey with in. The replace is
// full and last-writer-wins; only id, widgetKey, and createdAt survive from
// the stored document.
func (s *Service) Update(ctx context.Context, widgetKey string, in *models.SchemaProject) (*models.SchemaProject, error) {
	existing, err := s.store.GetByWidgetKey(ctx, widgetKey)
	if err != nil {
		return nil, err
	}
	if err := validateDraft(in); err != nil {
		return nil, err
	}

	in.ID = existing.ID
	in.WidgetKey = existing.WidgetKey
	in.CreatedAt = existing.CreatedAt
	if in.Schema == nil {
		in.Schema = &tree.Node{}
	}
	models.Normalize(in)
	in.UpdatedAt = time.Now().UnixMilli()

	if err := s.store.Put(ctx, in); err != nil {
		return nil, err
	}

	s.composer.Invalidate(widgetKey)
	s.announce("updated", widgetKey)
	return in, nil
}

// Get returns the schema stored under widgetKey.
func (s *Service) Get(ctx context.Context, widgetKey string) (*models.SchemaProject, error) {
	return s.store.GetByWidgetKey(ctx, widgetKey)
}

// Exists reports whether widgetKey is taken.
func (s *Service) Exists(ctx context.Context, widgetKey string) (bool, error) {
	return s.store.KeyExists(ctx, widgetKey)
}

// List returns a page of schemas with an optional type filter.
func (s *Service) List(ctx context.Context, limit, offset int, typ, sort string) ([]*models.SchemaProject, int, error) {
	return s.store.List(ctx, limit, offset, typ, sort)
}

// Search returns schemas whose name or description matches the query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	return s.store.Search(ctx, query, limit)
}

// Delete removes the schema stored under widgetKey. References to the key
// held by other schemas are left in place; they resolve to placeholders from
// now on.
func (s *Service) Delete(ctx context.Context, widgetKey string) error {
	existing, err := s.store.GetByWidgetKey(ctx, widgetKey)
	if err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, existing.ID); err != nil {
		return err
	}

	s.composer.Invalidate(widgetKey)
	s.composer.Drop(widgetKey)
	s.announce("deleted", widgetKey)
	return nil
}

// Resolve runs (or reuses) the composition session for widgetKey and returns
// its snapshot. A degraded run still returns a renderable snapshot carrying
// the unresolved tree; the error reports why resolution fell back.
func (s *Service) Resolve(ctx context.Context, widgetKey string) (composer.Snapshot, error) {
	schema, err := s.store.GetByWidgetKey(ctx, widgetKey)
	if err != nil {
		return composer.Snapshot{}, err
	}
	return s.composer.Refresh(ctx, widgetKey, schema.Schema)
}

// RequiredChannels returns the deduplicated channel bindings the composed
// tree under widgetKey needs.
func (s *Service) RequiredChannels(ctx context.Context, widgetKey string) ([]models.ChannelBinding, error) {
	schema, err := s.store.GetByWidgetKey(ctx, widgetKey)
	if err != nil {
		return nil, err
	}
	return s.collector.Collect(ctx, schema.Schema)
}

// RenderContext merges the latest live payloads into the alias table for
// widgetKey: the schema's own bindings, the "self" entry, then nested
// requirements.
func (s *Service) RenderContext(ctx context.Context, widgetKey string) (models.RenderContext, error) {
	schema, err := s.store.GetByWidgetKey(ctx, widgetKey)
	if err != nil {
		return nil, err
	}
	required, err := s.collector.Collect(ctx, schema.Schema)
	if err != nil {
		return nil, err
	}
	return binding.Merge(schema, required, s.live), nil
}

// Preview returns the resolved tree for widgetKey with every interpolation
// expression the live context can satisfy filled in. Expressions without a
// bound alias or matching payload path stay verbatim.
func (s *Service) Preview(ctx context.Context, widgetKey string) (*tree.Node, error) {
	snap, err := s.Resolve(ctx, widgetKey)
	if err != nil && snap.Tree == nil {
		return nil, err
	}
	rctx, err := s.RenderContext(ctx, widgetKey)
	if err != nil {
		return nil, err
	}
	return binding.Interpolate(snap.Tree, rctx), nil
}

// ImportBundle applies an exported document or bundle to the store and fires
// the matching change events. Satisfies the importer contract used by the
// bundle directory watcher.
func (s *Service) ImportBundle(ctx context.Context, data []byte) (*bundle.Result, error) {
	res, err := bundle.Import(ctx, s.store, data)
	if err != nil {
		return nil, err
	}
	for _, key := range res.Created {
		s.composer.Invalidate(key)
		s.announce("created", key)
	}
	for _, key := range res.Updated {
		s.composer.Invalidate(key)
		s.announce("updated", key)
	}
	return res, nil
}

// ExportBundle produces the bundle document for widgetKey: the schema plus
// its transitive references.
func (s *Service) ExportBundle(ctx context.Context, widgetKey string) (*bundle.Bundle, error) {
	return bundle.Export(ctx, s.store, widgetKey)
}

func (s *Service) announce(kind, widgetKey string) {
	if s.onChange != nil {
		s.onChange(kind, widgetKey)
	}
}

func validateDraft(in *models.SchemaProject) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
	)
	if err != nil {
		return fmt.Errorf("%v: %w", err, apperr.ErrInvalid)
	}
	return nil
}

// deriveWidgetKey builds a stable key from the schema name, falling back to a
// timestamp key when the name sanitizes to nothing.
func deriveWidgetKey(name string) string {
	key := strings.Trim(models.SanitizeAlias(name), "_")
	if key == "" {
		return fmt.Sprintf("widget.%d", time.Now().UnixMilli())
	}
	return "widget." + key
}
