// Package bundle implements schema import and export: single-document JSON
// files and multi-schema bundles, plus the directory sync and watcher that
// auto-import bundle files dropped into the bundle directory.
package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/models"
)

// Version is the bundle format version this build reads and writes.
const Version = "1.0"

// Bundle is the multi-schema export form. MainSchema names the widget key
// the bundle was exported for; Schemas holds it plus its transitive
// references.
type Bundle struct {
	Version    string                  `json:"version"`
	ExportedAt string                  `json:"exportedAt"`
	MainSchema string                  `json:"mainSchema,omitempty"`
	Schemas    []*models.SchemaProject `json:"schemas"`
}

// Store is the schema persistence surface import and export need.
type Store interface {
	GetByWidgetKey(ctx context.Context, key string) (*models.SchemaProject, error)
	Put(ctx context.Context, s *models.SchemaProject) error
}

// Ledger records which bundle files have been imported, keyed by path.
type Ledger interface {
	BundleChecksum(ctx context.Context, path string) (string, error)
	SetBundleChecksum(ctx context.Context, path, checksum string) error
}

// Importer is implemented by the layer that owns post-import side effects
// (events, cache invalidation). Sync and Watch import through it instead of
// writing to the store directly.
type Importer interface {
	ImportBundle(ctx context.Context, data []byte) (*Result, error)
}

// Result reports what an import did, by widget key.
type Result struct {
	Created    []string `json:"created"`
	Updated    []string `json:"updated"`
	MainSchema string   `json:"mainSchema,omitempty"`
}

// Parse reads either export form: a bundle document or a bare single-schema
// document. It returns the contained schemas and the bundle's main widget
// key, if any. Parse validates shape only; Import applies document-level
// validation.
func Parse(data []byte) ([]*models.SchemaProject, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, "", fmt.Errorf("bundle: document must be a JSON object: %w", apperr.ErrInvalid)
	}

	// The version field distinguishes a bundle from a bare schema document.
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, "", fmt.Errorf("bundle: decode: %w", err)
	}

	if probe.Version != "" {
		var b Bundle
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, "", fmt.Errorf("bundle: decode bundle: %w", err)
		}
		if b.Version != Version {
			return nil, "", fmt.Errorf("bundle: unsupported version %q: %w", b.Version, apperr.ErrInvalid)
		}
		return b.Schemas, b.MainSchema, nil
	}

	var s models.SchemaProject
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, "", fmt.Errorf("bundle: decode schema: %w", err)
	}
	return []*models.SchemaProject{&s}, "", nil
}

// validateDoc enforces the fields every imported document must carry.
func validateDoc(s *models.SchemaProject) error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.WidgetKey, validation.Required),
	); err != nil {
		return err
	}
	if s.Schema == nil {
		return fmt.Errorf("schema: cannot be blank")
	}
	return nil
}
