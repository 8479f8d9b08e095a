package store

import (
	"context"

	"github.com/tesselcraft/tessera/internal/models"
)

// SchemaStore is the persistence interface the rest of the system depends
// on. Consumers take this interface (or a subset of it) rather than the
// concrete *DB so tests can substitute stores freely.
type SchemaStore interface {
	// Put creates or replaces a schema keyed by id. A widget-key collision
	// with a different document fails with apperr.ErrDuplicateWidgetKey.
	Put(ctx context.Context, s *models.SchemaProject) error
	GetByID(ctx context.Context, id string) (*models.SchemaProject, error)
	GetByWidgetKey(ctx context.Context, key string) (*models.SchemaProject, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	GetAll(ctx context.Context) ([]*models.SchemaProject, error)
	List(ctx context.Context, limit, offset int, typ, sort string) ([]*models.SchemaProject, int, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	DeleteByID(ctx context.Context, id string) error

	// Bundle-import ledger, used by the auto-import watcher to skip files
	// whose content has not changed since the last import.
	BundleChecksum(ctx context.Context, path string) (string, error)
	SetBundleChecksum(ctx context.Context, path, checksum string) error

	Close() error
}

// Verify *DB satisfies SchemaStore at compile time.
var _ SchemaStore = (*DB)(nil)
