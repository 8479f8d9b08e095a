package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/tree"
)

const schemaColumns = `id, widget_key, name, description, type,
	channel_keys, channel_aliases, self_channel_key, nested_schemas, tree,
	created_at, updated_at`

// SearchResult is one search hit: enough to identify a schema and show why
// it matched.
type SearchResult struct {
	WidgetKey string `json:"widgetKey"`
	Name      string `json:"name"`
	Snippet   string `json:"snippet"`
}

// Put creates or replaces a schema keyed by id. The caller owns timestamp
// and id policy; the row is written exactly as given. A widget_key taken by
// a different document fails with apperr.ErrDuplicateWidgetKey so callers
// can tell the collision apart from other storage errors.
func (db *DB) Put(ctx context.Context, s *models.SchemaProject) error {
	channelKeys, err := encodeJSONColumn(s.ChannelKeys, "[]")
	if err != nil {
		return fmt.Errorf("store: encode channel keys: %w", err)
	}
	aliases, err := encodeJSONColumn(s.ChannelAliases, "[]")
	if err != nil {
		return fmt.Errorf("store: encode channel aliases: %w", err)
	}
	nested, err := encodeJSONColumn(s.NestedSchemas, "[]")
	if err != nil {
		return fmt.Errorf("store: encode nested schemas: %w", err)
	}
	treeJSON := "{}"
	if s.Schema != nil {
		raw, err := json.Marshal(s.Schema)
		if err != nil {
			return fmt.Errorf("store: encode tree: %w", err)
		}
		treeJSON = string(raw)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schemas (`+schemaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			widget_key       = excluded.widget_key,
			name             = excluded.name,
			description      = excluded.description,
			type             = excluded.type,
			channel_keys     = excluded.channel_keys,
			channel_aliases  = excluded.channel_aliases,
			self_channel_key = excluded.self_channel_key,
			nested_schemas   = excluded.nested_schemas,
			tree             = excluded.tree,
			created_at       = excluded.created_at,
			updated_at       = excluded.updated_at
	`, s.ID, s.WidgetKey, s.Name, s.Description, string(s.Type),
		channelKeys, aliases, s.SelfChannelKey, nested, treeJSON,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("store: put %q: %w", s.WidgetKey, apperr.ErrDuplicateWidgetKey)
		}
		return fmt.Errorf("store: put %q: %w", s.WidgetKey, err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, s.WidgetKey, s.Name, s.Description); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns the schema stored under id, or apperr.ErrNotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*models.SchemaProject, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+schemaColumns+` FROM schemas WHERE id = ?`, id)
	return scanSchema(row)
}

// GetByWidgetKey returns the schema referenced by key, or apperr.ErrNotFound.
func (db *DB) GetByWidgetKey(ctx context.Context, key string) (*models.SchemaProject, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+schemaColumns+` FROM schemas WHERE widget_key = ?`, key)
	return scanSchema(row)
}

// KeyExists reports whether any schema is stored under key.
func (db *DB) KeyExists(ctx context.Context, key string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM schemas WHERE widget_key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: key exists: %w", err)
	}
	return true, nil
}

// GetAll returns every stored schema ordered by widget key. The stable order
// keeps owner scans (channel alias lookups) deterministic.
func (db *DB) GetAll(ctx context.Context) ([]*models.SchemaProject, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+schemaColumns+` FROM schemas ORDER BY widget_key`)
	if err != nil {
		return nil, fmt.Errorf("store: get all: %w", err)
	}
	defer rows.Close()

	var out []*models.SchemaProject
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List returns a page of schemas with an optional type filter. sort is one
// of "updated_at" (descending, the default), "name", or "widget_key".
func (db *DB) List(ctx context.Context, limit, offset int, typ, sort string) ([]*models.SchemaProject, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	order := "updated_at DESC"
	switch sort {
	case "name":
		order = "name"
	case "widget_key":
		order = "widget_key"
	}

	where := ""
	args := []any{}
	if typ != "" {
		where = " WHERE type = ?"
		args = append(args, typ)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schemas`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+schemaColumns+` FROM schemas`+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []*models.SchemaProject
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// DeleteByID removes a schema. Deleting is not cascading: documents that
// reference the removed widget key keep their references and resolve to
// not-found placeholders thereafter.
func (db *DB) DeleteByID(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() // best-effort on failure path

	var widgetKey string
	err = tx.QueryRowContext(ctx, `SELECT widget_key FROM schemas WHERE id = ?`, id).Scan(&widgetKey)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}

	ftsDelete(tx, widgetKey)
	if _, err := tx.ExecContext(ctx, `DELETE FROM schemas WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return tx.Commit()
}

// BundleChecksum returns the recorded checksum for an imported bundle file,
// or empty string when the file has never been imported.
func (db *DB) BundleChecksum(ctx context.Context, path string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx,
		`SELECT checksum FROM bundle_imports WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: bundle checksum: %w", err)
	}
	return cs, nil
}

// SetBundleChecksum records the checksum of an imported bundle file.
func (db *DB) SetBundleChecksum(ctx context.Context, path, checksum string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO bundle_imports (path, checksum) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("store: set bundle checksum: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSchema(row scanner) (*models.SchemaProject, error) {
	var (
		s           models.SchemaProject
		typ         string
		channelKeys string
		aliases     string
		nested      string
		treeJSON    string
	)
	err := row.Scan(&s.ID, &s.WidgetKey, &s.Name, &s.Description, &typ,
		&channelKeys, &aliases, &s.SelfChannelKey, &nested, &treeJSON,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan schema: %w", err)
	}

	s.Type = models.SchemaType(typ)
	if err := decodeJSONColumn(channelKeys, &s.ChannelKeys); err != nil {
		return nil, fmt.Errorf("store: decode channel keys: %w", err)
	}
	if err := decodeJSONColumn(aliases, &s.ChannelAliases); err != nil {
		return nil, fmt.Errorf("store: decode channel aliases: %w", err)
	}
	if err := decodeJSONColumn(nested, &s.NestedSchemas); err != nil {
		return nil, fmt.Errorf("store: decode nested schemas: %w", err)
	}
	node, err := tree.Decode([]byte(treeJSON))
	if err != nil {
		return nil, fmt.Errorf("store: decode tree: %w", err)
	}
	s.Schema = node
	return &s, nil
}

func encodeJSONColumn(v any, empty string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		return empty, nil
	}
	return string(raw), nil
}

func decodeJSONColumn(raw string, target any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}
