//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS schemas_fts USING fts5(
			widget_key UNINDEXED,
			name,
			description,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, widgetKey, name, description string) error {
	_, _ = tx.Exec(`DELETE FROM schemas_fts WHERE widget_key = ?`, widgetKey)
	_, err := tx.Exec(`INSERT INTO schemas_fts (widget_key, name, description) VALUES (?, ?, ?)`,
		widgetKey, name, description)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, widgetKey string) {
	_, _ = tx.Exec(`DELETE FROM schemas_fts WHERE widget_key = ?`, widgetKey)
}

// Search performs an FTS5 full-text search over schema names and descriptions
// and returns matches with highlighted snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT widget_key,
		       name,
		       snippet(schemas_fts, 2, '<b>', '</b>', '...', 64)
		FROM schemas_fts
		WHERE schemas_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.WidgetKey, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
