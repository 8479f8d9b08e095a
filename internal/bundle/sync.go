package bundle

import (
	"context"
	"log/slog"

	"github.com/tesselcraft/tessera/internal/bundledir"
)

// Sync walks the bundle directory and imports every file whose content
// changed since its last import, skipping unchanged files by checksum.
// Files that vanished from disk are left alone: deleting a bundle file never
// deletes schemas.
func Sync(ctx context.Context, ledger Ledger, files bundledir.Provider, importer Importer, logger *slog.Logger) error {
	metas, err := files.List("")
	if err != nil {
		return err
	}

	for _, m := range metas {
		recorded, err := ledger.BundleChecksum(ctx, m.Path)
		if err != nil {
			logger.Warn("sync: ledger lookup failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if recorded == m.Checksum {
			continue
		}

		data, err := files.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := importer.ImportBundle(ctx, data)
		if err != nil {
			logger.Warn("sync: import failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := ledger.SetBundleChecksum(ctx, m.Path, m.Checksum); err != nil {
			logger.Warn("sync: ledger update failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Info("sync: imported bundle",
			slog.String("path", m.Path),
			slog.Int("created", len(res.Created)),
			slog.Int("updated", len(res.Updated)))
	}
	return nil
}
