package bundle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tesselcraft/tessera/internal/bundledir"
	"github.com/tesselcraft/tessera/internal/store"
	"github.com/tesselcraft/tessera/internal/testutil"
)

type dbImporter struct {
	db *store.DB
}

func (i *dbImporter) ImportBundle(ctx context.Context, data []byte) (*Result, error) {
	return Import(ctx, i.db, data)
}

// countingImporter wraps another importer to observe how often sync imports.
type countingImporter struct {
	inner Importer
	calls int
}

func (c *countingImporter) ImportBundle(ctx context.Context, data []byte) (*Result, error) {
	c.calls++
	return c.inner.ImportBundle(ctx, data)
}

// watcherTestEnv sets up a bundle dir, provider, and store for watcher tests.
func watcherTestEnv(t *testing.T) (string, bundledir.Provider, *store.DB) {
	t.Helper()
	dir := t.TempDir()
	files, err := bundledir.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestStore(t)
	return dir, files, db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func hasSchema(db *store.DB, widgetKey string) bool {
	_, err := db.GetByWidgetKey(context.Background(), widgetKey)
	return err == nil
}

func TestSync_ImportsAndSkipsUnchanged(t *testing.T) {
	_, files, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	imp := &countingImporter{inner: &dbImporter{db}}
	ctx := context.Background()

	_ = files.Write("w1.json", docJSON(t, sampleDoc("widget.w1")))

	if err := Sync(ctx, db, files, imp, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if imp.calls != 1 || !hasSchema(db, "widget.w1") {
		t.Fatalf("first sync: calls = %d, imported = %v", imp.calls, hasSchema(db, "widget.w1"))
	}

	if err := Sync(ctx, db, files, imp, logger); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if imp.calls != 1 {
		t.Errorf("unchanged file re-imported: calls = %d", imp.calls)
	}

	changed := sampleDoc("widget.w1")
	changed.Name = "Renamed"
	_ = files.Write("w1.json", docJSON(t, changed))

	if err := Sync(ctx, db, files, imp, logger); err != nil {
		t.Fatalf("third Sync: %v", err)
	}
	if imp.calls != 2 {
		t.Errorf("changed file not re-imported: calls = %d", imp.calls)
	}
	got, _ := db.GetByWidgetKey(ctx, "widget.w1")
	if got.Name != "Renamed" {
		t.Errorf("name = %q after re-import", got.Name)
	}
}

func TestSync_KeepsGoingPastBadFiles(t *testing.T) {
	_, files, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	_ = files.Write("bad.json", []byte(`{"name":"missing everything"}`))
	_ = files.Write("good.json", docJSON(t, sampleDoc("widget.good")))

	if err := Sync(ctx, db, files, &dbImporter{db}, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !hasSchema(db, "widget.good") {
		t.Error("valid file skipped because a sibling was malformed")
	}
}

func TestWatcher_NewBundleImported(t *testing.T) {
	dir, files, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, files, &dbImporter{db}, dir, logger)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "new.json"), docJSON(t, sampleDoc("widget.watched")), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return hasSchema(db, "widget.watched")
	}, "new bundle file not imported by watcher")
}

func TestWatcher_ModifiedBundleReimported(t *testing.T) {
	dir, files, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = files.Write("mod.json", docJSON(t, sampleDoc("widget.mod")))
	if err := Sync(ctx, db, files, &dbImporter{db}, logger); err != nil {
		t.Fatal(err)
	}

	go Watch(ctx, db, files, &dbImporter{db}, dir, logger)
	time.Sleep(100 * time.Millisecond)

	changed := sampleDoc("widget.mod")
	changed.Name = "Changed By Watcher"
	_ = os.WriteFile(filepath.Join(dir, "mod.json"), docJSON(t, changed), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, err := db.GetByWidgetKey(context.Background(), "widget.mod")
		return err == nil && got.Name == "Changed By Watcher"
	}, "modified bundle not re-imported by watcher")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, files, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, files, &dbImporter{db}, dir, logger)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(dir, "packs")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.json"), docJSON(t, sampleDoc("widget.deep")), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return hasSchema(db, "widget.deep")
	}, "bundle in new subdir not imported by watcher")
}

func TestWatcher_RemoveKeepsSchemas(t *testing.T) {
	dir, files, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = files.Write("keep.json", docJSON(t, sampleDoc("widget.keep")))
	if err := Sync(ctx, db, files, &dbImporter{db}, logger); err != nil {
		t.Fatal(err)
	}

	go Watch(ctx, db, files, &dbImporter{db}, dir, logger)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "keep.json"))
	time.Sleep(500 * time.Millisecond)

	if !hasSchema(db, "widget.keep") {
		t.Error("removing a bundle file must not delete its schemas")
	}
}
