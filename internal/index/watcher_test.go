package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/storage"
)

// watcherTestEnv sets up a snapshot root, FS storage and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store, testDB(t)
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

func catalogued(db *DB, id uuid.UUID) bool {
	row, err := db.GetDocument(context.Background(), id)
	return err == nil && !row.Deleted
}

func TestWatcher_NewFileCatalogued(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, textDescriber{}, quietLogger(), func(kind string, id uuid.UUID) {
		mu.Lock()
		events = append(events, kind+":"+id.String())
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	id := uuid.New()
	_ = os.WriteFile(filepath.Join(root, filepath.FromSlash(textKey(id))), []byte("New\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return catalogued(db, id)
	}, "new file not catalogued by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:"+id.String() {
				return true
			}
		}
		return false
	}, "expected created callback")
}

func TestWatcher_DeleteRemovesFromCatalog(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	id := uuid.New()
	path := filepath.Join(root, filepath.FromSlash(textKey(id)))
	_ = os.WriteFile(path, []byte("Delete Me\n"), 0o644)
	if err := Sync(context.Background(), db, store, textDescriber{}, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if !catalogued(db, id) {
		t.Fatal("precondition: file should be catalogued")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, textDescriber{}, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(path)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !catalogued(db, id)
	}, "deleted file still catalogued")
}

func TestWatcher_TombstoneSurvivesRewrite(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	id := uuid.New()
	_ = db.MarkDeleted(context.Background(), id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, textDescriber{}, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	other := uuid.New()
	_ = os.WriteFile(filepath.Join(root, filepath.FromSlash(textKey(id))), []byte("Zombie\n"), 0o644)
	_ = os.WriteFile(filepath.Join(root, filepath.FromSlash(textKey(other))), []byte("Other\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return catalogued(db, other)
	}, "control file not catalogued")

	row, err := db.GetDocument(context.Background(), id)
	if err != nil || !row.Deleted {
		t.Errorf("tombstone lost: %+v, %v", row, err)
	}
}
