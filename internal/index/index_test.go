package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// textDescriber catalogs "docs/<uuid>.txt" blobs whose first line is the title.
type textDescriber struct{}

func (textDescriber) KeyPrefix() string { return "docs/" }

func (textDescriber) ViewIDFromKey(key string) (uuid.UUID, error) {
	name, ok := strings.CutPrefix(key, "docs/")
	if !ok || !strings.HasSuffix(name, ".txt") {
		return uuid.Nil, apperr.ErrNotFound
	}
	return uuid.Parse(strings.TrimSuffix(name, ".txt"))
}

func (d textDescriber) Describe(key string, data []byte) (Entry, error) {
	id, err := d.ViewIDFromKey(key)
	if err != nil {
		return Entry{}, err
	}
	title, _, _ := strings.Cut(string(data), "\n")
	return Entry{
		Row:  DocumentRow{ViewID: id, Title: title, Checksum: storage.Checksum(data)},
		Body: string(data),
	}, nil
}

func textKey(id uuid.UUID) string { return fmt.Sprintf("docs/%s.txt", id) }

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"documents", "views"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := uuid.New()
	row := DocumentRow{ViewID: id, CreatedBy: 7, Title: "Hello", Checksum: "abc123", UpdatedAt: time.Now()}
	if err := db.UpsertDocument(ctx, row, "hello body"); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	got, err := db.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Title != "Hello" || got.Checksum != "abc123" || got.CreatedBy != 7 || got.Deleted {
		t.Errorf("row = %+v", got)
	}

	row.Title, row.Checksum, row.CreatedBy = "Hi", "def", 9
	_ = db.UpsertDocument(ctx, row, "new body")
	got, _ = db.GetDocument(ctx, id)
	if got.Title != "Hi" || got.Checksum != "def" {
		t.Errorf("row after update = %+v", got)
	}
	if got.CreatedBy != 7 {
		t.Errorf("created_by changed to %d", got.CreatedBy)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetDocument(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTombstoneBlocksUpsert(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := uuid.New()
	_ = db.UpsertDocument(ctx, DocumentRow{ViewID: id, Title: "Gone", Checksum: "1"}, "gone body")

	if err := db.MarkDeleted(ctx, id); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	if err := db.MarkDeleted(ctx, id); err != nil {
		t.Fatalf("second MarkDeleted: %v", err)
	}
	_ = db.UpsertDocument(ctx, DocumentRow{ViewID: id, Title: "Back", Checksum: "2"}, "back body")

	got, err := db.GetDocument(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Deleted || got.Title == "Back" {
		t.Errorf("tombstone overwritten: %+v", got)
	}
	sums, _ := db.AllChecksums(ctx)
	if _, ok := sums[id]; ok {
		t.Error("tombstone listed in AllChecksums")
	}
	results, _ := db.Search(ctx, "body", 10)
	if len(results) != 0 {
		t.Errorf("tombstone searchable: %+v", results)
	}
}

func TestMarkDeletedUnknownCreatesTombstone(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := uuid.New()
	if err := db.MarkDeleted(ctx, id); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetDocument(ctx, id)
	if err != nil || !got.Deleted {
		t.Errorf("row = %+v, err = %v", got, err)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := uuid.New()
	_ = db.UpsertDocument(ctx, DocumentRow{ViewID: id, Title: "Search Me", Checksum: "1"}, "uniqueword appears here")

	results, err := db.Search(ctx, "uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ViewID != id {
		t.Errorf("search results = %+v, want 1 hit for %s", results, id)
	}
}

func TestViewsTree(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ws := uuid.New()
	root := &models.View{ID: ws, WorkspaceID: ws, Name: "Workspace"}
	if err := db.InsertView(ctx, root); err != nil {
		t.Fatalf("InsertView root: %v", err)
	}

	a := &models.View{ID: uuid.New(), WorkspaceID: ws, ParentID: ws, Name: "A", Type: models.ContentTypeDocument, Icon: "⭐️"}
	b := &models.View{ID: uuid.New(), WorkspaceID: ws, ParentID: ws, Name: "B", Type: models.ContentTypeGrid}
	for _, v := range []*models.View{a, b} {
		if err := db.InsertView(ctx, v); err != nil {
			t.Fatalf("InsertView: %v", err)
		}
	}
	if a.Position != 0 || b.Position != 1 {
		t.Errorf("positions = %d, %d", a.Position, b.Position)
	}
	if err := db.InsertView(ctx, a); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate insert err = %v", err)
	}

	got, err := db.GetView(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "A" || got.Icon != "⭐️" || got.Type != models.ContentTypeDocument || got.ParentID != ws {
		t.Errorf("view = %+v", got)
	}

	rootBack, err := db.GetView(ctx, ws)
	if err != nil {
		t.Fatal(err)
	}
	if !rootBack.IsRoot() || rootBack.Type != models.ContentTypeUnknown {
		t.Errorf("root = %+v", rootBack)
	}

	children, err := db.ChildViews(ctx, ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 || children[0].ID != a.ID || children[1].ID != b.ID {
		t.Errorf("children = %+v", children)
	}

	all, _ := db.WorkspaceViews(ctx, ws)
	if len(all) != 3 || all[0].ID != ws {
		t.Errorf("workspace views = %+v", all)
	}

	if err := db.DeleteView(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteView(ctx, a.ID); err != nil {
		t.Fatalf("second DeleteView: %v", err)
	}
	if _, err := db.GetView(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := db.DeleteWorkspace(ctx, ws); err != nil {
		t.Fatal(err)
	}
	all, _ = db.WorkspaceViews(ctx, ws)
	if len(all) != 0 {
		t.Errorf("views left after DeleteWorkspace: %+v", all)
	}
}

func TestSync(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	store := storage.NewMemory()

	kept, stale, dead := uuid.New(), uuid.New(), uuid.New()
	_ = store.Write(ctx, textKey(kept), []byte("Kept\nbody"))
	_ = store.Write(ctx, "docs/not-a-view.bin", []byte("junk"))
	_ = db.UpsertDocument(ctx, DocumentRow{ViewID: stale, Title: "Stale", Checksum: "x"}, "")
	_ = db.MarkDeleted(ctx, dead)
	_ = store.Write(ctx, textKey(dead), []byte("Dead\nshould stay deleted"))

	if err := Sync(ctx, db, store, textDescriber{}, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	row, err := db.GetDocument(ctx, kept)
	if err != nil || row.Title != "Kept" {
		t.Errorf("kept row = %+v, err = %v", row, err)
	}
	if _, err := db.GetDocument(ctx, stale); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale row still present: %v", err)
	}
	row, err = db.GetDocument(ctx, dead)
	if err != nil || !row.Deleted {
		t.Errorf("tombstone resurrected: %+v, %v", row, err)
	}
}
