package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

func testApp(t *testing.T, backend string) *application {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = backend
	cfg.Storage.FS.Path = filepath.Join(t.TempDir(), "snapshots")
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "folio.db")
	require.NoError(t, cfg.Validate())

	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	require.NoError(t, err)
	return app
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	_, err := newApplication(nil)
	require.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	store, fs, err := openStore(context.Background(), StorageConfig{Backend: StorageMemory})
	require.NoError(t, err)
	assert.Nil(t, fs)
	assert.IsType(t, &storage.Memory{}, store)

	dir := filepath.Join(t.TempDir(), "nested", "snapshots")
	store, fs, err = openStore(context.Background(), StorageConfig{Backend: StorageFS, FS: FSConfig{Path: dir}})
	require.NoError(t, err)
	require.NotNil(t, fs)
	assert.Same(t, fs, store)
	assert.DirExists(t, dir)
}

func TestBuildSyncsExistingSnapshots(t *testing.T) {
	ctx := context.Background()
	app := testApp(t, StorageFS)
	logger := app.newLogger()

	st, err := app.build(ctx, logger)
	require.NoError(t, err)
	root, err := st.views.CreateWorkspace(ctx, 1, "Home")
	require.NoError(t, err)
	views, err := st.views.WorkspaceViews(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	starter := views[1]
	st.close(logger)

	// A fresh catalog rebuilt from the snapshot directory finds the starter.
	app.config.SQLite.Path = filepath.Join(t.TempDir(), "rebuilt.db")
	st, err = app.build(ctx, logger)
	require.NoError(t, err)
	defer st.close(logger)
	row, err := st.db.GetDocument(ctx, starter.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, row.Title)
}

func TestImportPath(t *testing.T) {
	ctx := context.Background()
	app := testApp(t, StorageMemory)
	logger := app.newLogger()
	st, err := app.build(ctx, logger)
	require.NoError(t, err)
	defer st.close(logger)

	root, err := st.views.CreateWorkspace(ctx, 1, "Home")
	require.NoError(t, err)

	dir := t.TempDir()
	md := filepath.Join(dir, "Reading list.md")
	require.NoError(t, os.WriteFile(md, []byte("# Books\n\n- Dune\n"), 0o644))
	pdf := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))

	v, err := importPath(ctx, st.views, 1, root.ID, md)
	require.NoError(t, err)
	assert.Equal(t, "Reading list", v.Name)
	data, err := st.manager.ReadCurrent(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Books", data.Title())

	v, err = importPath(ctx, st.views, 1, root.ID, pdf)
	require.NoError(t, err)
	assert.Equal(t, "scan", v.Name)
	assert.Equal(t, models.ContentTypeDocument, v.Type)

	// CSV maps to grid content, which has no handler.
	csv := filepath.Join(dir, "table.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b\n"), 0o644))
	_, err = importPath(ctx, st.views, 1, root.ID, csv)
	require.Error(t, err)
}
