package index

import (
	"context"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/models"
)

// Catalog is the content-item side of the index. Content managers depend on
// this interface rather than on *DB.
type Catalog interface {
	UpsertDocument(ctx context.Context, row DocumentRow, body string) error
	GetDocument(ctx context.Context, id uuid.UUID) (*DocumentRow, error)
	MarkDeleted(ctx context.Context, id uuid.UUID) error
	RemoveDocument(ctx context.Context, id uuid.UUID) error
	AllChecksums(ctx context.Context) (map[uuid.UUID]string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Tree is the workspace-tree side of the index.
type Tree interface {
	InsertView(ctx context.Context, v *models.View) error
	GetView(ctx context.Context, id uuid.UUID) (*models.View, error)
	ChildViews(ctx context.Context, parentID uuid.UUID) ([]models.View, error)
	WorkspaceViews(ctx context.Context, workspaceID uuid.UUID) ([]models.View, error)
	DeleteView(ctx context.Context, id uuid.UUID) error
	DeleteWorkspace(ctx context.Context, workspaceID uuid.UUID) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ Catalog = (*DB)(nil)
	_ Tree    = (*DB)(nil)
)
