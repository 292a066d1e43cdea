package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/folder"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
)

// ViewService is the folder-tree surface the API drives.
type ViewService interface {
	CreateWorkspace(ctx context.Context, uid int64, name string) (*models.View, error)
	WorkspaceViews(ctx context.Context, workspaceID uuid.UUID) ([]models.View, error)
	GetView(ctx context.Context, id uuid.UUID) (*models.View, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.View, error)
	CreateView(ctx context.Context, uid int64, p models.CreateViewParams) (*models.View, *models.EncodedSnapshot, error)
	CreateDefaultView(ctx context.Context, uid int64, parentID uuid.UUID, name, icon string, ct models.ContentType) (*models.View, error)
	DuplicateView(ctx context.Context, uid int64, id uuid.UUID) (*models.View, error)
	ImportView(ctx context.Context, uid int64, parentID uuid.UUID, name string, it models.ImportType, data []byte) (*models.View, []models.ImportedUnit, error)
	OpenView(ctx context.Context, id uuid.UUID) error
	CloseView(ctx context.Context, id uuid.UUID) error
	UpdateContent(ctx context.Context, id uuid.UUID, it models.ImportType, data []byte) error
	DeleteView(ctx context.Context, id uuid.UUID) error
	PublishView(ctx context.Context, uid int64, id uuid.UUID) (models.GatheredSnapshot, error)
}

// Searcher runs full-text queries over document content.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
}

var (
	_ ViewService = (*folder.Service)(nil)
	_ Searcher    = (*index.DB)(nil)
)
