// Package folder maintains workspace trees and forwards every lifecycle
// event on a view to the Handler registered for the view's content type.
package folder

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/models"
)

// Handler implements the view operations for one content type. The folder
// service never inspects content; it only routes identifiers and the bytes
// a Handler produced itself.
//
// Implementations must be safe for concurrent use on distinct view ids.
// CloseView and DeleteView report success even when content cleanup fails.
type Handler interface {
	// ContentType is the type of every view this handler accepts.
	ContentType() models.ContentType

	// CreateWorkspaceView runs once for each new workspace before it is
	// returned to the user. Views reserved on b are added to the tree.
	CreateWorkspaceView(ctx context.Context, uid int64, b *NestedViewBuilder) error

	OpenView(ctx context.Context, viewID uuid.UUID) error
	CloseView(ctx context.Context, viewID uuid.UUID) error
	DeleteView(ctx context.Context, viewID uuid.UUID) error

	// DuplicateView returns the current content of viewID in the handler's
	// wire format, suitable for models.DuplicateData.
	DuplicateView(ctx context.Context, viewID uuid.UUID) ([]byte, error)

	GatherPublishSnapshot(ctx context.Context, uid int64, viewID uuid.UUID) (models.GatheredSnapshot, error)

	// CreateViewWithData creates content from p.Initial. The returned
	// snapshot is nil when the handler does not produce one.
	CreateViewWithData(ctx context.Context, uid int64, p models.CreateViewParams) (*models.EncodedSnapshot, error)

	// CreateDefaultView creates empty content. Creating content that already
	// exists succeeds.
	CreateDefaultView(ctx context.Context, uid int64, parentID, viewID uuid.UUID, name string, ct models.ContentType) error

	ImportFromBytes(ctx context.Context, uid int64, viewID uuid.UUID, name string, it models.ImportType, data []byte) ([]models.ImportedUnit, error)

	// ImportFromFilePath converts the file at path. Formats a handler cannot
	// convert yet succeed without creating content.
	ImportFromFilePath(ctx context.Context, viewID uuid.UUID, name, path string) error
}

// ContentEditor is implemented by handlers whose content can be replaced
// while the view is open.
type ContentEditor interface {
	ReplaceContent(ctx context.Context, viewID uuid.UUID, it models.ImportType, data []byte) error
}

// NestedViewBuilder collects the views a bootstrap hook adds under a new
// workspace root.
type NestedViewBuilder struct {
	workspaceID uuid.UUID
	uid         int64

	mu    sync.Mutex
	views []models.View
}

func newNestedViewBuilder(workspaceID uuid.UUID, uid int64) *NestedViewBuilder {
	return &NestedViewBuilder{workspaceID: workspaceID, uid: uid}
}

// Reserve allocates a child view of the workspace root and returns the
// parameters to create its content with. The view is added to the tree
// once every hook has succeeded.
func (b *NestedViewBuilder) Reserve(name, icon string, ct models.ContentType) models.CreateViewParams {
	p := models.CreateViewParams{
		ParentID: b.workspaceID,
		ViewID:   uuid.New(),
		Name:     name,
		Icon:     icon,
		Type:     ct,
		Initial:  models.EmptyData(),
	}
	b.mu.Lock()
	b.views = append(b.views, models.View{
		ID:          p.ViewID,
		WorkspaceID: b.workspaceID,
		ParentID:    b.workspaceID,
		Name:        name,
		Icon:        icon,
		Type:        ct,
		CreatedBy:   b.uid,
	})
	b.mu.Unlock()
	return p
}

// Views returns the reserved views in reservation order.
func (b *NestedViewBuilder) Views() []models.View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.View(nil), b.views...)
}
