package folder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
)

// Event kinds reported to the EventFunc.
const (
	EventViewCreated = "view.created"
	EventViewDeleted = "view.deleted"
	EventViewOpened  = "view.opened"
	EventViewClosed  = "view.closed"
	EventViewUpdated = "view.updated"
)

// EventFunc receives view lifecycle events.
type EventFunc func(kind string, v models.View)

// Service persists workspace trees and dispatches view operations to the
// registered handlers.
type Service struct {
	tree     index.Tree
	registry *Registry
	logger   *slog.Logger
	onEvent  EventFunc
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEvents reports lifecycle events to fn.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// NewService creates a folder service.
func NewService(tree index.Tree, registry *Registry, opts ...Option) *Service {
	s := &Service{tree: tree, registry: registry, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) emit(kind string, v models.View) {
	if s.onEvent != nil {
		s.onEvent(kind, v)
	}
}

// CreateWorkspace creates a workspace root and runs the bootstrap hook of
// every handler. If any hook fails, content created so far is removed,
// no tree rows remain and the hook's error is returned.
func (s *Service) CreateWorkspace(ctx context.Context, uid int64, name string) (*models.View, error) {
	id := uuid.New()
	root := &models.View{ID: id, WorkspaceID: id, Name: name, CreatedBy: uid}
	if err := s.tree.InsertView(ctx, root); err != nil {
		return nil, fmt.Errorf("folder: create workspace: %w", err)
	}

	b := newNestedViewBuilder(id, uid)
	var err error
	for _, h := range s.registry.Handlers() {
		if err = h.CreateWorkspaceView(ctx, uid, b); err != nil {
			err = fmt.Errorf("folder: bootstrap %s views: %w", h.ContentType(), err)
			break
		}
	}
	var created []models.View
	if err == nil {
		for _, v := range b.Views() {
			if err = s.tree.InsertView(ctx, &v); err != nil {
				err = fmt.Errorf("folder: insert bootstrap view: %w", err)
				break
			}
			created = append(created, v)
		}
	}
	if err != nil {
		s.discardWorkspace(ctx, id, b.Views())
		return nil, err
	}

	s.logger.Info("folder: workspace created",
		slog.String("workspace_id", id.String()), slog.Int("views", len(created)))
	s.emit(EventViewCreated, *root)
	for _, v := range created {
		s.emit(EventViewCreated, v)
	}
	return root, nil
}

func (s *Service) discardWorkspace(ctx context.Context, id uuid.UUID, reserved []models.View) {
	for _, v := range reserved {
		if h, err := s.registry.Get(v.Type); err == nil {
			_ = h.DeleteView(ctx, v.ID)
		}
	}
	if err := s.tree.DeleteWorkspace(ctx, id); err != nil {
		s.logger.Error("folder: discard workspace failed",
			slog.String("workspace_id", id.String()), slog.String("error", err.Error()))
	}
}

// GetView returns the tree node id.
func (s *Service) GetView(ctx context.Context, id uuid.UUID) (*models.View, error) {
	return s.tree.GetView(ctx, id)
}

// ListChildren returns the children of parentID in position order.
func (s *Service) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.View, error) {
	if _, err := s.tree.GetView(ctx, parentID); err != nil {
		return nil, err
	}
	return s.tree.ChildViews(ctx, parentID)
}

// WorkspaceViews returns every view of a workspace, root first.
func (s *Service) WorkspaceViews(ctx context.Context, workspaceID uuid.UUID) ([]models.View, error) {
	views, err := s.tree.WorkspaceViews(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("folder: workspace %s: %w", workspaceID, apperr.ErrNotFound)
	}
	return views, nil
}

// CreateView creates content from p.Initial and adds the view under
// p.ParentID. A nil p.ViewID is replaced by a fresh id.
func (s *Service) CreateView(ctx context.Context, uid int64, p models.CreateViewParams) (*models.View, *models.EncodedSnapshot, error) {
	parent, h, err := s.prepare(ctx, p.ParentID, p.Type)
	if err != nil {
		return nil, nil, err
	}
	if p.ViewID == uuid.Nil {
		p.ViewID = uuid.New()
	}
	snap, err := h.CreateViewWithData(ctx, uid, p)
	if err != nil {
		return nil, nil, fmt.Errorf("folder: create view: %w", err)
	}
	v, err := s.attach(ctx, h, parent, uid, p.ViewID, p.Name, p.Icon, p.Type)
	if err != nil {
		return nil, nil, err
	}
	return v, snap, nil
}

// CreateDefaultView adds a view with empty content under parentID.
func (s *Service) CreateDefaultView(ctx context.Context, uid int64, parentID uuid.UUID, name, icon string, ct models.ContentType) (*models.View, error) {
	parent, h, err := s.prepare(ctx, parentID, ct)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	if err := h.CreateDefaultView(ctx, uid, parentID, id, name, ct); err != nil {
		return nil, fmt.Errorf("folder: create default view: %w", err)
	}
	return s.attach(ctx, h, parent, uid, id, name, icon, ct)
}

// DuplicateView creates a sibling of id named "<name> (copy)" holding the
// current content of id.
func (s *Service) DuplicateView(ctx context.Context, uid int64, id uuid.UUID) (*models.View, error) {
	src, h, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := h.DuplicateView(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("folder: duplicate view: %w", err)
	}
	v, _, err := s.CreateView(ctx, uid, models.CreateViewParams{
		ParentID: src.ParentID,
		Name:     src.Name + " (copy)",
		Icon:     src.Icon,
		Type:     src.Type,
		Initial:  models.DuplicateData(data),
	})
	return v, err
}

// ImportView creates a view under parentID from imported bytes.
func (s *Service) ImportView(ctx context.Context, uid int64, parentID uuid.UUID, name string, it models.ImportType, data []byte) (*models.View, []models.ImportedUnit, error) {
	ct := it.ContentType()
	if ct == models.ContentTypeUnknown {
		return nil, nil, apperr.InvalidData("folder: unknown import type %q", it)
	}
	parent, h, err := s.prepare(ctx, parentID, ct)
	if err != nil {
		return nil, nil, err
	}
	id := uuid.New()
	units, err := h.ImportFromBytes(ctx, uid, id, name, it, data)
	if err != nil {
		return nil, nil, fmt.Errorf("folder: import: %w", err)
	}
	v, err := s.attach(ctx, h, parent, uid, id, name, "", ct)
	if err != nil {
		return nil, nil, err
	}
	return v, units, nil
}

// ImportFile creates a view under parentID from the file at path. When the
// handler cannot convert the file the view starts with empty content.
func (s *Service) ImportFile(ctx context.Context, uid int64, parentID uuid.UUID, ct models.ContentType, path string) (*models.View, error) {
	parent, h, err := s.prepare(ctx, parentID, ct)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	name := fileViewName(path)
	if err := h.ImportFromFilePath(ctx, id, name, path); err != nil {
		return nil, fmt.Errorf("folder: import file: %w", err)
	}
	if err := h.CreateDefaultView(ctx, uid, parentID, id, name, ct); err != nil {
		return nil, fmt.Errorf("folder: import file: %w", err)
	}
	return s.attach(ctx, h, parent, uid, id, name, "", ct)
}

func fileViewName(path string) string {
	name := path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// OpenView asks the handler to load the content of id.
func (s *Service) OpenView(ctx context.Context, id uuid.UUID) error {
	v, h, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if err := h.OpenView(ctx, id); err != nil {
		return fmt.Errorf("folder: open view: %w", err)
	}
	s.emit(EventViewOpened, *v)
	return nil
}

// CloseView asks the handler to release the content of id.
func (s *Service) CloseView(ctx context.Context, id uuid.UUID) error {
	v, h, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if err := h.CloseView(ctx, id); err != nil {
		return fmt.Errorf("folder: close view: %w", err)
	}
	s.emit(EventViewClosed, *v)
	return nil
}

// UpdateContent replaces the content of the open view id with data parsed
// as it. Handlers that do not implement ContentEditor reject the call.
func (s *Service) UpdateContent(ctx context.Context, id uuid.UUID, it models.ImportType, data []byte) error {
	v, h, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	ed, ok := h.(ContentEditor)
	if !ok {
		return apperr.InvalidData("folder: %s views cannot be edited", v.Type)
	}
	if err := ed.ReplaceContent(ctx, id, it, data); err != nil {
		return fmt.Errorf("folder: update content: %w", err)
	}
	s.emit(EventViewUpdated, *v)
	return nil
}

// DeleteView removes id and its descendants, children first. Tree nodes are
// removed even when a handler fails to clean up content, unless the content
// manager is unavailable. Deleting a view
// that is no longer in the tree succeeds.
func (s *Service) DeleteView(ctx context.Context, id uuid.UUID) error {
	v, err := s.tree.GetView(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.deleteTree(ctx, *v)
}

func (s *Service) deleteTree(ctx context.Context, v models.View) error {
	children, err := s.tree.ChildViews(ctx, v.ID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.deleteTree(ctx, c); err != nil {
			return err
		}
	}
	if !v.IsRoot() {
		if h, err := s.registry.Get(v.Type); err != nil {
			s.logger.Warn("folder: no handler to delete content",
				slog.String("view_id", v.ID.String()), slog.String("error", err.Error()))
		} else if err := h.DeleteView(ctx, v.ID); err != nil {
			// The content still exists; keep the node so the delete can be retried.
			if apperr.KindOf(err) == apperr.KindManagerUnavailable {
				return fmt.Errorf("folder: delete view %s: %w", v.ID, err)
			}
			s.logger.Warn("folder: content cleanup failed",
				slog.String("view_id", v.ID.String()), slog.String("error", err.Error()))
		}
	}
	if err := s.tree.DeleteView(ctx, v.ID); err != nil {
		return err
	}
	s.emit(EventViewDeleted, v)
	return nil
}

// PublishView returns the durable snapshot of id tagged with its type.
func (s *Service) PublishView(ctx context.Context, uid int64, id uuid.UUID) (models.GatheredSnapshot, error) {
	_, h, err := s.resolve(ctx, id)
	if err != nil {
		return models.GatheredSnapshot{}, err
	}
	g, err := h.GatherPublishSnapshot(ctx, uid, id)
	if err != nil {
		return models.GatheredSnapshot{}, fmt.Errorf("folder: publish view: %w", err)
	}
	return g, nil
}

// resolve looks up a content view and its handler.
func (s *Service) resolve(ctx context.Context, id uuid.UUID) (*models.View, Handler, error) {
	v, err := s.tree.GetView(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if v.IsRoot() {
		return nil, nil, apperr.InvalidData("folder: view %s is a workspace root", id)
	}
	h, err := s.registry.Get(v.Type)
	if err != nil {
		return nil, nil, err
	}
	return v, h, nil
}

// prepare checks the parent of a new view and finds the handler for ct.
func (s *Service) prepare(ctx context.Context, parentID uuid.UUID, ct models.ContentType) (*models.View, Handler, error) {
	parent, err := s.tree.GetView(ctx, parentID)
	if err != nil {
		return nil, nil, fmt.Errorf("folder: parent: %w", err)
	}
	h, err := s.registry.Get(ct)
	if err != nil {
		return nil, nil, err
	}
	return parent, h, nil
}

// attach adds a view whose content h has created. If the tree insert
// fails the content is deleted again.
func (s *Service) attach(ctx context.Context, h Handler, parent *models.View, uid int64, id uuid.UUID, name, icon string, ct models.ContentType) (*models.View, error) {
	v := &models.View{
		ID:          id,
		WorkspaceID: parent.WorkspaceID,
		ParentID:    parent.ID,
		Name:        name,
		Icon:        icon,
		Type:        ct,
		CreatedBy:   uid,
	}
	if err := s.tree.InsertView(ctx, v); err != nil {
		_ = h.DeleteView(ctx, id)
		return nil, fmt.Errorf("folder: insert view: %w", err)
	}
	s.emit(EventViewCreated, *v)
	return v, nil
}
