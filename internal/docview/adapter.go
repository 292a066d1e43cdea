// Package docview adapts the document content manager to the folder
// service's Handler contract.
package docview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/docmanager"
	"github.com/starford/folio/internal/document"
	"github.com/starford/folio/internal/folder"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/ref"
)

// Name and icon of the view every new workspace starts with.
const (
	StarterName = "Getting started"
	StarterIcon = "⭐️"
)

// Adapter is the folder.Handler for document views. It holds the manager
// weakly and resolves it at the start of every operation.
type Adapter struct {
	manager  ref.Weak[docmanager.Manager]
	logger   *slog.Logger
	template func() []byte
}

var (
	_ folder.Handler       = (*Adapter)(nil)
	_ folder.ContentEditor = (*Adapter)(nil)
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for swallowed close and delete failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithStarterTemplate replaces the bundled starter template.
func WithStarterTemplate(b []byte) Option {
	return func(a *Adapter) { a.template = func() []byte { return b } }
}

// New returns an adapter for m. The adapter does not keep m alive.
func New(m *docmanager.Manager, opts ...Option) *Adapter {
	a := &Adapter{
		manager:  ref.Make(m),
		logger:   slog.Default(),
		template: document.StarterTemplate,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) ContentType() models.ContentType { return models.ContentTypeDocument }

func (a *Adapter) mustMatch(op string, ct models.ContentType) {
	if ct != models.ContentTypeDocument {
		panic(&apperr.ContractViolation{Op: op, Want: models.ContentTypeDocument.String(), Got: ct.String()})
	}
}

// CreateWorkspaceView adds the starter page to a new workspace. A template
// that fails to parse fails the workspace.
func (a *Adapter) CreateWorkspaceView(ctx context.Context, uid int64, b *folder.NestedViewBuilder) error {
	if _, err := a.manager.Resolve(); err != nil {
		return err
	}
	data, err := document.ParseTemplate(a.template())
	if err != nil {
		return fmt.Errorf("docview: starter template: %w", err)
	}
	payload, err := document.Encode(data)
	if err != nil {
		return fmt.Errorf("docview: starter template: %w", err)
	}
	p := b.Reserve(StarterName, StarterIcon, models.ContentTypeDocument)
	p.Initial = models.RawData(payload)
	if _, err := a.CreateViewWithData(ctx, uid, p); err != nil {
		return fmt.Errorf("docview: starter view: %w", err)
	}
	return nil
}

func (a *Adapter) OpenView(ctx context.Context, viewID uuid.UUID) error {
	m, err := a.manager.Resolve()
	if err != nil {
		return err
	}
	return m.Open(ctx, viewID)
}

// CloseView never fails on manager errors; they are logged.
func (a *Adapter) CloseView(ctx context.Context, viewID uuid.UUID) error {
	m, err := a.manager.Resolve()
	if err != nil {
		return err
	}
	if err := m.Close(ctx, viewID); err != nil {
		a.logger.Warn("docview: close failed",
			slog.String("view_id", viewID.String()), slog.String("error", err.Error()))
	}
	return nil
}

// DeleteView never fails on manager errors; they are logged so the tree
// node can still be removed.
func (a *Adapter) DeleteView(ctx context.Context, viewID uuid.UUID) error {
	m, err := a.manager.Resolve()
	if err != nil {
		return err
	}
	if err := m.Delete(ctx, viewID); err != nil {
		a.logger.Error("docview: delete failed",
			slog.String("view_id", viewID.String()), slog.String("error", err.Error()))
	}
	return nil
}

// ReplaceContent swaps the content of the open view for data converted
// from it. The view must be open.
func (a *Adapter) ReplaceContent(ctx context.Context, viewID uuid.UUID, it models.ImportType, raw []byte) error {
	m, err := a.manager.Resolve()
	if err != nil {
		return err
	}
	data, err := document.FromImport(it, raw)
	if err != nil {
		return err
	}
	return m.Update(ctx, viewID, func(d *document.Data) error {
		*d = *data
		return nil
	})
}

func (a *Adapter) DuplicateView(ctx context.Context, viewID uuid.UUID) ([]byte, error) {
	m, err := a.manager.Resolve()
	if err != nil {
		return nil, err
	}
	data, err := m.ReadCurrent(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return document.Encode(data)
}

func (a *Adapter) GatherPublishSnapshot(ctx context.Context, _ int64, viewID uuid.UUID) (models.GatheredSnapshot, error) {
	m, err := a.manager.Resolve()
	if err != nil {
		return models.GatheredSnapshot{}, err
	}
	snap, err := m.EncodedFromDisk(ctx, viewID)
	if err != nil {
		return models.GatheredSnapshot{}, err
	}
	return models.GatheredSnapshot{Type: models.ContentTypeDocument, Snapshot: snap}, nil
}

func (a *Adapter) CreateViewWithData(ctx context.Context, uid int64, p models.CreateViewParams) (*models.EncodedSnapshot, error) {
	a.mustMatch("CreateViewWithData", p.Type)
	m, err := a.manager.Resolve()
	if err != nil {
		return nil, err
	}
	var data *document.Data
	switch p.Initial.Kind {
	case models.InitialEmpty:
	case models.InitialRaw, models.InitialDuplicate:
		data, err = document.Decode(p.Initial.Bytes)
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperr.InvalidData("docview: unknown initial data kind %s", p.Initial.Kind)
	}
	snap, err := m.Create(ctx, uid, p.ViewID, data)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// CreateDefaultView treats existing content as success.
func (a *Adapter) CreateDefaultView(ctx context.Context, uid int64, _, viewID uuid.UUID, _ string, ct models.ContentType) error {
	a.mustMatch("CreateDefaultView", ct)
	m, err := a.manager.Resolve()
	if err != nil {
		return err
	}
	if _, err := m.Create(ctx, uid, viewID, nil); err != nil && apperr.KindOf(err) != apperr.KindAlreadyExists {
		return err
	}
	return nil
}

func (a *Adapter) ImportFromBytes(ctx context.Context, uid int64, viewID uuid.UUID, _ string, it models.ImportType, raw []byte) ([]models.ImportedUnit, error) {
	m, err := a.manager.Resolve()
	if err != nil {
		return nil, err
	}
	data, err := document.FromImport(it, raw)
	if err != nil {
		return nil, err
	}
	snap, err := m.Create(ctx, uid, viewID, data)
	if err != nil {
		return nil, err
	}
	return []models.ImportedUnit{{ViewID: viewID, Type: models.ContentTypeDocument, Snapshot: snap}}, nil
}

// ImportFromFilePath does not convert files yet. It succeeds without
// creating content.
func (a *Adapter) ImportFromFilePath(_ context.Context, viewID uuid.UUID, name, path string) error {
	if _, err := a.manager.Resolve(); err != nil {
		return err
	}
	a.logger.Debug("docview: file import not supported, skipping",
		slog.String("view_id", viewID.String()), slog.String("name", name), slog.String("path", path))
	return nil
}
