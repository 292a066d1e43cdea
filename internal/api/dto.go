package api

import (
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
)

var contentTypeNames = []any{"document", "grid", "board", "calendar", "chat"}

var importTypeNames = []any{
	string(models.ImportTypeDocument),
	string(models.ImportTypeMarkdown),
	string(models.ImportTypePlainText),
	string(models.ImportTypeCSV),
}

// notNilID rejects the zero UUID, which validation.Required accepts.
var notNilID = validation.By(func(v any) error {
	if id, _ := v.(uuid.UUID); id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
})

// CreateWorkspaceRequest is the request body for creating a workspace.
type CreateWorkspaceRequest struct {
	Name string `json:"name" example:"Personal"`
}

func (r CreateWorkspaceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

// CreateViewRequest is the request body for creating a view. Data, when
// present, is the content in the type's wire format; otherwise the view
// starts with default content.
type CreateViewRequest struct {
	ParentID    uuid.UUID       `json:"parent_id"`
	Name        string          `json:"name" example:"Meeting notes"`
	Icon        string          `json:"icon,omitempty" example:"📝"`
	ContentType string          `json:"content_type" example:"document"`
	Data        json.RawMessage `json:"data,omitempty"`
}

func (r CreateViewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ParentID, notNilID),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Icon, validation.Length(0, 16)),
		validation.Field(&r.ContentType, validation.Required, validation.In(contentTypeNames...)),
	)
}

// ImportRequest is the JSON form of an import. Content is the raw text.
type ImportRequest struct {
	Name       string `json:"name" example:"Readme"`
	ImportType string `json:"import_type" example:"markdown"`
	Content    string `json:"content"`
}

func (r ImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.ImportType, validation.Required, validation.In(importTypeNames...)),
	)
}

// UpdateContentRequest replaces the content of an open view. ImportType
// defaults to the type's own wire format.
type UpdateContentRequest struct {
	ImportType string `json:"import_type,omitempty" example:"markdown"`
	Content    string `json:"content"`
}

func (r UpdateContentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ImportType, validation.In(importTypeNames...)),
	)
}

// ViewListResponse wraps a list of views.
type ViewListResponse struct {
	Views []models.View `json:"views"`
}

// ImportedUnitDTO describes one content item created by an import.
type ImportedUnitDTO struct {
	ViewID      uuid.UUID          `json:"view_id"`
	ContentType models.ContentType `json:"content_type"`
	Size        int                `json:"size"`
}

// ImportResponse is returned after a successful import.
type ImportResponse struct {
	View  *models.View      `json:"view"`
	Units []ImportedUnitDTO `json:"units"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
