// Package models defines the domain types shared by the folder tree,
// the view adapters and the content managers.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType tags the kind of content a view owns. It selects the adapter
// that handles the view and never changes after the view is created.
type ContentType uint8

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeDocument
	ContentTypeGrid
	ContentTypeBoard
	ContentTypeCalendar
	ContentTypeChat
)

var contentTypeNames = map[ContentType]string{
	ContentTypeDocument: "document",
	ContentTypeGrid:     "grid",
	ContentTypeBoard:    "board",
	ContentTypeCalendar: "calendar",
	ContentTypeChat:     "chat",
}

func (t ContentType) String() string {
	if s, ok := contentTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	_, ok := contentTypeNames[t]
	return ok
}

// ParseContentType parses the lower-case name of a content type.
func ParseContentType(s string) (ContentType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range contentTypeNames {
		if name == s {
			return t, nil
		}
	}
	return ContentTypeUnknown, fmt.Errorf("models: unknown content type %q", s)
}

// MarshalText encodes t by name. Workspace roots carry no content and
// encode as the empty string.
func (t ContentType) MarshalText() ([]byte, error) {
	if t == ContentTypeUnknown {
		return []byte{}, nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("models: cannot marshal content type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *ContentType) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = ContentTypeUnknown
		return nil
	}
	v, err := ParseContentType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ImportType is the caller's hint about the format of imported bytes.
type ImportType string

const (
	ImportTypeDocument  ImportType = "document"
	ImportTypeMarkdown  ImportType = "markdown"
	ImportTypePlainText ImportType = "plain_text"
	ImportTypeCSV       ImportType = "csv"
)

// ContentType returns the content type an import of t produces, or
// ContentTypeUnknown for unrecognised hints.
func (t ImportType) ContentType() ContentType {
	switch t {
	case ImportTypeDocument, ImportTypeMarkdown, ImportTypePlainText, "":
		return ContentTypeDocument
	case ImportTypeCSV:
		return ContentTypeGrid
	default:
		return ContentTypeUnknown
	}
}

// InitialDataKind selects how a new view's content is initialised.
type InitialDataKind uint8

const (
	InitialEmpty InitialDataKind = iota
	InitialRaw
	InitialDuplicate
)

func (k InitialDataKind) String() string {
	switch k {
	case InitialEmpty:
		return "empty"
	case InitialRaw:
		return "data"
	case InitialDuplicate:
		return "duplicate_data"
	default:
		return fmt.Sprintf("initial(%d)", uint8(k))
	}
}

// InitialData is the payload handed to CreateViewWithData. Bytes is nil for
// InitialEmpty and holds the content type's wire format otherwise.
type InitialData struct {
	Kind  InitialDataKind
	Bytes []byte
}

// EmptyData asks the content manager for its default empty content.
func EmptyData() InitialData { return InitialData{Kind: InitialEmpty} }

// RawData carries caller-supplied content in the adapter's wire format.
func RawData(b []byte) InitialData { return InitialData{Kind: InitialRaw, Bytes: b} }

// DuplicateData carries bytes produced by DuplicateView of another view.
func DuplicateData(b []byte) InitialData { return InitialData{Kind: InitialDuplicate, Bytes: b} }

// CreateViewParams describes a view to be created with content.
type CreateViewParams struct {
	ParentID uuid.UUID
	ViewID   uuid.UUID
	Name     string
	Icon     string
	Type     ContentType
	Initial  InitialData
}

// ImportedUnit is one content item produced by an import.
type ImportedUnit struct {
	ViewID   uuid.UUID
	Type     ContentType
	Snapshot EncodedSnapshot
}

// View is a node of a workspace tree. The workspace root has a nil ParentID
// and its ID equals WorkspaceID.
type View struct {
	ID          uuid.UUID   `json:"id"`
	WorkspaceID uuid.UUID   `json:"workspace_id"`
	ParentID    uuid.UUID   `json:"parent_id"`
	Name        string      `json:"name"`
	Icon        string      `json:"icon,omitempty"`
	Type        ContentType `json:"content_type"`
	Position    int         `json:"position"`
	CreatedBy   int64       `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsRoot reports whether v is a workspace root.
func (v View) IsRoot() bool { return v.ParentID == uuid.Nil }
