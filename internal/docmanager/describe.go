package docmanager

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/document"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

const (
	keyPrefix = "documents/"
	keySuffix = ".snap"
)

// Key returns the storage key of the snapshot of id.
func Key(id uuid.UUID) string { return keyPrefix + id.String() + keySuffix }

var _ index.Describer = (*Manager)(nil)

// KeyPrefix implements index.Describer.
func (m *Manager) KeyPrefix() string { return keyPrefix }

// ViewIDFromKey implements index.Describer.
func (m *Manager) ViewIDFromKey(key string) (uuid.UUID, error) {
	name, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("docmanager: key %q: %w", key, apperr.ErrNotFound)
	}
	name, ok = strings.CutSuffix(name, keySuffix)
	if !ok || strings.Contains(name, "/") {
		return uuid.Nil, fmt.Errorf("docmanager: key %q: %w", key, apperr.ErrNotFound)
	}
	id, err := uuid.Parse(name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("docmanager: key %q: %w", key, apperr.ErrNotFound)
	}
	return id, nil
}

// Describe implements index.Describer. It decodes a snapshot blob written
// by the manager, or copied into the snapshot root from elsewhere.
func (m *Manager) Describe(key string, data []byte) (index.Entry, error) {
	id, err := m.ViewIDFromKey(key)
	if err != nil {
		return index.Entry{}, err
	}
	snap, err := models.UnmarshalSnapshot(data)
	if err != nil {
		return index.Entry{}, err
	}
	doc, err := document.DecodeSnapshot(snap)
	if err != nil {
		return index.Entry{}, err
	}
	return index.Entry{
		Row: index.DocumentRow{
			ViewID:   id,
			Title:    doc.Title(),
			Checksum: storage.Checksum(data),
		},
		Body: searchBody(doc),
	}, nil
}

// searchBody is the catalogued text of doc: its plain text followed by a
// line of tags.
func searchBody(doc *document.Data) string {
	body := doc.PlainText()
	if tags := doc.Tags(); len(tags) > 0 {
		body += "tags: " + strings.Join(tags, " ") + "\n"
	}
	return body
}
