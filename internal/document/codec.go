package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// WireVersion is the current version of the document wire format.
const WireVersion = 1

type wire struct {
	Version  int   `json:"version"`
	Document *Data `json:"document"`
}

// Encode serialises d to the document wire format used by duplication,
// imports and snapshot payloads.
func Encode(d *Data) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(wire{Version: WireVersion, Document: d})
}

// Decode parses the document wire format. Malformed JSON, unknown versions
// and structurally invalid documents are reported as apperr.ErrInvalidData.
func Decode(b []byte) (*Data, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, apperr.InvalidData("document: empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var w wire
	if err := dec.Decode(&w); err != nil {
		return nil, apperr.InvalidData("document: decode: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, apperr.InvalidData("document: trailing data after document")
	}
	if w.Version != WireVersion {
		return nil, apperr.InvalidData("document: unsupported wire version %d", w.Version)
	}
	if w.Document == nil {
		return nil, apperr.InvalidData("document: missing document")
	}
	d := w.Document
	if d.Meta.ChildrenMap == nil {
		d.Meta.ChildrenMap = make(map[string][]string)
	}
	if d.Meta.TextMap == nil {
		d.Meta.TextMap = make(map[string]string)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// EncodeSnapshot wraps the wire encoding of d in a snapshot envelope.
func EncodeSnapshot(d *Data) (models.EncodedSnapshot, error) {
	payload, err := Encode(d)
	if err != nil {
		return models.EncodedSnapshot{}, err
	}
	return models.EncodedSnapshot{
		Type:    models.ContentTypeDocument,
		Version: WireVersion,
		Payload: payload,
	}, nil
}

// DecodeSnapshot restores a document from a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(s models.EncodedSnapshot) (*Data, error) {
	if s.Type != models.ContentTypeDocument {
		return nil, apperr.InvalidData("document: snapshot holds %s content", s.Type)
	}
	if s.Version != WireVersion {
		return nil, apperr.InvalidData("document: unsupported snapshot version %d", s.Version)
	}
	return Decode(s.Payload)
}
