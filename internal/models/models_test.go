package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/apperr"
)

func TestSnapshotEnvelope(t *testing.T) {
	in := EncodedSnapshot{Type: ContentTypeDocument, Version: 3, Payload: []byte(`{"a":1}`)}
	raw := in.Marshal()

	out, err := UnmarshalSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Decoded payload must not alias the input buffer.
	raw[len(raw)-1] = 'X'
	assert.Equal(t, byte('}'), out.Payload[len(out.Payload)-1])
}

func TestSnapshotEnvelopeEmptyPayload(t *testing.T) {
	out, err := UnmarshalSnapshot(EncodedSnapshot{Type: ContentTypeGrid}.Marshal())
	require.NoError(t, err)
	assert.Equal(t, ContentTypeGrid, out.Type)
	assert.Empty(t, out.Payload)
}

func TestSnapshotEnvelopeRejectsMalformed(t *testing.T) {
	good := EncodedSnapshot{Type: ContentTypeDocument, Version: 1, Payload: []byte("abc")}.Marshal()

	badMagic := append([]byte{}, good...)
	badMagic[0] = 'X'

	badType := append([]byte{}, good...)
	badType[6] = 200

	badVersion := append([]byte{}, good...)
	badVersion[5] = 9

	cases := map[string][]byte{
		"short":     good[:5],
		"magic":     badMagic,
		"type":      badType,
		"version":   badVersion,
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte{}, good...), 'z'),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalSnapshot(b)
			assert.True(t, errors.Is(err, apperr.ErrInvalidData), "err = %v", err)
		})
	}
}

func TestContentTypeText(t *testing.T) {
	for _, ct := range []ContentType{ContentTypeDocument, ContentTypeGrid, ContentTypeBoard, ContentTypeCalendar, ContentTypeChat} {
		got, err := ParseContentType(ct.String())
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}
	_, err := ParseContentType("spreadsheet")
	assert.Error(t, err)
}

func TestViewJSON(t *testing.T) {
	root := View{ID: uuid.New(), Name: "Workspace"}
	b, err := json.Marshal(root)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"content_type":""`)

	var back View
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.IsRoot())
	assert.Equal(t, ContentTypeUnknown, back.Type)

	doc := View{ID: uuid.New(), ParentID: root.ID, Type: ContentTypeDocument}
	b, err = json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"content_type":"document"`)
}
