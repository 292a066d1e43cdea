package models

import (
	"bytes"
	"encoding/binary"

	"github.com/starford/folio/internal/apperr"
)

// snapshotMagic prefixes every encoded snapshot envelope.
var snapshotMagic = []byte("FSNP")

const (
	envelopeVersion = 1
	headerLen       = 4 + 2 + 1 + 4 + 4
	// maxPayload bounds the declared payload length of a decoded envelope.
	maxPayload = 64 << 20
)

// EncodedSnapshot is the full state of one content item at a point in time.
// Payload is opaque outside the content type's manager; Version is the
// payload format version chosen by that manager.
type EncodedSnapshot struct {
	Type    ContentType
	Version uint32
	Payload []byte
}

// Marshal encodes s as:
//
//	magic "FSNP" | u16 envelope version | u8 content type | u32 payload version | u32 len | payload
//
// All integers are big-endian.
func (s EncodedSnapshot) Marshal() []byte {
	out := make([]byte, headerLen, headerLen+len(s.Payload))
	copy(out, snapshotMagic)
	binary.BigEndian.PutUint16(out[4:], envelopeVersion)
	out[6] = byte(s.Type)
	binary.BigEndian.PutUint32(out[7:], s.Version)
	binary.BigEndian.PutUint32(out[11:], uint32(len(s.Payload)))
	return append(out, s.Payload...)
}

// UnmarshalSnapshot decodes an envelope produced by Marshal. Any malformed
// input is reported as apperr.ErrInvalidData.
func UnmarshalSnapshot(b []byte) (EncodedSnapshot, error) {
	if len(b) < headerLen {
		return EncodedSnapshot{}, apperr.InvalidData("snapshot: short header (%d bytes)", len(b))
	}
	if !bytes.Equal(b[:4], snapshotMagic) {
		return EncodedSnapshot{}, apperr.InvalidData("snapshot: bad magic")
	}
	if v := binary.BigEndian.Uint16(b[4:]); v != envelopeVersion {
		return EncodedSnapshot{}, apperr.InvalidData("snapshot: unsupported envelope version %d", v)
	}
	ct := ContentType(b[6])
	if !ct.Valid() {
		return EncodedSnapshot{}, apperr.InvalidData("snapshot: unknown content type %d", b[6])
	}
	n := binary.BigEndian.Uint32(b[11:])
	if n > maxPayload || int(n) != len(b)-headerLen {
		return EncodedSnapshot{}, apperr.InvalidData("snapshot: payload length %d does not match %d", n, len(b)-headerLen)
	}
	payload := make([]byte, n)
	copy(payload, b[headerLen:])
	return EncodedSnapshot{
		Type:    ct,
		Version: binary.BigEndian.Uint32(b[7:]),
		Payload: payload,
	}, nil
}

// GatheredSnapshot is a durable snapshot tagged with the content type of
// the view it was read from, as handed to publishing.
type GatheredSnapshot struct {
	Type     ContentType
	Snapshot EncodedSnapshot
}
