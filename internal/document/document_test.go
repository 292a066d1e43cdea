package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

func sample() *Data {
	d := New()
	d.Append(d.PageID, BlockHeading, "Plan", map[string]any{"level": 1})
	list := d.Append(d.PageID, BlockBulletedList, "Ship it", nil)
	d.Append(list, BlockParagraph, "with tests", nil)
	d.Append(d.PageID, BlockTodoList, "review", map[string]any{"checked": true})
	return d
}

func TestDefaultIsValid(t *testing.T) {
	d := Default()
	require.NoError(t, d.Validate())
	assert.Len(t, d.Children(d.PageID), 1)
	assert.Equal(t, "", d.PlainText())
}

func TestWireRoundTrip(t *testing.T) {
	d := sample()
	b, err := Encode(d)
	require.NoError(t, err)

	back, err := Decode(b)
	require.NoError(t, err)
	assert.True(t, Equal(d, back))
	assert.Equal(t, d.PlainText(), back.PlainText())
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := sample()
	s, err := EncodeSnapshot(d)
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeDocument, s.Type)

	env, err := models.UnmarshalSnapshot(s.Marshal())
	require.NoError(t, err)
	back, err := DecodeSnapshot(env)
	require.NoError(t, err)
	assert.True(t, Equal(d, back))
}

func TestDecodeSnapshotWrongType(t *testing.T) {
	_, err := DecodeSnapshot(models.EncodedSnapshot{Type: models.ContentTypeGrid, Version: WireVersion})
	assert.True(t, errors.Is(err, apperr.ErrInvalidData))
}

func TestEqualIgnoresIDs(t *testing.T) {
	a, b := sample(), sample()
	assert.NotEqual(t, a.PageID, b.PageID)
	assert.True(t, Equal(a, b))

	b.Append(b.PageID, BlockParagraph, "extra", nil)
	assert.False(t, Equal(a, b))
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"empty":       "  ",
		"not json":    "hello",
		"version":     `{"version":2,"document":{"page_id":"p","blocks":{},"meta":{"children_map":{}}}}`,
		"no document": `{"version":1}`,
		"no page":     `{"version":1,"document":{"page_id":"p","blocks":{},"meta":{"children_map":{}}}}`,
		"unknown":     `{"version":1,"extra":true,"document":{}}`,
		"dangling child": `{"version":1,"document":{"page_id":"p","blocks":{` +
			`"p":{"id":"p","ty":"page","parent":"","children":"c"}},` +
			`"meta":{"children_map":{"c":["ghost"]}}}}`,
		"orphan": `{"version":1,"document":{"page_id":"p","blocks":{` +
			`"p":{"id":"p","ty":"page","parent":"","children":"c"},` +
			`"o":{"id":"o","ty":"paragraph","parent":"p","children":"oc"}},` +
			`"meta":{"children_map":{"c":[],"oc":[]}}}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(in))
			assert.True(t, errors.Is(err, apperr.ErrInvalidData), "err = %v", err)
		})
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	valid, err := Encode(New())
	require.NoError(t, err)

	for name, tail := range map[string]string{
		"garbage":       "garbage",
		"second object": `{"version":1}`,
		"stray brace":   "}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(append(append([]byte(nil), valid...), tail...))
			assert.True(t, errors.Is(err, apperr.ErrInvalidData), "err = %v", err)
		})
	}

	// Trailing whitespace is not data.
	_, err = Decode(append(append([]byte(nil), valid...), " \n"...))
	assert.NoError(t, err)
}

func TestPlainTextAndTitle(t *testing.T) {
	d := sample()
	assert.Equal(t, "Plan\nShip it\n  with tests\nreview\n", d.PlainText())
	assert.Equal(t, "Plan", d.Title())

	p := New()
	p.Append(p.PageID, BlockParagraph, "  ", nil)
	p.Append(p.PageID, BlockParagraph, "first words", nil)
	assert.Equal(t, "first words", p.Title())
}

func TestStarterTemplate(t *testing.T) {
	d, err := ParseTemplate(StarterTemplate())
	require.NoError(t, err)
	require.NoError(t, d.Validate())
	assert.Equal(t, "Welcome to Folio", d.Title())
	assert.Contains(t, d.PlainText(), "Pages can be nested")

	// The template survives the wire format.
	b, err := Encode(d)
	require.NoError(t, err)
	back, err := Decode(b)
	require.NoError(t, err)
	assert.True(t, Equal(d, back))
}

func TestParseTemplateErrors(t *testing.T) {
	cases := map[string]string{
		"yaml":     "version: [",
		"version":  "version: 9\nblocks:\n  - type: paragraph\n",
		"empty":    "version: 1\nblocks: []\n",
		"no type":  "version: 1\nblocks:\n  - text: hi\n",
		"page":     "version: 1\nblocks:\n  - type: page\n",
		"deep bad": "version: 1\nblocks:\n  - type: callout\n    children:\n      - text: x\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestFromMarkdown(t *testing.T) {
	md := "---\ntitle: Trip\n---\nPack light.\n\n- passport\n- [x] tickets\n\n#### deep\n"
	d, err := FromImport(models.ImportTypeMarkdown, []byte(md))
	require.NoError(t, err)

	var types []string
	d.Walk(func(b Block, depth int) {
		if depth == 1 {
			types = append(types, b.Type)
		}
	})
	assert.Equal(t, []string{BlockHeading, BlockParagraph, BlockBulletedList, BlockTodoList, BlockHeading}, types)
	assert.Equal(t, "Trip", d.Title())

	last := d.Children(d.PageID)[4]
	assert.Equal(t, 3, d.Blocks[last].Data["level"])
}

func TestFromImportHints(t *testing.T) {
	d, err := FromImport(models.ImportTypePlainText, []byte("one\r\n\r\ntwo\n"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", d.PlainText())

	empty, err := FromImport(models.ImportTypeMarkdown, nil)
	require.NoError(t, err)
	assert.Len(t, empty.Children(empty.PageID), 1)

	_, err = FromImport(models.ImportTypeCSV, []byte("a,b"))
	assert.True(t, errors.Is(err, apperr.ErrInvalidData))

	_, err = FromImport(models.ImportTypeMarkdown, []byte{0xff, 0xfe})
	assert.True(t, errors.Is(err, apperr.ErrInvalidData))

	native, err := Encode(sample())
	require.NoError(t, err)
	d, err = FromImport("", native)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.PlainText(), "Plan"))
}

func TestFromMarkdownTags(t *testing.T) {
	md := "---\ntags:\n  - travel\n---\n# Lisbon\n\nTrams and #pastries.\n"
	d, err := FromMarkdown([]byte(md))
	require.NoError(t, err)
	assert.Equal(t, []string{"travel", "pastries"}, d.Tags())

	wire, err := Encode(d)
	require.NoError(t, err)
	back, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, d.Tags(), back.Tags())
	assert.True(t, Equal(d, back))
}
