// Package document defines the native content model of document views:
// a page block owning a tree of blocks, plus the wire format, plain-text
// extraction and the converters used by imports and the starter template.
package document

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
)

// Block types understood by PlainText and the importers.
const (
	BlockPage         = "page"
	BlockParagraph    = "paragraph"
	BlockHeading      = "heading"
	BlockBulletedList = "bulleted_list"
	BlockNumberedList = "numbered_list"
	BlockTodoList     = "todo_list"
	BlockQuote        = "quote"
	BlockCode         = "code"
	BlockDivider      = "divider"
	BlockCallout      = "callout"
)

// Block is one node of the document tree. ChildrenID keys Meta.ChildrenMap;
// ExternalID keys Meta.TextMap when the block carries text.
type Block struct {
	ID           string         `json:"id"`
	Type         string         `json:"ty"`
	Parent       string         `json:"parent"`
	ChildrenID   string         `json:"children"`
	Data         map[string]any `json:"data,omitempty"`
	ExternalID   string         `json:"external_id,omitempty"`
	ExternalType string         `json:"external_type,omitempty"`
}

// Meta holds the ordered children lists and block texts.
type Meta struct {
	ChildrenMap map[string][]string `json:"children_map"`
	TextMap     map[string]string   `json:"text_map,omitempty"`
}

// Data is a full document.
type Data struct {
	PageID string           `json:"page_id"`
	Blocks map[string]Block `json:"blocks"`
	Meta   Meta             `json:"meta"`
}

// New returns a document containing only a page block.
func New() *Data {
	d := &Data{
		Blocks: make(map[string]Block),
		Meta: Meta{
			ChildrenMap: make(map[string][]string),
			TextMap:     make(map[string]string),
		},
	}
	page := d.newBlock(BlockPage, "", nil)
	d.PageID = page
	return d
}

// Default returns the content of a freshly created empty document: a page
// with one empty paragraph.
func Default() *Data {
	d := New()
	d.Append(d.PageID, BlockParagraph, "", nil)
	return d
}

func (d *Data) newBlock(typ, parent string, data map[string]any) string {
	id := uuid.NewString()
	children := uuid.NewString()
	d.Blocks[id] = Block{
		ID:         id,
		Type:       typ,
		Parent:     parent,
		ChildrenID: children,
		Data:       data,
	}
	d.Meta.ChildrenMap[children] = []string{}
	return id
}

// Append adds a block of typ with text under parent and returns its id.
func (d *Data) Append(parent, typ, text string, data map[string]any) string {
	id := d.newBlock(typ, parent, data)
	if text != "" {
		b := d.Blocks[id]
		b.ExternalID = uuid.NewString()
		b.ExternalType = "text"
		d.Blocks[id] = b
		d.Meta.TextMap[b.ExternalID] = text
	}
	p := d.Blocks[parent]
	d.Meta.ChildrenMap[p.ChildrenID] = append(d.Meta.ChildrenMap[p.ChildrenID], id)
	return id
}

// Children returns the ordered child ids of block id.
func (d *Data) Children(id string) []string {
	b, ok := d.Blocks[id]
	if !ok {
		return nil
	}
	return d.Meta.ChildrenMap[b.ChildrenID]
}

// Text returns the text of block id, or "".
func (d *Data) Text(id string) string {
	b, ok := d.Blocks[id]
	if !ok || b.ExternalID == "" {
		return ""
	}
	return d.Meta.TextMap[b.ExternalID]
}

// Validate checks the structural invariants of d: the page block exists and
// has no parent, every referenced child exists and points back to its
// parent, and every block is reachable from the page exactly once.
func (d *Data) Validate() error {
	if d == nil {
		return apperr.InvalidData("document: nil")
	}
	page, ok := d.Blocks[d.PageID]
	if !ok {
		return apperr.InvalidData("document: page block %q missing", d.PageID)
	}
	if page.Parent != "" {
		return apperr.InvalidData("document: page block has parent %q", page.Parent)
	}

	seen := make(map[string]struct{}, len(d.Blocks))
	var walk func(id string) error
	walk = func(id string) error {
		if _, dup := seen[id]; dup {
			return apperr.InvalidData("document: block %q reachable twice", id)
		}
		seen[id] = struct{}{}
		b := d.Blocks[id]
		if b.ID != id {
			return apperr.InvalidData("document: block key %q holds id %q", id, b.ID)
		}
		if b.ExternalID != "" {
			if _, ok := d.Meta.TextMap[b.ExternalID]; !ok {
				return apperr.InvalidData("document: text %q of block %q missing", b.ExternalID, id)
			}
		}
		for _, child := range d.Meta.ChildrenMap[b.ChildrenID] {
			c, ok := d.Blocks[child]
			if !ok {
				return apperr.InvalidData("document: child %q of %q missing", child, id)
			}
			if c.Parent != id {
				return apperr.InvalidData("document: child %q has parent %q, want %q", child, c.Parent, id)
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(d.PageID); err != nil {
		return err
	}
	if len(seen) != len(d.Blocks) {
		return apperr.InvalidData("document: %d of %d blocks unreachable", len(d.Blocks)-len(seen), len(d.Blocks))
	}
	return nil
}

// Walk visits every block reachable from the page in document order with
// its depth (the page has depth 0).
func (d *Data) Walk(fn func(b Block, depth int)) {
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		b, ok := d.Blocks[id]
		if !ok {
			return
		}
		fn(b, depth)
		for _, c := range d.Meta.ChildrenMap[b.ChildrenID] {
			visit(c, depth+1)
		}
	}
	visit(d.PageID, 0)
}

// PlainText renders the text of every block, one per line, in document order.
func (d *Data) PlainText() string {
	var sb strings.Builder
	d.Walk(func(b Block, depth int) {
		if b.Type == BlockPage {
			return
		}
		text := d.Meta.TextMap[b.ExternalID]
		if text == "" {
			return
		}
		if depth > 1 {
			sb.WriteString(strings.Repeat("  ", depth-1))
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	})
	return sb.String()
}

// SetTags records tags on the page block. Tags are stored as []any so
// they compare equal after a wire round trip.
func (d *Data) SetTags(tags []string) {
	if len(tags) == 0 {
		return
	}
	page := d.Blocks[d.PageID]
	if page.Data == nil {
		page.Data = make(map[string]any)
	}
	vals := make([]any, len(tags))
	for i, t := range tags {
		vals[i] = t
	}
	page.Data["tags"] = vals
	d.Blocks[d.PageID] = page
}

// Tags returns the tags recorded on the page block.
func (d *Data) Tags() []string {
	raw, _ := d.Blocks[d.PageID].Data["tags"].([]any)
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Title returns the text of the first heading, falling back to the first
// non-empty block.
func (d *Data) Title() string {
	var heading, first string
	d.Walk(func(b Block, _ int) {
		text := strings.TrimSpace(d.Meta.TextMap[b.ExternalID])
		if text == "" {
			return
		}
		if first == "" {
			first = text
		}
		if heading == "" && b.Type == BlockHeading {
			heading = text
		}
	})
	if heading != "" {
		return heading
	}
	return first
}

// Equal reports whether a and b describe the same document tree. Block and
// text ids are ignored; structure, types, data and text must match.
func Equal(a, b *Data) bool {
	return reflect.DeepEqual(outline(a), outline(b))
}

type node struct {
	Type     string
	Text     string
	Data     string
	Children []node
}

func outline(d *Data) node {
	if d == nil {
		return node{}
	}
	var build func(id string) node
	build = func(id string) node {
		b := d.Blocks[id]
		n := node{Type: b.Type, Text: d.Meta.TextMap[b.ExternalID]}
		if len(b.Data) > 0 {
			n.Data = fmt.Sprint(b.Data)
		}
		for _, c := range d.Meta.ChildrenMap[b.ChildrenID] {
			n.Children = append(n.Children, build(c))
		}
		return n
	}
	return build(d.PageID)
}
