package document

import (
	"strings"
	"unicode/utf8"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
)

// FromImport converts imported bytes into a document according to the
// caller's import-type hint. An empty hint is treated as the native wire
// format.
func FromImport(hint models.ImportType, b []byte) (*Data, error) {
	switch hint {
	case "", models.ImportTypeDocument:
		return Decode(b)
	case models.ImportTypeMarkdown:
		return FromMarkdown(b)
	case models.ImportTypePlainText:
		return FromPlainText(b)
	default:
		return nil, apperr.InvalidData("document: cannot import %q", hint)
	}
}

// FromMarkdown builds a document from Markdown. Frontmatter is dropped
// except for its title, which becomes a leading heading when the body has
// no level-1 heading of its own. Frontmatter and inline #tags are kept on
// the page block.
func FromMarkdown(b []byte) (*Data, error) {
	if !utf8.Valid(b) {
		return nil, apperr.InvalidData("document: markdown is not valid UTF-8")
	}
	res, err := parser.Parse(b)
	if err != nil {
		return nil, apperr.InvalidData("document: markdown: %v", err)
	}

	d := New()
	if res.Title != "" && !hasH1(res.Segments) {
		d.Append(d.PageID, BlockHeading, res.Title, map[string]any{"level": 1})
	}
	d.SetTags(res.Tags)
	for _, s := range res.Segments {
		switch s.Kind {
		case parser.SegmentHeading:
			level := s.Level
			if level > 3 {
				level = 3
			}
			d.Append(d.PageID, BlockHeading, s.Text, map[string]any{"level": level})
		case parser.SegmentBullet:
			d.Append(d.PageID, BlockBulletedList, s.Text, nil)
		case parser.SegmentNumbered:
			d.Append(d.PageID, BlockNumberedList, s.Text, nil)
		case parser.SegmentTodo:
			d.Append(d.PageID, BlockTodoList, s.Text, map[string]any{"checked": s.Checked})
		case parser.SegmentQuote:
			d.Append(d.PageID, BlockQuote, s.Text, nil)
		case parser.SegmentCode:
			var data map[string]any
			if s.Language != "" {
				data = map[string]any{"language": s.Language}
			}
			d.Append(d.PageID, BlockCode, s.Text, data)
		case parser.SegmentDivider:
			d.Append(d.PageID, BlockDivider, "", nil)
		default:
			d.Append(d.PageID, BlockParagraph, s.Text, nil)
		}
	}
	if len(d.Children(d.PageID)) == 0 {
		d.Append(d.PageID, BlockParagraph, "", nil)
	}
	return d, nil
}

// FromPlainText builds a document with one paragraph per non-empty line.
func FromPlainText(b []byte) (*Data, error) {
	if !utf8.Valid(b) {
		return nil, apperr.InvalidData("document: text is not valid UTF-8")
	}
	d := New()
	for _, line := range strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			d.Append(d.PageID, BlockParagraph, line, nil)
		}
	}
	if len(d.Children(d.PageID)) == 0 {
		d.Append(d.PageID, BlockParagraph, "", nil)
	}
	return d, nil
}

func hasH1(segs []parser.Segment) bool {
	for _, s := range segs {
		if s.Kind == parser.SegmentHeading && s.Level == 1 {
			return true
		}
	}
	return false
}
