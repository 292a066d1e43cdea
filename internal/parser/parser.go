// Package parser splits Markdown into YAML frontmatter and a flat sequence
// of block-level segments (headings, list items, quotes, code fences,
// paragraphs) that importers turn into native content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
	todoRe     = regexp.MustCompile(`^[-*+]\s+\[([ xX])\]\s+(.*)$`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Segment kinds.
const (
	SegmentHeading  = "heading"
	SegmentBullet   = "bullet"
	SegmentNumbered = "numbered"
	SegmentTodo     = "todo"
	SegmentQuote    = "quote"
	SegmentCode     = "code"
	SegmentDivider  = "divider"
	SegmentText     = "text"
)

// Segment is one block-level element of a Markdown body.
type Segment struct {
	Kind     string
	Level    int    // heading level
	Checked  bool   // todo state
	Language string // code fence info string
	Text     string
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Segments    []Segment
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, segments, tags and the title from raw Markdown.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	segs := segment(body)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Segments:    segs,
		Tags:        extractTags(segs, fm),
		Title:       deriveTitle(fm, segs),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Missing or invalid frontmatter leaves everything in
// the body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), nil
	}
	return fm, body, nil
}

// segment lexes body line by line. Consecutive plain lines are joined into
// one paragraph; blank lines end a paragraph.
func segment(body string) []Segment {
	var (
		out     []Segment
		para    []string
		inCode  bool
		code    []string
		codeLng string
	)
	flush := func() {
		if len(para) > 0 {
			out = append(out, Segment{Kind: SegmentText, Text: strings.Join(para, " ")})
			para = nil
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)

		if inCode {
			if strings.HasPrefix(trimmed, "```") {
				out = append(out, Segment{Kind: SegmentCode, Language: codeLng, Text: strings.Join(code, "\n")})
				inCode, code, codeLng = false, nil, ""
				continue
			}
			code = append(code, line)
			continue
		}

		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "```"):
			flush()
			inCode = true
			codeLng = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
		case trimmed == "---" || trimmed == "***" || trimmed == "___":
			flush()
			out = append(out, Segment{Kind: SegmentDivider})
		case headingRe.MatchString(trimmed):
			flush()
			m := headingRe.FindStringSubmatch(trimmed)
			out = append(out, Segment{Kind: SegmentHeading, Level: len(m[1]), Text: strings.TrimSpace(m[2])})
		case todoRe.MatchString(trimmed):
			flush()
			m := todoRe.FindStringSubmatch(trimmed)
			out = append(out, Segment{Kind: SegmentTodo, Checked: m[1] != " ", Text: m[2]})
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "), strings.HasPrefix(trimmed, "+ "):
			flush()
			out = append(out, Segment{Kind: SegmentBullet, Text: strings.TrimSpace(trimmed[2:])})
		case numberedRe.MatchString(trimmed):
			flush()
			out = append(out, Segment{Kind: SegmentNumbered, Text: numberedRe.FindStringSubmatch(trimmed)[1]})
		case strings.HasPrefix(trimmed, ">"):
			flush()
			out = append(out, Segment{Kind: SegmentQuote, Text: strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))})
		default:
			para = append(para, trimmed)
		}
	}
	if inCode {
		// Unterminated fence: keep what we have.
		out = append(out, Segment{Kind: SegmentCode, Language: codeLng, Text: strings.Join(code, "\n")})
	}
	flush()
	return out
}

// extractTags collects #tags from the prose segments and from the
// frontmatter "tags" list. Code blocks are skipped.
func extractTags(segs []Segment, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if raw, ok := fm["tags"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, seg := range segs {
		if seg.Kind == SegmentCode {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(seg.Text, -1) {
			add(m[1])
		}
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first level-1 heading, otherwise "".
func deriveTitle(fm map[string]any, segs []Segment) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, s := range segs {
		if s.Kind == SegmentHeading && s.Level == 1 {
			return s.Text
		}
	}
	return ""
}
