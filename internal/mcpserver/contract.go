package mcpserver

// ImportFormatContract describes how imported Markdown and plain text
// become document blocks. LLM consumers should read it before importing.
const ImportFormatContract = `# Folio Import Format

Every document view holds a tree of blocks under one page block. Imports
build that tree from Markdown or plain text.

## Markdown

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – becomes the first heading
---                                 #   when the body has no "# " heading

# Heading 1

Paragraph text. Consecutive lines are joined into one paragraph.

- bulleted item
1. numbered item
- [ ] open todo
- [x] done todo

> quote

` + "```" + `go
code block, the info string is kept as the language
` + "```" + `

---
` + "```" + `

## Rules

1. **Frontmatter is optional.** Only ` + "`" + `title` + "`" + ` is read; other keys are dropped.
2. **Headings** deeper than level 3 are stored as level 3.
3. **Lists are flat.** Indentation does not nest items.
4. **Encoding** is UTF-8. Other encodings are rejected.
5. **The title** of a document is the text of its first heading, or of its
   first non-empty block when there is no heading. Search uses it.

## Plain text

Every non-empty line becomes one paragraph. Leading and trailing spaces are
trimmed.

## Import by URL

The ` + "`" + `import_url` + "`" + ` tool accepts http and https URLs and base64 data URIs
with a ` + "`" + `text/markdown` + "`" + ` or ` + "`" + `text/plain` + "`" + ` media type. Files ending in ` + "`" + `.md` + "`" + ` or
` + "`" + `.markdown` + "`" + ` are imported as Markdown, ` + "`" + `.txt` + "`" + ` as plain text. Loopback and
cloud metadata hosts are refused. Files are limited to 2 MB.
`
