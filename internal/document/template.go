package document

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateVersion is the only starter template version ParseTemplate accepts.
const TemplateVersion = 1

//go:embed assets/getting_started.yaml
var starterTemplate []byte

// StarterTemplate returns the bundled template of the "Getting started" page.
func StarterTemplate() []byte {
	out := make([]byte, len(starterTemplate))
	copy(out, starterTemplate)
	return out
}

// TemplateBlock is one block of a template, with nested children.
type TemplateBlock struct {
	Type     string          `yaml:"type"`
	Text     string          `yaml:"text"`
	Data     map[string]any  `yaml:"data"`
	Children []TemplateBlock `yaml:"children"`
}

type template struct {
	Version int             `yaml:"version"`
	Blocks  []TemplateBlock `yaml:"blocks"`
}

// ParseTemplate converts a YAML content template into a document.
func ParseTemplate(b []byte) (*Data, error) {
	var tpl template
	if err := yaml.Unmarshal(b, &tpl); err != nil {
		return nil, fmt.Errorf("document: parse template: %w", err)
	}
	if tpl.Version != TemplateVersion {
		return nil, fmt.Errorf("document: unsupported template version %d", tpl.Version)
	}
	if len(tpl.Blocks) == 0 {
		return nil, fmt.Errorf("document: template has no blocks")
	}

	d := New()
	if err := appendTemplate(d, d.PageID, tpl.Blocks, "blocks"); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("document: template: %w", err)
	}
	return d, nil
}

func appendTemplate(d *Data, parent string, blocks []TemplateBlock, path string) error {
	for i, tb := range blocks {
		typ := strings.TrimSpace(tb.Type)
		if typ == "" {
			return fmt.Errorf("document: template %s[%d]: missing type", path, i)
		}
		if typ == BlockPage {
			return fmt.Errorf("document: template %s[%d]: nested page block", path, i)
		}
		id := d.Append(parent, typ, tb.Text, tb.Data)
		if err := appendTemplate(d, id, tb.Children, fmt.Sprintf("%s[%d].children", path, i)); err != nil {
			return err
		}
	}
	return nil
}
