package checklist

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Class is the printed criticality of an item.
type Class string

const (
	ClassCritical Class = "A"
	ClassStandard Class = "B"
)

type HeaderField struct {
	Key     string   `yaml:"key"`
	Label   string   `yaml:"label"`
	Input   string   `yaml:"input"`
	Options []string `yaml:"options"`
}

type ItemDef struct {
	Key     string    `yaml:"key"`
	Label   string    `yaml:"label"`
	Type    FieldType `yaml:"cycle"`
	Class   Class     `yaml:"class"`
	Compact bool      `yaml:"compact"`
}

// Cycle returns the toggle cycle of the item.
func (d ItemDef) Cycle() Cycle {
	cycle, _ := d.Type.Cycle()
	return cycle
}

type Section struct {
	ID    string    `yaml:"id"`
	Title string    `yaml:"title"`
	Items []ItemDef `yaml:"items"`
}

// Catalog is the single table of inspectable items shared by the parser and every layout.
type Catalog struct {
	Header   []HeaderField `yaml:"header"`
	Sections []Section     `yaml:"sections"`

	index map[string]ItemDef
	order []string
}

// LoadCatalog decodes and validates a YAML catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.index = make(map[string]ItemDef)
	for _, section := range c.Sections {
		for _, item := range section.Items {
			if item.Key == "" {
				return nil, fmt.Errorf("section %s: item without key", section.ID)
			}
			if _, dup := c.index[item.Key]; dup {
				return nil, fmt.Errorf("duplicate item %s", item.Key)
			}
			if _, ok := item.Type.Cycle(); !ok {
				return nil, fmt.Errorf("item %s: unknown cycle %q", item.Key, item.Type)
			}
			if item.Class != ClassCritical && item.Class != ClassStandard {
				return nil, fmt.Errorf("item %s: unknown class %q", item.Key, item.Class)
			}
			c.index[item.Key] = item
			c.order = append(c.order, item.Key)
		}
	}
	if len(c.index) == 0 {
		return nil, fmt.Errorf("catalog has no items")
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the embedded inspection catalog.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := LoadCatalog(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Items returns every item in catalog order.
func (c *Catalog) Items() []ItemDef {
	items := make([]ItemDef, 0, len(c.order))
	for _, key := range c.order {
		items = append(items, c.index[key])
	}
	return items
}

func (c *Catalog) Item(key string) (ItemDef, bool) {
	item, ok := c.index[key]
	return item, ok
}

// Classification returns the class of a known item. Unknown keys print as standard.
func (c *Catalog) Classification(key string) Class {
	if item, ok := c.index[key]; ok {
		return item.Class
	}
	return ClassStandard
}

func (c *Catalog) Section(id string) (Section, bool) {
	for _, section := range c.Sections {
		if section.ID == id {
			return section, true
		}
	}
	return Section{}, false
}

// CompactItems returns the subset shown on dashboard cards.
func (c *Catalog) CompactItems() []ItemDef {
	var items []ItemDef
	for _, key := range c.order {
		if item := c.index[key]; item.Compact {
			items = append(items, item)
		}
	}
	return items
}

func (c *Catalog) Schema() Schema {
	schema := make(Schema, len(c.index))
	for key, item := range c.index {
		schema[key] = item.Type
	}
	return schema
}

// TemplateFields reads the "fields" of a service checklist template. Unknown
// types read as text; a template without fields yields nil.
func TemplateFields(template json.RawMessage) Schema {
	if len(template) == 0 {
		return nil
	}
	var parsed struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(template, &parsed); err != nil || len(parsed.Fields) == 0 {
		return nil
	}
	fields := make(Schema, len(parsed.Fields))
	for key, raw := range parsed.Fields {
		fieldType := FieldType(raw)
		if _, ok := fieldType.Cycle(); !ok {
			fieldType = FieldText
		}
		fields[key] = fieldType
	}
	return fields
}

// SchemaForTemplate overlays the template fields on base. Templates without
// fields leave base unchanged.
func SchemaForTemplate(template json.RawMessage, base Schema) Schema {
	fields := TemplateFields(template)
	if fields == nil {
		return base
	}
	schema := make(Schema, len(base)+len(fields))
	for key, fieldType := range base {
		schema[key] = fieldType
	}
	for key, fieldType := range fields {
		schema[key] = fieldType
	}
	return schema
}
