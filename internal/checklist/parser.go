package checklist

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FieldType tags a form field so the parser never has to guess from its value.
type FieldType string

const (
	FieldText  FieldType = "text"
	FieldOKDef FieldType = "ok_def"
	FieldYesNo FieldType = "y_n"
)

// Cycle returns the status cycle for toggle fields.
func (t FieldType) Cycle() (Cycle, bool) {
	switch t {
	case FieldOKDef:
		return CycleOKDef, true
	case FieldYesNo:
		return CycleYesNo, true
	default:
		return 0, false
	}
}

// Schema maps item keys to their field type. Keys not in the schema are text.
type Schema map[string]FieldType

const (
	suffixDepartmentRef = "_Dep_Ref"
	suffixArrival       = "_Arr"
	suffixDeparture     = "_Dep"
	shiftKey            = "shift"
)

// Field is one submitted form value.
type Field struct {
	Key   string
	Value string
}

// Warning describes input that was kept out of the record. Warnings never fail a submission.
type Warning struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

type Result struct {
	Data     FormData
	Warnings []Warning
}

// Parse reshapes flat form fields into form data. With a nil schema the
// legacy rule applies: any value from a status vocabulary marks its key as an item.
func Parse(fields []Field, schema Schema) Result {
	p := newParser(schema)
	for _, field := range fields {
		p.add(field.Key, field.Value)
	}
	return p.result()
}

// ParseValues parses a urlencoded form. Repeated keys keep their last value.
func ParseValues(values url.Values, schema Schema) Result {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		fields = append(fields, Field{Key: key, Value: vals[len(vals)-1]})
	}
	return Parse(fields, schema)
}

// ParseJSON parses a JSON object of form values. Nested objects are taken as
// already structured item records.
func ParseJSON(raw []byte, schema Schema) (Result, error) {
	var body map[string]Entry
	if err := json.Unmarshal(raw, &body); err != nil {
		return Result{}, fmt.Errorf("decode form: %w", err)
	}

	keys := make([]string, 0, len(body))
	for key := range body {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	p := newParser(schema)
	for _, key := range keys {
		entry := body[key]
		if record, ok := entry.AsItem(); ok {
			p.addRecord(key, record)
			continue
		}
		value, _ := entry.AsScalar()
		p.add(key, value)
	}
	return p.result(), nil
}

type parser struct {
	schema   Schema
	items    map[string]*ItemRecord
	scalars  map[string]string
	warnings []Warning
}

func newParser(schema Schema) *parser {
	return &parser{
		schema:  schema,
		items:   make(map[string]*ItemRecord),
		scalars: make(map[string]string),
	}
}

func (p *parser) item(base string) *ItemRecord {
	record, ok := p.items[base]
	if !ok {
		record = &ItemRecord{}
		p.items[base] = record
	}
	return record
}

func (p *parser) add(key, value string) {
	if strings.HasSuffix(key, suffixDepartmentRef) {
		return
	}
	if base, ok := trimSuffix(key, suffixArrival); ok {
		p.item(base).Arr = value
		return
	}
	if base, ok := trimSuffix(key, suffixDeparture); ok {
		p.item(base).Dep = value
		return
	}
	if key == shiftKey {
		p.scalars[key] = value
		return
	}

	if p.schema == nil {
		if IsStatusValue(value) {
			p.item(key).Status = Status(value)
			return
		}
		p.scalars[key] = value
		return
	}

	cycle, isToggle := p.schema[key].Cycle()
	if !isToggle {
		p.scalars[key] = value
		return
	}
	if !cycle.Contains(Status(value)) {
		p.warn(key, value, fmt.Sprintf("not a %s status", cycle))
		return
	}
	p.item(key).Status = Status(value)
}

func (p *parser) addRecord(key string, record ItemRecord) {
	if strings.HasSuffix(key, suffixDepartmentRef) {
		return
	}
	if key == shiftKey {
		if record.Status == "" {
			p.warn(key, "", "shift must be a plain value")
			return
		}
		p.scalars[key] = string(record.Status)
		return
	}

	accepted := ItemRecord{Arr: record.Arr, Dep: record.Dep}
	if record.Status != "" {
		if p.acceptsStatus(key, record.Status) {
			accepted.Status = record.Status
		} else {
			p.warn(key, string(record.Status), "status outside the field vocabulary")
		}
	}
	if accepted == (ItemRecord{}) {
		return
	}

	target := p.item(key)
	if accepted.Status != "" {
		target.Status = accepted.Status
	}
	if accepted.Arr != "" {
		target.Arr = accepted.Arr
	}
	if accepted.Dep != "" {
		target.Dep = accepted.Dep
	}
}

func (p *parser) acceptsStatus(key string, status Status) bool {
	if p.schema == nil {
		return IsStatusValue(string(status))
	}
	cycle, ok := p.schema[key].Cycle()
	return ok && cycle.Contains(status)
}

func (p *parser) warn(key, value, reason string) {
	p.warnings = append(p.warnings, Warning{Key: key, Value: value, Reason: reason})
}

func (p *parser) result() Result {
	data := make(FormData, len(p.items)+len(p.scalars))
	for key, record := range p.items {
		data[key] = Item(*record)
	}

	keys := make([]string, 0, len(p.scalars))
	for key := range p.scalars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, taken := data[key]; taken {
			p.warn(key, p.scalars[key], "shadowed by item record")
			continue
		}
		data[key] = Scalar(p.scalars[key])
	}
	return Result{Data: data, Warnings: p.warnings}
}

func trimSuffix(key, suffix string) (string, bool) {
	if len(key) <= len(suffix) || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	return strings.TrimSuffix(key, suffix), true
}
