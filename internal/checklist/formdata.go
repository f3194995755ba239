package checklist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Placeholders shown when an item has no recorded value.
const (
	NoStatus  = "N/A"
	NoArrival = "-"
)

// ItemRecord is the structured value of one inspectable line.
type ItemRecord struct {
	Status Status `json:"Status,omitempty"`
	Arr    string `json:"Arr,omitempty"`
	Dep    string `json:"Dep,omitempty"`
}

type EntryKind uint8

const (
	KindScalar EntryKind = iota + 1
	KindItem
)

// Entry is either a scalar form value or an item record.
type Entry struct {
	kind   EntryKind
	scalar string
	item   ItemRecord
}

func Scalar(value string) Entry { return Entry{kind: KindScalar, scalar: value} }

func Item(record ItemRecord) Entry { return Entry{kind: KindItem, item: record} }

func (e Entry) Kind() EntryKind { return e.kind }

func (e Entry) IsItem() bool { return e.kind == KindItem }

// AsScalar returns the scalar value and true when the entry is a scalar.
func (e Entry) AsScalar() (string, bool) {
	return e.scalar, e.kind == KindScalar
}

// AsItem returns the item record and true when the entry is an item.
func (e Entry) AsItem() (ItemRecord, bool) {
	return e.item, e.kind == KindItem
}

func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case KindItem:
		return json.Marshal(e.item)
	case KindScalar:
		return json.Marshal(e.scalar)
	default:
		return []byte("null"), nil
	}
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*e = Scalar("")
		return nil
	}
	switch trimmed[0] {
	case '{':
		var record ItemRecord
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return fmt.Errorf("decode item record: %w", err)
		}
		*e = Item(record)
		return nil
	case '"':
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*e = Scalar(value)
		return nil
	}
	*e = Scalar(scalarText(trimmed))
	return nil
}

// scalarText renders numbers and booleans the way a form field would carry
// them. Anything else (arrays) is kept as its JSON text.
func scalarText(raw []byte) string {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return string(raw)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return n.String()
}

// FormData maps field keys to scalars or item records.
type FormData map[string]Entry

// Keys returns the keys in sorted order.
func (fd FormData) Keys() []string {
	keys := make([]string, 0, len(fd))
	for key := range fd {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Scalar returns the scalar stored under key, or "" when absent or an item.
func (fd FormData) Scalar(key string) string {
	value, _ := fd[key].AsScalar()
	return value
}

// StatusOf returns the item status, the raw scalar when the key holds one, else N/A.
func StatusOf(fd FormData, key string) string {
	entry, ok := fd[key]
	if !ok {
		return NoStatus
	}
	if record, isItem := entry.AsItem(); isItem {
		if record.Status == "" {
			return NoStatus
		}
		return string(record.Status)
	}
	if value, isScalar := entry.AsScalar(); isScalar {
		return value
	}
	return NoStatus
}

// ArrivalOf returns the item's arrival value or a dash.
func ArrivalOf(fd FormData, key string) string {
	record, ok := fd[key].AsItem()
	if !ok || record.Arr == "" {
		return NoArrival
	}
	return record.Arr
}
