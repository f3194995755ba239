package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"
	"time"

	"swifthand/api/internal/checklist"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcMap = template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
	"statusClass": func(status string) string {
		switch status {
		case string(checklist.StatusOK), string(checklist.StatusYes):
			return "status-good"
		case string(checklist.StatusDEF), string(checklist.StatusNo):
			return "status-bad"
		default:
			return "status-none"
		}
	},
	"join": strings.Join,
}

var pages = template.Must(template.New("pages").Funcs(funcMap).ParseFS(templateFS, "templates/*.html"))

// classLegend is the static classification table printed with every full view.
var classLegend = []legendRow{
	{Class: checklist.ClassCritical, Meaning: "Critical. The vehicle may not depart with a DEF status."},
	{Class: checklist.ClassStandard, Meaning: "Standard. Record the defect and schedule a repair."},
}

type legendRow struct {
	Class   checklist.Class
	Meaning string
}

type row struct {
	Key       string
	Label     string
	Class     checklist.Class
	Status    string
	Arrival   string
	Departure string
}

type section struct {
	ID    string
	Title string
	Rows  []row
}

type headerRow struct {
	Key   string
	Label string
	Value string
}

type documentData struct {
	Brand    Branding
	LogoURL  string
	View     View
	Header   []headerRow
	Sections []section
	Compact  []row
	Extra    []headerRow
	Legend   []legendRow
}

type cardsData struct {
	Brand    Branding
	Services []serviceCardsData
}

type serviceCardsData struct {
	ServiceID string
	Title     string
	Cards     []documentData
}

type formItem struct {
	Key           string
	Label         string
	Class         checklist.Class
	CycleName     string
	States        []string
	State         string
	NoticeVisible bool
	Arrival       string
}

type formSection struct {
	ID    string
	Title string
	Items []formItem
}

type formField struct {
	checklist.HeaderField
	Value string
}

type formData struct {
	Brand    Branding
	LogoURL  string
	Form     Form
	Existing bool
	Header   []formField
	Sections []formSection
}

func logoURL(brand Branding) string {
	if strings.TrimSpace(brand.LogoURL) != "" {
		return brand.LogoURL
	}
	return "https://via.placeholder.com/150x50?text=" + url.QueryEscape(brand.CompanyName)
}

func buildRow(item checklist.ItemDef, data checklist.FormData) row {
	r := row{
		Key:       item.Key,
		Label:     item.Label,
		Class:     item.Class,
		Status:    checklist.StatusOf(data, item.Key),
		Arrival:   checklist.ArrivalOf(data, item.Key),
		Departure: checklist.NoArrival,
	}
	if r.Label == "" {
		r.Label = strings.ReplaceAll(item.Key, "_", " ")
	}
	if record, ok := data[item.Key].AsItem(); ok && record.Dep != "" {
		r.Departure = record.Dep
	}
	return r
}

func buildDocument(catalog *checklist.Catalog, brand Branding, view View) documentData {
	doc := documentData{
		Brand:   brand,
		LogoURL: logoURL(brand),
		View:    view,
		Legend:  classLegend,
	}

	known := make(map[string]bool)
	for _, field := range catalog.Header {
		known[field.Key] = true
		doc.Header = append(doc.Header, headerRow{Key: field.Key, Label: field.Label, Value: view.Data.Scalar(field.Key)})
	}
	for _, sec := range catalog.Sections {
		s := section{ID: sec.ID, Title: sec.Title}
		for _, item := range sec.Items {
			known[item.Key] = true
			s.Rows = append(s.Rows, buildRow(item, view.Data))
		}
		doc.Sections = append(doc.Sections, s)
	}
	for _, item := range catalog.CompactItems() {
		doc.Compact = append(doc.Compact, buildRow(item, view.Data))
	}

	// Keys outside the catalog come from service templates; print them as they were stored.
	for _, key := range view.Data.Keys() {
		if known[key] {
			continue
		}
		value := view.Data.Scalar(key)
		if view.Data[key].IsItem() {
			value = checklist.StatusOf(view.Data, key)
			if arrival := checklist.ArrivalOf(view.Data, key); arrival != checklist.NoArrival {
				value += " / " + arrival
			}
		}
		doc.Extra = append(doc.Extra, headerRow{Key: key, Label: strings.ReplaceAll(key, "_", " "), Value: value})
	}
	sort.SliceStable(doc.Extra, func(i, j int) bool { return doc.Extra[i].Key < doc.Extra[j].Key })
	return doc
}

// templateSectionID names the form section holding service template toggles.
const templateSectionID = "service"

func buildForm(catalog *checklist.Catalog, brand Branding, form Form) formData {
	data := form.Data
	out := formData{
		Brand:    brand,
		LogoURL:  logoURL(brand),
		Form:     form,
		Existing: data != nil,
	}
	header := make(map[string]bool, len(catalog.Header))
	for _, field := range catalog.Header {
		header[field.Key] = true
		out.Header = append(out.Header, formField{HeaderField: field, Value: data.Scalar(field.Key)})
	}
	for _, sec := range catalog.Sections {
		fs := formSection{ID: sec.ID, Title: sec.Title}
		for _, item := range sec.Items {
			cycle := item.Cycle()
			if override, ok := form.Fields[item.Key].Cycle(); ok {
				cycle = override
			}
			fs.Items = append(fs.Items, toggleRow(data, item.Key, item.Label, item.Class, cycle))
		}
		out.Sections = append(out.Sections, fs)
	}

	keys := make([]string, 0, len(form.Fields))
	for key := range form.Fields {
		if _, known := catalog.Item(key); known || header[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	extra := formSection{ID: templateSectionID, Title: "Service checks"}
	for _, key := range keys {
		cycle, toggle := form.Fields[key].Cycle()
		if !toggle {
			field := checklist.HeaderField{Key: key, Label: strings.ReplaceAll(key, "_", " "), Input: "text"}
			out.Header = append(out.Header, formField{HeaderField: field, Value: data.Scalar(key)})
			continue
		}
		extra.Items = append(extra.Items, toggleRow(data, key, "", checklist.ClassStandard, cycle))
	}
	if len(extra.Items) > 0 {
		out.Sections = append(out.Sections, extra)
	}
	return out
}

func toggleRow(data checklist.FormData, key, label string, class checklist.Class, cycle checklist.Cycle) formItem {
	toggle := checklist.NewToggle(cycle, checklist.Status(checklist.StatusOf(data, key)))
	states := make([]string, 0, 3)
	for _, state := range cycle.States() {
		states = append(states, string(state))
	}
	arrival := checklist.ArrivalOf(data, key)
	if arrival == checklist.NoArrival {
		arrival = ""
	}
	if label == "" {
		label = strings.ReplaceAll(key, "_", " ")
	}
	return formItem{
		Key:           key,
		Label:         label,
		Class:         class,
		CycleName:     cycle.String(),
		States:        states,
		State:         string(toggle.State()),
		NoticeVisible: toggle.NoticeVisible(),
		Arrival:       arrival,
	}
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: template %s: %v", ErrRenderFailed, name, err)
	}
	return buf.String(), nil
}
