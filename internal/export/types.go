// Package export renders checklists as HTML cards, full views, printable pages
// and PDF documents.
package export

import (
	"errors"
	"time"

	"swifthand/api/internal/checklist"
)

// View is everything a checklist layout needs about one record.
type View struct {
	ChecklistID  string
	BookingID    string
	ServiceID    string
	ServiceTitle string
	ClientName   string
	BookingDate  time.Time
	SubmittedBy  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Data         checklist.FormData
}

// ServiceCards groups the compact cards of one service.
type ServiceCards struct {
	ServiceID string
	Title     string
	Views     []View
}

// Form describes the fill/edit page of a booking's checklist.
type Form struct {
	BookingID    string
	ServiceTitle string
	ClientName   string
	BookingDate  time.Time
	Action       string
	Data         checklist.FormData // nil when nothing was submitted yet
	// Fields are the service template's own fields. Toggles missing from the
	// catalog render as an extra section; text fields join the header.
	Fields checklist.Schema
}

// Branding is printed in every document header.
type Branding struct {
	CompanyName string
	LogoURL     string
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrRenderFailed indicates a template or browser failure. Nothing partial is returned.
	ErrRenderFailed = errors.New("checklist render failed")
	// ErrPDFDependencyMissing indicates no headless Chrome binary is installed.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
