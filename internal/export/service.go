package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"swifthand/api/internal/checklist"
)

// Renderer turns checklist records into HTML and PDF using the shared catalog.
type Renderer struct {
	catalog    *checklist.Catalog
	brand      Branding
	pdfTimeout time.Duration
	printPDF   func(ctx context.Context, html string, timeout time.Duration) ([]byte, error)
}

// NewRenderer creates a renderer. A nil catalog means the embedded default.
func NewRenderer(catalog *checklist.Catalog, brand Branding, pdfTimeout time.Duration) *Renderer {
	if catalog == nil {
		catalog = checklist.DefaultCatalog()
	}
	return &Renderer{
		catalog:    catalog,
		brand:      brand,
		pdfTimeout: pdfTimeout,
		printPDF:   chromePDF,
	}
}

// Card renders the compact dashboard card of one checklist.
func (r *Renderer) Card(view View) (string, error) {
	return execute("card", buildDocument(r.catalog, r.brand, view))
}

// Cards renders a page of cards grouped by service.
func (r *Renderer) Cards(groups []ServiceCards) (string, error) {
	data := cardsData{Brand: r.brand, Services: make([]serviceCardsData, 0, len(groups))}
	for _, group := range groups {
		sc := serviceCardsData{ServiceID: group.ServiceID, Title: group.Title}
		for _, view := range group.Views {
			sc.Cards = append(sc.Cards, buildDocument(r.catalog, r.brand, view))
		}
		data.Services = append(data.Services, sc)
	}
	return execute("cards.html", data)
}

// Full renders the single-checklist view with both item columns, the internal
// checks and the classification table.
func (r *Renderer) Full(view View) (string, error) {
	return execute("full.html", buildDocument(r.catalog, r.brand, view))
}

// Print renders the two-column A4 layout used for PDF output.
func (r *Renderer) Print(view View) (string, error) {
	return execute("print.html", buildDocument(r.catalog, r.brand, view))
}

// Form renders the fill/edit page, pre-filled when form.Data is set.
func (r *Renderer) Form(form Form) (string, error) {
	return execute("form.html", buildForm(r.catalog, r.brand, form))
}

// PDF renders the print layout and prints it to an A4 PDF named checklist-<bookingID>.pdf.
func (r *Renderer) PDF(ctx context.Context, view View) (*Result, error) {
	html, err := r.Print(view)
	if err != nil {
		return nil, err
	}
	data, err := r.printPDF(ctx, html, r.pdfTimeout)
	if err != nil {
		if !errors.Is(err, ErrPDFDependencyMissing) && !errors.Is(err, ErrRenderFailed) {
			err = fmt.Errorf("%w: %v", ErrRenderFailed, err)
		}
		log.Printf("export: pdf for booking %s: %v", view.BookingID, err)
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: "checklist-" + sanitizeFilename(view.BookingID) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// sanitizeFilename keeps letters, digits, hyphens and underscores.
func sanitizeFilename(name string) string {
	result := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			result = append(result, r)
		case r == ' ':
			result = append(result, '-')
		}
	}
	if len(result) > 64 {
		result = result[:64]
	}
	if len(result) == 0 {
		return "document"
	}
	return string(result)
}
