package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"swifthand/api/internal/checklist"
	"swifthand/api/internal/store"
)

// memoryRecords keeps bookings and their checklists the way the Postgres
// store does: one checklist per booking, created once, replaced on resubmit
// and removed together with its booking.
type memoryRecords struct {
	mu         sync.Mutex
	now        time.Time
	bookings   map[string]store.Booking
	checklists map[string]store.Checklist
}

func newMemoryRecords(bookings ...store.Booking) *memoryRecords {
	m := &memoryRecords{
		now:        time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		bookings:   map[string]store.Booking{},
		checklists: map[string]store.Checklist{},
	}
	for _, booking := range bookings {
		m.bookings[booking.ID] = booking
	}
	return m
}

func (m *memoryRecords) install(fs *fakeStore) {
	fs.getBookingFn = func(_ context.Context, id string) (store.Booking, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		booking, ok := m.bookings[id]
		if !ok {
			return store.Booking{}, sql.ErrNoRows
		}
		return booking, nil
	}
	fs.upsertChecklistFn = func(_ context.Context, bookingID string, data checklist.FormData, by string) (store.Checklist, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.bookings[bookingID]; !ok {
			return store.Checklist{}, store.ErrMissingReference
		}
		m.now = m.now.Add(time.Minute)
		record, exists := m.checklists[bookingID]
		if !exists {
			record = store.Checklist{ID: "chk-" + bookingID, BookingID: bookingID, CreatedAt: m.now}
		}
		record.FormData = data
		record.SubmittedBy = by
		record.UpdatedAt = m.now
		m.checklists[bookingID] = record
		return record, nil
	}
	fs.findChecklistFn = func(_ context.Context, bookingID string) (store.Checklist, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.checklists[bookingID]
		if !ok {
			return store.Checklist{}, sql.ErrNoRows
		}
		return record, nil
	}
	fs.deleteBookingFn = func(_ context.Context, bookingID string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.bookings[bookingID]; !ok {
			return sql.ErrNoRows
		}
		delete(m.checklists, bookingID)
		delete(m.bookings, bookingID)
		return nil
	}
}

func TestResubmitKeepsCreatedAt(t *testing.T) {
	fs := submitFixture()
	records := newMemoryRecords(store.Booking{ID: "bkg-1", ServiceID: "svc-1", ClientID: "usr-c", ProviderID: "usr-p", Status: store.BookingConfirmed})
	records.install(fs)
	svc := newTestService(fs, Dependencies{})
	client := Session{UserID: "usr-c", Role: "client"}

	first, err := svc.SubmitChecklist(context.Background(), client, "bkg-1", ChecklistInput{Form: scenarioForm()})
	if err != nil {
		t.Fatalf("first SubmitChecklist() error = %v", err)
	}
	if first["message"] != "Checklist submitted successfully" {
		t.Fatalf("first message = %v", first["message"])
	}

	second, err := svc.SubmitChecklist(context.Background(), Session{UserID: "usr-p", Role: "provider"}, "bkg-1", ChecklistInput{
		Form: url.Values{"Wipers": {"DEF"}},
	})
	if err != nil {
		t.Fatalf("second SubmitChecklist() error = %v", err)
	}
	if second["message"] != "Checklist updated successfully" {
		t.Fatalf("second message = %v", second["message"])
	}

	before := first["checklist"].(map[string]any)
	after := second["checklist"].(map[string]any)
	if after["id"] != before["id"] {
		t.Fatalf("resubmit changed id %v -> %v", before["id"], after["id"])
	}
	if !after["createdAt"].(time.Time).Equal(before["createdAt"].(time.Time)) {
		t.Fatalf("createdAt moved from %v to %v", before["createdAt"], after["createdAt"])
	}
	if !after["updatedAt"].(time.Time).After(before["updatedAt"].(time.Time)) {
		t.Fatalf("updatedAt did not advance: %v -> %v", before["updatedAt"], after["updatedAt"])
	}
	if after["submittedBy"] != "usr-p" {
		t.Fatalf("submittedBy = %v", after["submittedBy"])
	}

	data := after["formData"].(checklist.FormData)
	if _, ok := data["Brake_Fluid"]; ok {
		t.Fatal("resubmission must replace the previous form data")
	}
	if got := checklist.StatusOf(data, "Wipers"); got != "DEF" {
		t.Fatalf("Wipers = %q", got)
	}
}

func TestDeleteBookingRemovesChecklist(t *testing.T) {
	fs := submitFixture()
	records := newMemoryRecords(
		store.Booking{ID: "bkg-1", ServiceID: "svc-1", ClientID: "usr-c", ProviderID: "usr-p", Status: store.BookingConfirmed},
		store.Booking{ID: "bkg-2", ServiceID: "svc-1", ClientID: "usr-c", ProviderID: "usr-p", Status: store.BookingConfirmed},
	)
	records.install(fs)
	svc := newTestService(fs, Dependencies{})
	client := Session{UserID: "usr-c", Role: "client"}

	for _, id := range []string{"bkg-1", "bkg-2"} {
		if _, err := svc.SubmitChecklist(context.Background(), client, id, ChecklistInput{Form: scenarioForm()}); err != nil {
			t.Fatalf("SubmitChecklist(%s) error = %v", id, err)
		}
	}
	if err := svc.DeleteBooking(context.Background(), client, "bkg-1"); err != nil {
		t.Fatalf("DeleteBooking() error = %v", err)
	}

	if _, err := fs.FindChecklist(context.Background(), "bkg-1"); err != sql.ErrNoRows {
		t.Fatalf("checklist of deleted booking still present: %v", err)
	}
	if _, err := svc.ChecklistRecord(context.Background(), "bkg-1"); domainStatus(t, err) != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted booking, got %v", err)
	}
	if _, err := svc.ChecklistRecord(context.Background(), "bkg-2"); err != nil {
		t.Fatalf("sibling checklist lost: %v", err)
	}
	if _, err := svc.SubmitChecklist(context.Background(), client, "bkg-1", ChecklistInput{Form: scenarioForm()}); domainStatus(t, err) != http.StatusNotFound {
		t.Fatalf("expected 404 submitting to a deleted booking, got %v", err)
	}
}

func TestChecklistFormCarriesTemplateFields(t *testing.T) {
	fs := submitFixture()
	fs.getServiceFn = func(context.Context, string) (store.Service, error) {
		return store.Service{
			ID:                "svc-1",
			Title:             "Staff bus",
			ChecklistTemplate: json.RawMessage(`{"fields":{"Ramp":"y_n","Odometer":"text","Wipers":"y_n"}}`),
		}, nil
	}
	renderer := &fakeRenderer{}
	svc := newTestService(fs, Dependencies{Renderer: renderer})

	if _, err := svc.ChecklistForm(context.Background(), Session{UserID: "usr-c", Role: "client"}, "bkg-1"); err != nil {
		t.Fatalf("ChecklistForm() error = %v", err)
	}
	want := checklist.Schema{"Ramp": checklist.FieldYesNo, "Odometer": checklist.FieldText, "Wipers": checklist.FieldYesNo}
	if len(renderer.form.Fields) != len(want) {
		t.Fatalf("Fields = %v", renderer.form.Fields)
	}
	for key, fieldType := range want {
		if renderer.form.Fields[key] != fieldType {
			t.Fatalf("Fields[%s] = %q, want %q", key, renderer.form.Fields[key], fieldType)
		}
	}
	if renderer.form.Action != "/dashboard/checklist/bkg-1" || renderer.form.Data != nil {
		t.Fatalf("unexpected form %+v", renderer.form)
	}
}
