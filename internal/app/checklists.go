package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"

	"swifthand/api/internal/checklist"
	"swifthand/api/internal/export"
	"swifthand/api/internal/rbac"
	"swifthand/api/internal/store"
)

// approvedStatuses are the booking states whose checklist a client may fetch as "latest".
var approvedStatuses = []string{store.BookingConfirmed, store.BookingCompleted}

// ChecklistInput is a submitted checklist form: urlencoded fields or a JSON object.
type ChecklistInput struct {
	Form url.Values
	JSON []byte
}

func checklistPayload(record store.Checklist) map[string]any {
	formData := record.FormData
	if formData == nil {
		formData = checklist.FormData{}
	}
	return map[string]any{
		"id":          record.ID,
		"booking":     record.BookingID,
		"formData":    formData,
		"submittedBy": record.SubmittedBy,
		"createdAt":   record.CreatedAt,
		"updatedAt":   record.UpdatedAt,
	}
}

// ListServiceChecklists returns every checklist recorded against the service's
// bookings, newest first. It is a public audit listing and never fails for an
// unknown service.
func (s *Service) ListServiceChecklists(ctx context.Context, serviceID string) ([]map[string]any, error) {
	records, err := s.store.ListChecklistsForService(ctx, serviceID)
	if err != nil {
		return nil, wrap("list service checklists", err)
	}
	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, checklistPayload(record))
	}
	return items, nil
}

// LatestChecklistForUser returns the checklist of the caller's most recent
// confirmed or completed booking for the service. Nothing found is nil, not an error.
func (s *Service) LatestChecklistForUser(ctx context.Context, serviceID string, caller *Session) (map[string]any, error) {
	if caller == nil || caller.UserID == "" {
		return nil, nil
	}
	booking, err := s.store.LatestBookingForClient(ctx, serviceID, caller.UserID, approvedStatuses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("latest booking", err)
	}
	record, err := s.store.FindChecklist(ctx, booking.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find checklist", err)
	}
	return checklistPayload(record), nil
}

// SubmitChecklist parses and stores the booking's checklist, replacing any
// previous submission.
func (s *Service) SubmitChecklist(ctx context.Context, caller Session, bookingID string, input ChecklistInput) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionFillChecklist) {
		return nil, forbidden()
	}
	booking, err := s.accessibleBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	schema, err := s.schemaForService(ctx, booking.ServiceID)
	if err != nil {
		return nil, err
	}

	var parsed checklist.Result
	if input.JSON != nil {
		parsed, err = checklist.ParseJSON(input.JSON, schema)
		if err != nil {
			return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Checklist body must be a JSON object", nil)
		}
	} else {
		parsed = checklist.ParseValues(input.Form, schema)
	}

	record, err := s.store.UpsertChecklist(ctx, booking.ID, parsed.Data, caller.UserID)
	if err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return nil, notFound("Booking not found")
		}
		return nil, wrap("save checklist", err)
	}

	message := "Checklist updated successfully"
	if record.UpdatedAt.Equal(record.CreatedAt) {
		message = "Checklist submitted successfully"
	}
	payload := map[string]any{
		"message":     message,
		"redirectUrl": "/dashboard",
		"checklist":   checklistPayload(record),
	}
	if len(parsed.Warnings) > 0 {
		payload["warnings"] = parsed.Warnings
	}
	return payload, nil
}

// schemaForService resolves the field types used to parse a submission: the
// service template's fields over the catalog, or nil for legacy value sniffing.
func (s *Service) schemaForService(ctx context.Context, serviceID string) (checklist.Schema, error) {
	if s.cfg.ChecklistLegacyParse {
		return nil, nil
	}
	base := s.catalog.Schema()
	service, err := s.store.GetService(ctx, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return base, nil
	}
	if err != nil {
		return nil, wrap("load service template", err)
	}
	return checklist.SchemaForTemplate(service.ChecklistTemplate, base), nil
}

// ChecklistForm renders the fill/edit page, pre-filled when a checklist exists.
func (s *Service) ChecklistForm(ctx context.Context, caller Session, bookingID string) (string, error) {
	booking, err := s.accessibleBooking(ctx, caller, bookingID)
	if err != nil {
		return "", err
	}
	form := export.Form{
		BookingID:    booking.ID,
		ServiceTitle: booking.ServiceTitle,
		ClientName:   booking.ClientName,
		BookingDate:  booking.BookingDate,
		Action:       "/dashboard/checklist/" + url.PathEscape(booking.ID),
	}
	service, err := s.store.GetService(ctx, booking.ServiceID)
	switch {
	case err == nil:
		form.Fields = checklist.TemplateFields(service.ChecklistTemplate)
	case !errors.Is(err, sql.ErrNoRows):
		return "", wrap("load service template", err)
	}
	record, err := s.store.FindChecklist(ctx, booking.ID)
	switch {
	case err == nil:
		form.Data = record.FormData
	case !errors.Is(err, sql.ErrNoRows):
		return "", wrap("find checklist", err)
	}
	return s.renderer.Form(form)
}

// ChecklistPage renders the full single-checklist view.
func (s *Service) ChecklistPage(ctx context.Context, caller Session, bookingID string) (string, error) {
	booking, err := s.accessibleBooking(ctx, caller, bookingID)
	if err != nil {
		return "", err
	}
	view, err := s.checklistView(ctx, booking)
	if err != nil {
		return "", err
	}
	return s.renderer.Full(view)
}

// ChecklistPDF prints the booking's checklist to an A4 PDF.
func (s *Service) ChecklistPDF(ctx context.Context, caller Session, bookingID string) (*export.Result, error) {
	booking, err := s.accessibleBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	return s.PrintChecklist(ctx, booking.ID)
}

// PrintChecklist prints a booking's checklist without an access check. Used by
// the operator CLI.
func (s *Service) PrintChecklist(ctx context.Context, bookingID string) (*export.Result, error) {
	view, err := s.ChecklistRecord(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.renderer.PDF(ctx, view)
}

// ChecklistRecord loads the booking's checklist as a renderable view.
func (s *Service) ChecklistRecord(ctx context.Context, bookingID string) (export.View, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return export.View{}, notFound("Booking not found")
	}
	if err != nil {
		return export.View{}, wrap("load booking", err)
	}
	return s.checklistView(ctx, booking)
}

// ChecklistCards renders the compact cards of every checklist of the given services.
func (s *Service) ChecklistCards(ctx context.Context, serviceIDs []string) (string, error) {
	services, err := s.store.ListServicesByIDs(ctx, serviceIDs)
	if err != nil {
		return "", wrap("load services", err)
	}
	groups := make([]export.ServiceCards, 0, len(services))
	for _, service := range services {
		records, err := s.store.ListChecklistsForService(ctx, service.ID)
		if err != nil {
			return "", wrap("list service checklists", err)
		}
		bookings, err := s.store.ListBookings(ctx, store.BookingFilter{ServiceID: service.ID})
		if err != nil {
			return "", wrap("list service bookings", err)
		}
		byID := make(map[string]store.Booking, len(bookings))
		for _, booking := range bookings {
			byID[booking.ID] = booking
		}

		group := export.ServiceCards{ServiceID: service.ID, Title: service.Title}
		for _, record := range records {
			booking := byID[record.BookingID]
			booking.ID = record.BookingID
			booking.ServiceID = service.ID
			booking.ServiceTitle = service.Title
			group.Views = append(group.Views, s.viewOf(ctx, booking, record))
		}
		groups = append(groups, group)
	}
	return s.renderer.Cards(groups)
}

func (s *Service) checklistView(ctx context.Context, booking store.Booking) (export.View, error) {
	record, err := s.store.FindChecklist(ctx, booking.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return export.View{}, notFound("Checklist not found")
	}
	if err != nil {
		return export.View{}, wrap("find checklist", err)
	}
	return s.viewOf(ctx, booking, record), nil
}

func (s *Service) viewOf(ctx context.Context, booking store.Booking, record store.Checklist) export.View {
	return export.View{
		ChecklistID:  record.ID,
		BookingID:    booking.ID,
		ServiceID:    booking.ServiceID,
		ServiceTitle: booking.ServiceTitle,
		ClientName:   booking.ClientName,
		BookingDate:  booking.BookingDate,
		SubmittedBy:  s.userName(ctx, record.SubmittedBy),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
		Data:         record.FormData,
	}
}

// userName resolves a user id for display, falling back to the id itself.
func (s *Service) userName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil || user.Name == "" {
		return userID
	}
	return user.Name
}

// accessibleBooking loads a booking the caller may work on: staff see every
// booking, providers and clients only their own.
func (s *Service) accessibleBooking(ctx context.Context, caller Session, bookingID string) (store.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Booking{}, notFound("Booking not found")
	}
	if err != nil {
		return store.Booking{}, wrap("load booking", err)
	}
	if !canSeeBooking(caller, booking) {
		return store.Booking{}, forbidden()
	}
	return booking, nil
}

func canSeeBooking(caller Session, booking store.Booking) bool {
	switch rbac.Normalize(caller.Role) {
	case rbac.RoleAdmin, rbac.RoleClerk:
		return true
	case rbac.RoleProvider:
		return booking.ProviderID == caller.UserID
	default:
		return booking.ClientID == caller.UserID
	}
}
