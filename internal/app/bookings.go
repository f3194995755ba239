package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"swifthand/api/internal/rbac"
	"swifthand/api/internal/store"
	"swifthand/api/internal/util"
	"swifthand/api/internal/validate"
)

var allowedTransitions = map[string]map[string]bool{
	store.BookingPending:   {store.BookingConfirmed: true, store.BookingCancelled: true},
	store.BookingConfirmed: {store.BookingCompleted: true, store.BookingCancelled: true},
	store.BookingCompleted: {},
	store.BookingCancelled: {},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

type CreateBookingInput struct {
	ServiceID   string `json:"serviceId" validate:"required"`
	BookingDate string `json:"bookingDate" validate:"required"`
}

func bookingPayload(booking store.Booking) map[string]any {
	return map[string]any{
		"id":           booking.ID,
		"service":      booking.ServiceID,
		"serviceTitle": booking.ServiceTitle,
		"client":       booking.ClientID,
		"clientName":   booking.ClientName,
		"provider":     booking.ProviderID,
		"bookingDate":  booking.BookingDate,
		"status":       booking.Status,
		"createdAt":    booking.CreatedAt,
		"hasChecklist": booking.HasChecklist,
	}
}

func bookingPayloads(bookings []store.Booking) []map[string]any {
	items := make([]map[string]any, 0, len(bookings))
	for _, booking := range bookings {
		items = append(items, bookingPayload(booking))
	}
	return items
}

// CreateBooking books a service for the calling client. New bookings are Pending
// and belong to the service's provider.
func (s *Service) CreateBooking(ctx context.Context, caller Session, input CreateBookingInput) (map[string]any, error) {
	if rbac.Normalize(caller.Role) != rbac.RoleClient {
		return nil, forbidden()
	}
	input.ServiceID = strings.TrimSpace(input.ServiceID)
	if err := validate.Struct(input); err != nil {
		return nil, validationError("Booking details are invalid", err)
	}
	date, err := parseBookingDate(input.BookingDate)
	if err != nil {
		return nil, validationError("Booking details are invalid", map[string]string{"bookingDate": "must be a date (YYYY-MM-DD) or RFC3339 timestamp"})
	}

	service, err := s.store.GetService(ctx, input.ServiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Service not found")
	}
	if err != nil {
		return nil, wrap("load service", err)
	}

	booking := store.Booking{
		ID:           util.NewID("bkg"),
		ServiceID:    service.ID,
		ClientID:     caller.UserID,
		ProviderID:   service.ProviderID,
		BookingDate:  date,
		Status:       store.BookingPending,
		CreatedAt:    s.now().UTC(),
		ServiceTitle: service.Title,
		ClientName:   caller.UserName,
	}
	if err := s.store.InsertBooking(ctx, booking); err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return nil, notFound("Service not found")
		}
		return nil, wrap("create booking", err)
	}
	return bookingPayload(booking), nil
}

// UpdateBookingStatus is allowed to the booking's provider and admins.
func (s *Service) UpdateBookingStatus(ctx context.Context, caller Session, bookingID, status string) (map[string]any, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Booking not found")
	}
	if err != nil {
		return nil, wrap("load booking", err)
	}
	isAdmin := rbac.Normalize(caller.Role) == rbac.RoleAdmin
	if !isAdmin && (booking.ProviderID == "" || booking.ProviderID != caller.UserID) {
		return nil, forbidden()
	}

	status = strings.TrimSpace(status)
	if !CanTransition(booking.Status, status) {
		return nil, domainError(http.StatusConflict, "INVALID_TRANSITION", "Booking cannot move from "+booking.Status+" to "+status, map[string]any{
			"from": booking.Status,
			"to":   status,
		})
	}
	if err := s.store.UpdateBookingStatus(ctx, booking.ID, status); err != nil {
		return nil, wrap("update booking status", err)
	}
	booking.Status = status
	return bookingPayload(booking), nil
}

// DeleteBooking removes a booking and its checklist. Admins, the provider and
// the client of the booking may delete it.
func (s *Service) DeleteBooking(ctx context.Context, caller Session, bookingID string) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("Booking not found")
	}
	if err != nil {
		return wrap("load booking", err)
	}
	isAdmin := rbac.Normalize(caller.Role) == rbac.RoleAdmin
	isProvider := booking.ProviderID != "" && booking.ProviderID == caller.UserID
	isClient := booking.ClientID == caller.UserID
	if !isAdmin && !isProvider && !isClient {
		return forbidden()
	}
	if err := s.store.DeleteBooking(ctx, booking.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Booking not found")
		}
		return wrap("delete booking", err)
	}
	return nil
}

// parseBookingDate accepts a calendar date or an RFC3339 timestamp, tolerating
// milliseconds from JavaScript's Date.toISOString().
func parseBookingDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, value)
	}
	return t, err
}
