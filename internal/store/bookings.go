package store

import (
	"context"
	"database/sql"
	"fmt"
)

const bookingSelect = `
	SELECT b.id, b.service_id, b.client_id, b.provider_id, b.booking_date, b.status, b.created_at,
		COALESCE(s.title, ''), COALESCE(u.name, ''), (c.id IS NOT NULL)
	FROM bookings b
	LEFT JOIN services s ON s.id = b.service_id
	LEFT JOIN users u ON u.id = b.client_id
	LEFT JOIN checklists c ON c.booking_id = b.id`

func scanBooking(row rowScanner) (Booking, error) {
	var (
		booking    Booking
		providerID sql.NullString
	)
	err := row.Scan(&booking.ID, &booking.ServiceID, &booking.ClientID, &providerID, &booking.BookingDate,
		&booking.Status, &booking.CreatedAt, &booking.ServiceTitle, &booking.ClientName, &booking.HasChecklist)
	if err != nil {
		return Booking{}, err
	}
	booking.ProviderID = providerID.String
	return booking, nil
}

// BookingFilter narrows ListBookings. Zero fields match everything.
type BookingFilter struct {
	ClientID   string
	ProviderID string
	ServiceID  string
}

// ListBookings returns bookings newest first with their service title, client name and checklist flag.
func (s *PostgresStore) ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	query := bookingSelect + ` WHERE TRUE`
	args := []any{}
	argN := 1
	for _, cond := range []struct {
		column string
		value  string
	}{
		{"b.client_id", filter.ClientID},
		{"b.provider_id", filter.ProviderID},
		{"b.service_id", filter.ServiceID},
	} {
		if cond.value == "" {
			continue
		}
		query += fmt.Sprintf(" AND %s = $%d", cond.column, argN)
		args = append(args, cond.value)
		argN++
	}
	query += ` ORDER BY b.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func (s *PostgresStore) GetBooking(ctx context.Context, bookingID string) (Booking, error) {
	return scanBooking(s.db.QueryRowContext(ctx, bookingSelect+` WHERE b.id=$1`, bookingID))
}

// LatestBookingForClient returns the client's most recent booking of the service whose
// status is one of statuses, ordered by booking date then creation time.
func (s *PostgresStore) LatestBookingForClient(ctx context.Context, serviceID, clientID string, statuses []string) (Booking, error) {
	query := bookingSelect + ` WHERE b.service_id=$1 AND b.client_id=$2`
	args := []any{serviceID, clientID}
	if len(statuses) > 0 {
		query += ` AND b.status IN (`
		for i, status := range statuses {
			if i > 0 {
				query += `, `
			}
			args = append(args, status)
			query += fmt.Sprintf("$%d", len(args))
		}
		query += `)`
	}
	query += ` ORDER BY b.booking_date DESC, b.created_at DESC LIMIT 1`
	return scanBooking(s.db.QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) InsertBooking(ctx context.Context, booking Booking) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, service_id, client_id, provider_id, booking_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, booking.ID, booking.ServiceID, booking.ClientID, nullString(booking.ProviderID), booking.BookingDate, booking.Status)
	if err != nil {
		return classify("insert booking", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	return execOne(ctx, s.db, "update booking status", `UPDATE bookings SET status=$2 WHERE id=$1`, bookingID, status)
}

// DeleteBooking removes the booking's checklist and then the booking in one transaction.
func (s *PostgresStore) DeleteBooking(ctx context.Context, bookingID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteChecklist(ctx, tx, bookingID); err != nil {
			return err
		}
		return execOne(ctx, tx, "delete booking", `DELETE FROM bookings WHERE id=$1`, bookingID)
	})
}
