package store

import (
	"context"
	"encoding/json"
	"fmt"

	"swifthand/api/internal/checklist"
	"swifthand/api/internal/util"
)

const checklistColumns = `c.id, c.booking_id, c.form_data, COALESCE(c.submitted_by, ''), c.created_at, c.updated_at`

func scanChecklist(row rowScanner) (Checklist, error) {
	var (
		record Checklist
		raw    []byte
	)
	if err := row.Scan(&record.ID, &record.BookingID, &raw, &record.SubmittedBy, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return Checklist{}, err
	}
	record.FormData = checklist.FormData{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &record.FormData); err != nil {
			return Checklist{}, fmt.Errorf("decode form data: %w", err)
		}
	}
	return record, nil
}

// UpsertChecklist creates the booking's checklist or replaces its form data in place.
// created_at survives replacement; the last writer wins.
func (s *PostgresStore) UpsertChecklist(ctx context.Context, bookingID string, data checklist.FormData, submittedBy string) (Checklist, error) {
	if data == nil {
		data = checklist.FormData{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Checklist{}, fmt.Errorf("encode form data: %w", err)
	}
	record, err := scanChecklist(s.db.QueryRowContext(ctx, `
		INSERT INTO checklists AS c (id, booking_id, form_data, submitted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (booking_id) DO UPDATE
		SET form_data=EXCLUDED.form_data, submitted_by=EXCLUDED.submitted_by, updated_at=NOW()
		RETURNING `+checklistColumns,
		util.NewID("chk"), bookingID, raw, nullString(submittedBy)))
	if err != nil {
		return Checklist{}, classify("upsert checklist", err)
	}
	return record, nil
}

// FindChecklist returns the booking's checklist or sql.ErrNoRows.
func (s *PostgresStore) FindChecklist(ctx context.Context, bookingID string) (Checklist, error) {
	return scanChecklist(s.db.QueryRowContext(ctx, `SELECT `+checklistColumns+` FROM checklists c WHERE c.booking_id=$1`, bookingID))
}

// DeleteChecklist is idempotent.
func (s *PostgresStore) DeleteChecklist(ctx context.Context, bookingID string) error {
	return deleteChecklist(ctx, s.db, bookingID)
}

func deleteChecklist(ctx context.Context, q queryer, bookingID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM checklists WHERE booking_id=$1`, bookingID); err != nil {
		return fmt.Errorf("delete checklist: %w", err)
	}
	return nil
}

// ListChecklistsForService returns the checklists of every booking of the service, newest first.
func (s *PostgresStore) ListChecklistsForService(ctx context.Context, serviceID string) ([]Checklist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+checklistColumns+`
		FROM checklists c
		JOIN bookings b ON b.id = c.booking_id
		WHERE b.service_id = $1
		ORDER BY c.created_at DESC, c.id
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list checklists: %w", err)
	}
	defer rows.Close()

	records := make([]Checklist, 0)
	for rows.Next() {
		record, err := scanChecklist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checklist: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
