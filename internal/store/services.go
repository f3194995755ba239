package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const serviceColumns = `id, title, description, category, provider_id, price, image_url, checklist_template, on_sale, sale_end_date, fleet_docs, portfolio, created_at`

func scanService(row rowScanner) (Service, error) {
	var (
		service    Service
		providerID sql.NullString
		template   []byte
		saleEnd    sql.NullTime
		fleetDocs  []byte
		portfolio  []byte
	)
	err := row.Scan(&service.ID, &service.Title, &service.Description, &service.Category, &providerID,
		&service.Price, &service.ImageURL, &template, &service.OnSale, &saleEnd, &fleetDocs, &portfolio, &service.CreatedAt)
	if err != nil {
		return Service{}, err
	}
	if err := decodeList(fleetDocs, &service.FleetDocs); err != nil {
		return Service{}, fmt.Errorf("decode fleet docs: %w", err)
	}
	if err := decodeList(portfolio, &service.Portfolio); err != nil {
		return Service{}, fmt.Errorf("decode portfolio: %w", err)
	}
	service.ProviderID = providerID.String
	if len(template) > 0 {
		service.ChecklistTemplate = json.RawMessage(template)
	}
	if saleEnd.Valid {
		end := saleEnd.Time
		service.SaleEndDate = &end
	}
	return service, nil
}

func collectServices(rows *sql.Rows) ([]Service, error) {
	defer rows.Close()
	services := make([]Service, 0)
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, service)
	}
	return services, rows.Err()
}

// ListServices returns services newest first. A non-empty providerID restricts to that provider.
func (s *PostgresStore) ListServices(ctx context.Context, providerID string) ([]Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	args := []any{}
	if providerID != "" {
		query += ` WHERE provider_id=$1`
		args = append(args, providerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return collectServices(rows)
}

// ListServicesByIDs returns the services in ids, in the order given; unknown ids are skipped.
func (s *PostgresStore) ListServicesByIDs(ctx context.Context, ids []string) ([]Service, error) {
	if len(ids) == 0 {
		return []Service{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("list services by id: %w", err)
	}
	found, err := collectServices(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Service, len(found))
	for _, service := range found {
		byID[service.ID] = service
	}
	ordered := make([]Service, 0, len(found))
	for _, id := range ids {
		if service, ok := byID[id]; ok {
			ordered = append(ordered, service)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (s *PostgresStore) GetService(ctx context.Context, serviceID string) (Service, error) {
	return scanService(s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=$1`, serviceID))
}

func (s *PostgresStore) InsertService(ctx context.Context, service Service) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, title, description, category, provider_id, price, image_url, checklist_template, on_sale, sale_end_date, fleet_docs, portfolio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, service.ID, service.Title, service.Description, service.Category, nullString(service.ProviderID),
		service.Price, service.ImageURL, nullJSON(service.ChecklistTemplate), service.OnSale, nullTime(service.SaleEndDate),
		encodeList(service.FleetDocs), encodeList(service.Portfolio))
	if err != nil {
		return classify("insert service", err)
	}
	return nil
}

// UpdateService rewrites the editable columns. Provider and image are changed elsewhere.
func (s *PostgresStore) UpdateService(ctx context.Context, service Service) error {
	return execOne(ctx, s.db, "update service", `
		UPDATE services
		SET title=$2, description=$3, category=$4, price=$5, checklist_template=$6, on_sale=$7, sale_end_date=$8,
		    fleet_docs=$9, portfolio=$10
		WHERE id=$1
	`, service.ID, service.Title, service.Description, service.Category, service.Price,
		nullJSON(service.ChecklistTemplate), service.OnSale, nullTime(service.SaleEndDate),
		encodeList(service.FleetDocs), encodeList(service.Portfolio))
}

// AppendFleetDoc adds doc to the service unless it already holds MaxFleetDocs.
// A full or missing service reports ErrListFull.
func (s *PostgresStore) AppendFleetDoc(ctx context.Context, serviceID string, doc FleetDoc) error {
	return s.appendListItem(ctx, "append fleet doc", "fleet_docs", serviceID, doc, MaxFleetDocs)
}

// AppendPortfolioItem adds item to the service unless it already holds MaxPortfolioItems.
func (s *PostgresStore) AppendPortfolioItem(ctx context.Context, serviceID string, item PortfolioItem) error {
	return s.appendListItem(ctx, "append portfolio item", "portfolio", serviceID, item, MaxPortfolioItems)
}

func (s *PostgresStore) appendListItem(ctx context.Context, op, column, serviceID string, item any, limit int) error {
	raw, err := json.Marshal([]any{item})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = execOne(ctx, s.db, op, `
		UPDATE services SET `+column+` = `+column+` || $2::jsonb
		WHERE id=$1 AND jsonb_array_length(`+column+`) < $3
	`, serviceID, raw, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrListFull
	}
	return err
}

func (s *PostgresStore) SetServiceImage(ctx context.Context, serviceID, imageURL string) error {
	return execOne(ctx, s.db, "set service image", `UPDATE services SET image_url=$2 WHERE id=$1`, serviceID, imageURL)
}

func (s *PostgresStore) DeleteService(ctx context.Context, serviceID string) error {
	return execOne(ctx, s.db, "delete service", `DELETE FROM services WHERE id=$1`, serviceID)
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return []byte(raw)
}

// encodeList stores nil slices as an empty array so the NOT NULL columns hold.
func encodeList[T any](items []T) []byte {
	if len(items) == 0 {
		return []byte("[]")
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

func decodeList[T any](raw []byte, into *[]T) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}
