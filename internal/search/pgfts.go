package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated services.fts column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks services by ts_rank against plainto_tsquery, newest first on ties.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	where := "fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.Category != "" {
		args = append(args, q.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, title, category, description, price::text, count(*) OVER() AS total
		FROM services
		WHERE %s
		ORDER BY ts_rank(fts, plainto_tsquery('english', $1)) DESC, created_at DESC
		LIMIT %d OFFSET %d`, where, defaultLimit(q.Limit), offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var (
		results []Result
		total   int
	)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Category, &r.Description, &r.Price, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every service for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ServiceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, category, price::text, COALESCE(provider_id, '')
		FROM services
	`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	defer rows.Close()

	records := make([]ServiceRecord, 0)
	for rows.Next() {
		var r ServiceRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Category, &r.Price, &r.ProviderID); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return records, nil
}
