package search

import (
	"context"
	"log"
)

type index interface {
	Searcher
	IndexServices([]ServiceRecord) error
	DeleteService(string) error
}

type fallback interface {
	Searcher
	LoadAllRecords(context.Context) ([]ServiceRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili index
	pgfts fallback
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{}
	if meili != nil {
		s.meili = meili
	}
	if pgfts != nil {
		s.pgfts = pgfts
	}
	return s
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS. Failures
// yield an empty response.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}
	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexService indexes a service (fire-and-forget to Meilisearch).
func (s *Service) IndexService(record ServiceRecord) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexServices([]ServiceRecord{record}); err != nil {
			log.Printf("search: index service %s: %v", record.ID, err)
		}
	}()
}

// DeleteService removes a service from the index (fire-and-forget).
func (s *Service) DeleteService(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.DeleteService(id); err != nil {
			log.Printf("search: delete service %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG pushes every service from PostgreSQL into Meilisearch and
// returns how many records were sent.
func (s *Service) ReindexAllFromPG(ctx context.Context) int {
	if !s.meiliReady() || s.pgfts == nil {
		return 0
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return 0
	}
	if err := s.meili.IndexServices(records); err != nil {
		log.Printf("search: reindex services: %v", err)
		return 0
	}
	return len(records)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
