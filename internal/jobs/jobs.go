// Package jobs runs periodic maintenance: session cleanup and search reindexing.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	PurgeSchedule   = "0 0 * * * *"
	ReindexSchedule = "0 30 2 * * *"

	jobTimeout = 5 * time.Minute
)

type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

type Reindexer interface {
	ReindexAllFromPG(ctx context.Context) int
}

type Scheduler struct {
	cron    *cron.Cron
	purger  SessionPurger
	indexer Reindexer
}

// New registers the purge job and, when indexer is non-nil, the nightly reindex.
func New(purger SessionPurger, indexer Reindexer) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		purger:  purger,
		indexer: indexer,
	}
	if purger != nil {
		if _, err := s.cron.AddFunc(PurgeSchedule, func() { s.RunPurge(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule session purge: %w", err)
		}
	}
	if indexer != nil {
		if _, err := s.cron.AddFunc(ReindexSchedule, func() { s.RunReindex(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule reindex: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("jobs: scheduler started with %d entries", len(s.cron.Entries()))
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("jobs: stop timed out: %v", ctx.Err())
	}
}

func (s *Scheduler) RunPurge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	removed, err := s.purger.PurgeExpiredSessions(ctx)
	if err != nil {
		log.Printf("jobs: purge expired sessions: %v", err)
		return
	}
	log.Printf("jobs: purged %d expired session rows", removed)
}

func (s *Scheduler) RunReindex(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	indexed := s.indexer.ReindexAllFromPG(ctx)
	log.Printf("jobs: reindexed %d services", indexed)
}
