package main

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/store"
	"github.com/mockify/interviewstats/internal/wordbank"
)

// rebuildWordBank loads the collection, narrows it with f and
// rebuilds the bank from the result, persisting it.
func rebuildWordBank(
	ctx context.Context, repo *store.Repository, cache *wordbank.Cache,
	f analytics.Filter, now time.Time, trigger string,
) (wordbank.Snapshot, error) {
	sessions, err := repo.LoadSessions(ctx)
	if err != nil {
		return wordbank.Snapshot{}, err
	}
	return repo.RebuildWordBank(
		ctx, cache, analytics.Apply(sessions, f), now, trigger,
	)
}

// startRebuildSchedule runs a word bank rebuild on every tick of
// spec, a standard five-field cron expression or descriptor such
// as @daily. Runs are skipped while a previous one is still going.
func startRebuildSchedule(
	ctx context.Context, spec string,
	repo *store.Repository, cache *wordbank.Cache, now func() time.Time,
) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		snap, err := rebuildWordBank(
			ctx, repo, cache, analytics.Filter{}, now(), "schedule",
		)
		if err != nil {
			log.Printf("scheduled rebuild failed: %v", err)
			return
		}
		log.Printf(
			"scheduled rebuild: %d tokens from %d sessions",
			len(snap.Bank), snap.Provenance.SessionCount,
		)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Printf("word bank rebuild scheduled: %s", spec)
	return c, nil
}
