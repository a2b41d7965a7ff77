package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/store"
	tt "github.com/mockify/interviewstats/internal/transcripttest"
	"github.com/mockify/interviewstats/internal/wordbank"
)

func TestRebuildWordBank(t *testing.T) {
	ctx := context.Background()
	repo := store.NewRepository(store.NewMemory())
	_, err := repo.AppendSessions(ctx,
		tt.Session("s", tt.WithMessages(tt.User("golang", tt.At(0)))))
	require.NoError(t, err)

	cache := wordbank.NewCache()
	snap, err := rebuildWordBank(ctx, repo, cache, analytics.Filter{}, fixedNow, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Provenance.SessionCount)

	got, ok := cache.Get()
	require.True(t, ok)
	assert.Contains(t, got.Bank, "golang")
}

func TestStartRebuildSchedule(t *testing.T) {
	ctx := context.Background()
	repo := store.NewRepository(store.NewMemory())
	cache := wordbank.NewCache()

	_, err := startRebuildSchedule(ctx, "every tuesday", repo, cache, time.Now)
	assert.Error(t, err)

	c, err := startRebuildSchedule(ctx, "@every 1s", repo, cache, time.Now)
	require.NoError(t, err)
	defer c.Stop()
	require.Len(t, c.Entries(), 1)

	require.Eventually(t, func() bool {
		_, ok := cache.Get()
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}
