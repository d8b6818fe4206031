package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls       atomic.Int32
	expiredOnly atomic.Bool
	removed     int64
	err         error
}

func (p *fakePurger) Purge(_ context.Context, expiredOnly bool) (int64, error) {
	p.calls.Add(1)
	p.expiredOnly.Store(expiredOnly)
	return p.removed, p.err
}

func TestMaintenanceRun(t *testing.T) {
	p := &fakePurger{removed: 3}
	s := NewMaintenanceService(p, cron.New(), "0 1 * * *")

	n, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, p.expiredOnly.Load(), "maintenance only removes expired entries")
}

func TestMaintenanceRunError(t *testing.T) {
	p := &fakePurger{err: errors.New("database is locked")}
	s := NewMaintenanceService(p, cron.New(), "0 1 * * *")

	_, err := s.Run(context.Background())
	assert.Error(t, err)
}

func TestMaintenanceSchedule(t *testing.T) {
	c := cron.New()
	s := NewMaintenanceService(&fakePurger{}, c, "0 1 * * *")
	require.NoError(t, s.Schedule(context.Background()))
	assert.Len(t, c.Entries(), 1)

	bad := NewMaintenanceService(&fakePurger{}, cron.New(), "not a cron")
	assert.Error(t, bad.Schedule(context.Background()))
}

func TestOrchestratorPurgeAndStats(t *testing.T) {
	var calls atomic.Int32
	store := newStore(t)
	o := NewOrchestrator(testConfig(), store, upper(&calls))
	ctx := context.Background()

	_, err := o.Translate(ctx, Document{Path: "a.md", Content: []byte("Hello.\n")}, Options{})
	require.NoError(t, err)

	stats, err := o.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EntryCount)

	n, err := o.Purge(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh entries are not expired")

	n, err = o.Purge(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, o.CacheConnected(ctx))
}
