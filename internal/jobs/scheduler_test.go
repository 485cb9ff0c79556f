package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) ReconcileAll(context.Context) (int, error) {
	f.calls++
	return 2, f.err
}

type fakeSnapshotter struct {
	days []time.Time
}

func (f *fakeSnapshotter) Snapshot(_ context.Context, day time.Time) (int, error) {
	f.days = append(f.days, day)
	return 5, nil
}

type fakeCleaner struct{ calls int }

func (f *fakeCleaner) CleanupSessions(context.Context) (int64, error) {
	f.calls++
	return 1, nil
}

func TestSnapshot_PreviousUTCDay(t *testing.T) {
	snap := &fakeSnapshotter{}
	s := NewScheduler(Specs{}, &fakeReconciler{}, snap, &fakeCleaner{})
	// 00:05 UTC 20 октября — в Москве уже 03:05, но закрытый день всё равно 19-е
	s.now = func() time.Time { return time.Date(2026, 10, 20, 0, 5, 0, 0, time.UTC) }

	require.NoError(t, s.snapshot(context.Background()))
	require.Len(t, snap.days, 1)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), snap.days[0])
}

func TestReconcile_PropagatesError(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	s := NewScheduler(Specs{}, rec, &fakeSnapshotter{}, &fakeCleaner{})

	assert.Error(t, s.reconcile(context.Background()))
	assert.Equal(t, 1, rec.calls)

	// run не паникует и не пробрасывает ошибку
	s.run(context.Background(), "reconcile_balances", s.reconcile)
	assert.Equal(t, 2, rec.calls)
}

func TestStart_InvalidSpec(t *testing.T) {
	s := NewScheduler(Specs{Reconcile: "not a cron", Snapshot: "5 0 * * *"}, &fakeReconciler{}, &fakeSnapshotter{}, &fakeCleaner{})
	assert.Error(t, s.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	cleaner := &fakeCleaner{}
	s := NewScheduler(Specs{Reconcile: "15 * * * *", Snapshot: "5 0 * * *"}, &fakeReconciler{}, &fakeSnapshotter{}, cleaner)

	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 3)
	s.Stop()
}
