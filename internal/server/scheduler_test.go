package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeScheduleStore struct {
	workspaces []store.Workspace
	latest     map[string]*time.Time
}

func (f *fakeScheduleStore) ListWorkspaces(context.Context) ([]store.Workspace, error) {
	return f.workspaces, nil
}

func (f *fakeScheduleStore) LatestFactTime(_ context.Context, id string) (*time.Time, error) {
	return f.latest[id], nil
}

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	freed []string
}

func (f *fakeLocker) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.held[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLocker) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freed = append(f.freed, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func ptr(t time.Time) *time.Time { return &t }

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 5, 2, 7, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		spec string
		last *time.Time
		want bool
	}{
		{"never refreshed", "0 6 * * *", nil, true},
		{"daily passed", "@daily", ptr(now.Add(-25 * time.Hour)), true},
		{"daily not yet", "@daily", ptr(now.Add(-time.Hour)), false},
		{"cron fired since last", "0 6 * * *", ptr(now.Add(-2 * time.Hour)), true},
		{"cron not fired since last", "0 6 * * *", ptr(now.Add(-30 * time.Minute)), false},
		{"invalid spec", "whenever", nil, false},
	}
	for _, tc := range cases {
		if got := isDue(tc.spec, tc.last, now); got != tc.want {
			t.Fatalf("%s: isDue = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSchedulerTick(t *testing.T) {
	now := time.Date(2026, 5, 2, 7, 0, 0, 0, time.UTC)
	st := &fakeScheduleStore{
		workspaces: []store.Workspace{
			{ID: "ws-due", BrandName: "Acme", Domain: "acme.com", RefreshCron: "@hourly"},
			{ID: "ws-fresh", BrandName: "Fresh", Domain: "fresh.io", RefreshCron: "@daily"},
			{ID: "ws-manual", BrandName: "Manual", Domain: "manual.io"},
			{ID: "ws-locked", BrandName: "Locked", Domain: "locked.io", RefreshCron: "@hourly"},
		},
		latest: map[string]*time.Time{
			"ws-due":   ptr(now.Add(-2 * time.Hour)),
			"ws-fresh": ptr(now.Add(-time.Hour)),
		},
	}
	agg := &fakeAggregator{}
	locker := &fakeLocker{held: map[string]bool{lockPrefix + "ws-locked": true}}
	s := NewScheduler(config.SchedulerConfig{RatePerMinute: 6000, LockTTL: time.Minute}, st, agg, locker, zerolog.Nop())
	s.now = func() time.Time { return now }

	if n := s.Tick(context.Background()); n != 1 {
		t.Fatalf("expected one refresh, got %d", n)
	}
	if len(agg.calls) != 1 || agg.calls[0].Brand != "Acme" {
		t.Fatalf("unexpected calls %+v", agg.calls)
	}
	if len(locker.freed) != 1 || locker.freed[0] != lockPrefix+"ws-due" {
		t.Fatalf("lock not released: %v", locker.freed)
	}

	// The in-process run time suppresses a second refresh in the same hour
	// even though no facts were stored.
	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("expected no refresh on second tick, got %d", n)
	}
}

func TestSchedulerStartRejectsBadTick(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{Tick: "not a schedule"}, &fakeScheduleStore{}, &fakeAggregator{}, nil, zerolog.Nop())
	if err := s.Start(); err == nil {
		t.Fatal("expected error")
	}
}

type blockingAggregator struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAggregator) Aggregate(context.Context, insight.Request) (insight.Report, error) {
	b.entered <- struct{}{}
	<-b.release
	return insight.NewReport(), nil
}

func TestSchedulerStopReportsRunningTick(t *testing.T) {
	st := &fakeScheduleStore{workspaces: []store.Workspace{{ID: "ws-1", BrandName: "Acme", Domain: "acme.com", RefreshCron: "@hourly"}}}
	agg := &blockingAggregator{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewScheduler(config.SchedulerConfig{Tick: "@every 1s", RatePerMinute: 6000}, st, agg, nil, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-agg.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("tick never reached the aggregator")
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Stop(short); err == nil {
		t.Fatal("Stop should report the unfinished tick")
	}

	close(agg.release)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after the tick finished: %v", err)
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{}, &fakeScheduleStore{}, &fakeAggregator{}, nil, zerolog.Nop())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
