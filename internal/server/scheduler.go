package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const lockPrefix = "brandlens:sched:lock:"

// ScheduleStore lists workspaces and reports when each was last refreshed.
type ScheduleStore interface {
	ListWorkspaces(ctx context.Context) ([]store.Workspace, error)
	LatestFactTime(ctx context.Context, workspaceID string) (*time.Time, error)
}

// Locker is the subset of the Redis client used for per-workspace locks.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Scheduler re-aggregates workspaces whose refresh cron is due.
type Scheduler struct {
	store   ScheduleStore
	agg     Aggregator
	locker  Locker
	limiter *rate.Limiter
	lockTTL time.Duration
	tick    string
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	lastRun map[string]time.Time
	cron    *cron.Cron
}

// NewScheduler builds a scheduler. locker may be nil when Redis is not
// configured; runs are then not coordinated across replicas.
func NewScheduler(cfg config.SchedulerConfig, st ScheduleStore, agg Aggregator, locker Locker, log zerolog.Logger) *Scheduler {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	tick := cfg.Tick
	if strings.TrimSpace(tick) == "" {
		tick = "@every 1m"
	}
	return &Scheduler{
		store:   st,
		agg:     agg,
		locker:  locker,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		lockTTL: ttl,
		tick:    tick,
		log:     log.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
		lastRun: map[string]time.Time{},
	}
}

// Start registers the tick with cron and starts it.
func (s *Scheduler) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.tick, func() { s.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("scheduler tick %q: %w", s.tick, err)
	}
	s.cron = c
	c.Start()
	s.log.Info().Str("tick", s.tick).Msg("scheduler started")
	return nil
}

// Stop waits for a running tick to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler tick still running: %w", ctx.Err())
	}
}

// Tick refreshes every due workspace, paced by the rate limiter. It returns
// the number of workspaces aggregated.
func (s *Scheduler) Tick(ctx context.Context) int {
	workspaces, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list workspaces")
		return 0
	}
	ran := 0
	for _, ws := range workspaces {
		if strings.TrimSpace(ws.RefreshCron) == "" {
			continue
		}
		last, err := s.lastRefresh(ctx, ws.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("workspace", ws.ID).Msg("latest fact lookup failed")
			continue
		}
		if !isDue(ws.RefreshCron, last, s.now()) {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return ran
		}
		if s.refresh(ctx, ws) {
			ran++
		}
	}
	return ran
}

func (s *Scheduler) refresh(ctx context.Context, ws store.Workspace) bool {
	if s.locker != nil {
		key := lockPrefix + ws.ID
		ok, err := s.locker.SetNX(ctx, key, "1", s.lockTTL).Result()
		if err != nil {
			s.log.Warn().Err(err).Str("workspace", ws.ID).Msg("lock failed")
			return false
		}
		if !ok {
			return false
		}
		defer s.locker.Del(context.Background(), key)
	}

	start := s.now()
	_, err := s.agg.Aggregate(ctx, insight.Request{Brand: ws.BrandName, Domain: ws.Domain})
	if err != nil {
		// Only a blank brand or domain fails; the row is unusable.
		if errors.Is(err, insight.ErrRequestInvalid) {
			s.log.Warn().Err(err).Str("workspace", ws.ID).Msg("workspace cannot be aggregated")
		}
		return false
	}
	s.mu.Lock()
	s.lastRun[ws.ID] = start
	s.mu.Unlock()
	s.log.Info().Str("workspace", ws.ID).Str("brand", ws.BrandName).Msg("workspace refreshed")
	return true
}

// lastRefresh is the later of the newest stored fact and the last
// in-process run. Workspaces without insight-worthy data never get facts.
func (s *Scheduler) lastRefresh(ctx context.Context, id string) (*time.Time, error) {
	last, err := s.store.LatestFactTime(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	run, ok := s.lastRun[id]
	s.mu.Unlock()
	if ok && (last == nil || run.After(*last)) {
		return &run, nil
	}
	return last, nil
}

// isDue reports whether a workspace with cronSpec should refresh at now.
// Never-refreshed workspaces are due immediately; unparsable specs never are.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	expr, err := cronexpr.Parse(strings.TrimSpace(cronSpec))
	if err != nil {
		return false
	}
	if last == nil {
		return true
	}
	next := expr.Next(*last)
	return !next.IsZero() && !next.After(now)
}
