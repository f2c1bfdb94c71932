package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cadences mirror the retention rules of the stored artifacts: tokens live
// at most 24h, challenges at most 5m, so each sweep only removes garbage.
const (
	tokenSweepInterval   = 24 * time.Hour
	expiredSweepInterval = time.Hour
	usedSweepInterval    = 6 * time.Hour
)

type tokenSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type challengeSweeper interface {
	DeleteExpired(ctx context.Context, now int64) (int, error)
	DeleteUsed(ctx context.Context) (int, error)
}

// Scheduler runs the background retention sweeps, one goroutine per task.
// A panicking sweep is logged and the task keeps its schedule.
type Scheduler struct {
	tokens     tokenSweeper
	challenges challengeSweeper
	wg         sync.WaitGroup
}

type sweepTask struct {
	name     string
	interval time.Duration
	run      func(context.Context) (int, error)
}

func NewScheduler(tokens tokenSweeper, challenges challengeSweeper) *Scheduler {
	return &Scheduler{tokens: tokens, challenges: challenges}
}

func (s *Scheduler) tasks() []sweepTask {
	return []sweepTask{
		{"token_sweep", tokenSweepInterval, func(ctx context.Context) (int, error) {
			return s.tokens.Sweep(ctx, time.Now())
		}},
		{"expired_challenge_sweep", expiredSweepInterval, func(ctx context.Context) (int, error) {
			return s.challenges.DeleteExpired(ctx, time.Now().Unix())
		}},
		{"used_challenge_sweep", usedSweepInterval, func(ctx context.Context) (int, error) {
			return s.challenges.DeleteUsed(ctx)
		}},
	}
}

// Start launches the sweep loops. They stop when ctx is cancelled; Wait
// blocks until all of them have returned.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.tasks() {
		s.loop(ctx, t)
	}
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunAll executes every sweep once, outside the timers, and reports how many
// records each one removed. Backs the admin maintenance endpoint.
func (s *Scheduler) RunAll(ctx context.Context) map[string]int {
	results := make(map[string]int, 3)
	for _, t := range s.tasks() {
		if removed, ok := s.sweep(ctx, t); ok {
			results[t.name] = removed
		}
	}
	return results
}

func (s *Scheduler) loop(ctx context.Context, t sweepTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx, t)
			}
		}
	}()
}

func (s *Scheduler) sweep(ctx context.Context, t sweepTask) (removed int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cleanup task panicked", "task", t.name, "panic", r)
			removed, ok = 0, false
		}
	}()
	n, err := t.run(ctx)
	if err != nil {
		slog.Error("cleanup task failed", "task", t.name, "err", err)
		return 0, false
	}
	if n > 0 {
		slog.Info("cleanup task finished", "task", t.name, "removed", n)
	}
	return n, true
}
