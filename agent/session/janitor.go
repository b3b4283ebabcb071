package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const DefaultJanitorSchedule = "@every 10m"

// EvictIdle writes through and drops sessions untouched for longer than ttl.
// Sessions busy with a turn are skipped. Returns the number evicted.
func (m *Manager) EvictIdle(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-ttl).UnixNano()
	evicted := 0

	m.arena.Range(func(id string, e *entry) bool {
		if e.lastSeen.Load() > cutoff {
			return true
		}
		if !e.mu.TryLock() {
			return true
		}
		defer e.mu.Unlock()
		if e.evicted || e.lastSeen.Load() > cutoff {
			return true
		}
		if e.sess != nil {
			m.Persist(ctx, e.sess)
		}
		e.evicted = true
		m.arena.Delete(id)
		evicted++
		return true
	})

	if evicted > 0 {
		log.Info().Int("evicted", evicted).Int("remaining", m.arena.Size()).Msg("idle sessions evicted")
	}
	return evicted
}

// Janitor runs EvictIdle on a cron schedule.
type Janitor struct {
	cron *cron.Cron
}

func NewJanitor(m *Manager, schedule string, ttl time.Duration) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		m.EvictIdle(context.Background(), ttl)
	}); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", schedule, err)
	}
	return &Janitor{cron: c}, nil
}

func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish or ctx to
// expire.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
