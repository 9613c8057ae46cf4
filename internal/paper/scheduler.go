package paper

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"tradesim/internal/feed"
	"tradesim/internal/markethours"
)

// Scheduler is a cancellable periodic task: it invokes fn for one symbol at
// a fixed interval until stopped. The stopped flag is observed before each
// tick, so no invocation happens after Stop returns; an in-flight invocation
// is never interrupted.
type Scheduler struct {
	symbol   string
	interval time.Duration
	fn       func(symbol string)
	stopped  atomic.Bool
}

// NewScheduler creates a scheduler for symbol. fn runs in the scheduler's
// goroutine once per interval.
func NewScheduler(symbol string, interval time.Duration, fn func(symbol string)) *Scheduler {
	return &Scheduler{symbol: symbol, interval: interval, fn: fn}
}

// Run blocks, invoking fn each interval, until ctx is cancelled or Stop is
// called.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[paper] scheduler for %s every %s", s.symbol, s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stopped.Load() {
				return
			}
			s.fn(s.symbol)
		}
	}
}

// Stop prevents any further invocations. Idempotent.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (s *Scheduler) Stopped() bool {
	return s.stopped.Load()
}

// StartSchedulers launches one polling scheduler per symbol, each fetching
// the latest quote from source and feeding it into the engine. The returned
// schedulers can be stopped individually without affecting the others.
// With MarketHoursOnly set, polls outside the regular session are skipped.
func (e *Engine) StartSchedulers(ctx context.Context, source feed.QuoteSource, symbols []string, interval time.Duration) []*Scheduler {
	schedulers := make([]*Scheduler, 0, len(symbols))
	for _, symbol := range symbols {
		var closedLogged bool
		sched := NewScheduler(symbol, interval, func(sym string) {
			if e.cfg.MarketHoursOnly {
				now := time.Now()
				if !markethours.IsMarketOpen(now) {
					if !closedLogged {
						log.Printf("[paper] %s idle: %s", sym, markethours.StatusString(now))
						closedLogged = true
					}
					return
				}
				closedLogged = false
			}
			quoteCtx, cancel := context.WithTimeout(ctx, interval)
			defer cancel()
			q, err := source.LatestQuote(quoteCtx, sym)
			if err != nil {
				log.Printf("[paper] quote fetch for %s failed: %v", sym, err)
				return
			}
			e.OnQuote(q)
		})
		schedulers = append(schedulers, sched)
		go sched.Run(ctx)
	}
	return schedulers
}
