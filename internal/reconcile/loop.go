// Package reconcile drives the event lifecycle engine on a fixed
// interval: scan persisted events for due notifications, dispatch each
// one outside the store lock, confirm delivered ones, persist in one
// batch. Everything is re-derived from stored timestamps each pass, so
// the loop survives process restarts without orphaned timers.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wiboteam/wibo-ai-agent/internal/clock"
	"github.com/wiboteam/wibo-ai-agent/internal/dispatch"
	"github.com/wiboteam/wibo-ai-agent/internal/lifecycle"
	"github.com/wiboteam/wibo-ai-agent/internal/observability"
	"github.com/wiboteam/wibo-ai-agent/internal/store"
)

type Loop struct {
	store           store.Store
	engine          *lifecycle.Engine
	dispatcher      dispatch.Dispatcher
	feed            *dispatch.Feed
	metrics         *observability.Metrics
	clock           clock.Clock
	interval        time.Duration
	dispatchTimeout time.Duration
}

func New(
	st store.Store,
	engine *lifecycle.Engine,
	dispatcher dispatch.Dispatcher,
	feed *dispatch.Feed,
	metrics *observability.Metrics,
	clk clock.Clock,
	interval time.Duration,
	dispatchTimeout time.Duration,
) *Loop {
	if interval <= 0 {
		interval = time.Minute
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 5 * time.Second
	}
	return &Loop{
		store:           st,
		engine:          engine,
		dispatcher:      dispatcher,
		feed:            feed,
		metrics:         metrics,
		clock:           clk,
		interval:        interval,
		dispatchTimeout: dispatchTimeout,
	}
}

// Start runs the loop in a goroutine until ctx is cancelled. A failed
// tick is logged and retried on the next interval, never fatal.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.Tick(ctx); err != nil {
					log.Printf("reconcile tick failed: %v", err)
				}
			}
		}
	}()
}

// Tick performs one reconciliation pass. Exported so tests can drive the
// loop with a fake clock instead of waiting on the ticker.
func (l *Loop) Tick(ctx context.Context) error {
	now := l.clock.Now()

	events, err := l.store.ActiveEvents(ctx)
	if err != nil {
		return fmt.Errorf("load active events: %w", err)
	}

	due := l.engine.ScanDue(events, now)

	// One event can be due for both kinds in the same pass (e.g. after a
	// long downtime); merge its confirmations into a single record so the
	// batch update sees the final flag state.
	confirmed := make(map[string]*store.Event)
	for _, d := range due {
		body := l.engine.RenderNotification(d.Event, d.Kind)

		dctx, cancel := context.WithTimeout(ctx, l.dispatchTimeout)
		started := time.Now()
		rcpt, err := l.dispatcher.Send(dctx, d.Event.User, body)
		cancel()

		if l.metrics != nil {
			l.metrics.ObserveDispatchLatency(time.Since(started))
		}
		if err != nil {
			// Unconfirmed: the pair stays due and is re-proposed next tick.
			log.Printf("dispatch %s notification for event %s failed: %v", d.Kind, d.Event.ID, err)
			l.countNotification(d.Kind, "failed")
			continue
		}
		l.countNotification(d.Kind, "sent")

		ev, ok := confirmed[d.Event.ID]
		if !ok {
			cp := d.Event
			ev = &cp
			confirmed[d.Event.ID] = ev
		}
		l.engine.MarkSent(ev, d.Kind)

		if l.feed != nil {
			l.feed.Publish(dispatch.Notice{
				To:   d.Event.User,
				Kind: string(d.Kind),
				Body: body,
				SID:  rcpt.SID,
				At:   now,
			})
		}
	}

	if len(confirmed) > 0 {
		batch := make([]store.Event, 0, len(confirmed))
		for _, ev := range confirmed {
			batch = append(batch, *ev)
		}
		// A failed save here is loud: the flags were only mutated on our
		// copies, so nothing is lost and the next tick re-derives the
		// same due set. Duplicate sends are possible, lost events are not.
		if err := l.store.UpdateEvents(ctx, batch); err != nil {
			return fmt.Errorf("persist confirmed notifications: %w", err)
		}
	}

	if l.metrics != nil {
		active := 0
		for _, ev := range events {
			if c, ok := confirmed[ev.ID]; ok {
				if !c.Retired() {
					active++
				}
				continue
			}
			active++
		}
		l.metrics.ActiveEvents.Set(float64(active))
		l.metrics.ReconcileTicks.Inc()
	}
	return nil
}

func (l *Loop) countNotification(kind lifecycle.Kind, outcome string) {
	if l.metrics != nil {
		l.metrics.Notifications.WithLabelValues(string(kind), outcome).Inc()
	}
}
