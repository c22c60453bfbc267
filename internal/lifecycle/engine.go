package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/wiboteam/wibo-ai-agent/internal/clock"
	"github.com/wiboteam/wibo-ai-agent/internal/store"
)

// Kind selects which of the two notifications an event is due for.
type Kind string

const (
	// KindBefore is the pre-event reminder, due one lead interval ahead
	// of the scheduled time.
	KindBefore Kind = "before"
	// KindAfter is the post-event check-in, due one lag interval past
	// the scheduled time.
	KindAfter Kind = "after"
)

var (
	ErrInvalidTime = errors.New("datetime cannot be resolved to an instant")
	ErrPastTime    = errors.New("datetime is not in the future")
)

// Due pairs an event with the notification it is due for. The engine only
// proposes pairs; the caller dispatches and confirms via MarkSent, so a
// failed delivery leaves the pair due for the next scan.
type Due struct {
	Event store.Event
	Kind  Kind
}

// Engine owns event state transitions and the due-notification decision.
// It holds no event state of its own: every call operates on records the
// caller loaded from the store and hands mutations back for persistence.
type Engine struct {
	clock      clock.Clock
	loc        *time.Location
	beforeLead time.Duration
	afterLag   time.Duration
}

// New builds an engine with the given gate offsets. Non-positive offsets
// fall back to the service defaults (1h lead, 2h lag).
func New(clk clock.Clock, loc *time.Location, beforeLead, afterLag time.Duration) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if beforeLead <= 0 {
		beforeLead = time.Hour
	}
	if afterLag <= 0 {
		afterLag = 2 * time.Hour
	}
	return &Engine{clock: clk, loc: loc, beforeLead: beforeLead, afterLag: afterLag}
}

// Schedule constructs a new event from a raw datetime string. The string
// is parsed in the configured zone; unresolvable or non-future instants
// are rejected, no event is created for them.
func (e *Engine) Schedule(user, action, when string) (store.Event, error) {
	at, err := ParseWhen(when, e.loc)
	if err != nil {
		return store.Event{}, fmt.Errorf("%w: %q", ErrInvalidTime, when)
	}
	now := e.clock.Now()
	if !at.After(now) {
		return store.Event{}, fmt.Errorf("%w: %s", ErrPastTime, at.Format(time.RFC3339))
	}
	return store.Event{
		User:        user,
		Action:      action,
		ScheduledAt: at,
		CreatedAt:   now.UTC(),
	}, nil
}

// ScanDue evaluates both gates for every event against now and returns
// the newly satisfied (event, kind) pairs. Gates are independent: the
// post gate can fire without the pre gate having fired. An event whose
// flag is already set is never proposed again for that kind.
func (e *Engine) ScanDue(evs []store.Event, now time.Time) []Due {
	var due []Due
	for _, ev := range evs {
		if ev.Retired() {
			continue
		}
		if !ev.SentBefore && !now.Before(ev.ScheduledAt.Add(-e.beforeLead)) {
			due = append(due, Due{Event: ev, Kind: KindBefore})
		}
		if !ev.SentAfter && !now.Before(ev.ScheduledAt.Add(e.afterLag)) {
			due = append(due, Due{Event: ev, Kind: KindAfter})
		}
	}
	return due
}

// MarkSent confirms a delivered notification by setting the matching
// flag. Setting a flag twice is a no-op, so confirmation is idempotent.
// The caller persists the mutated event; the store retires it once both
// flags are true.
func (e *Engine) MarkSent(ev *store.Event, kind Kind) {
	switch kind {
	case KindBefore:
		ev.SentBefore = true
	case KindAfter:
		ev.SentAfter = true
	}
}

// RenderNotification produces the user-facing text for a due pair.
func (e *Engine) RenderNotification(ev store.Event, kind Kind) string {
	at := ev.ScheduledAt.In(e.loc)
	switch kind {
	case KindBefore:
		return fmt.Sprintf("Ehi! Alle %s avevi in programma “%s” – preparati! 😉", at.Format("15:04"), ev.Action)
	case KindAfter:
		return fmt.Sprintf("Com'è andata l'attività “%s”? Raccontami!", ev.Action)
	default:
		return ""
	}
}

// RenderConfirmation is the reply sent right after an event is scheduled.
func (e *Engine) RenderConfirmation(ev store.Event) string {
	at := ev.ScheduledAt.In(e.loc)
	return fmt.Sprintf("Perfetto, ho registrato “%s” per il %s. Ci sentiamo poco prima per un ripasso 🙂", ev.Action, at.Format("02/01 alle 15:04"))
}
