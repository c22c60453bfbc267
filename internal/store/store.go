package store

import (
	"context"
	"errors"
)

var ErrEventNotFound = errors.New("event not found in store")

// Store persists conversation history and scheduled events. Implementations
// must make each call atomic with respect to concurrent callers: a reader
// never observes a partially-applied mutation.
type Store interface {
	AppendMessage(ctx context.Context, msg Message) error
	// History returns the most recent limit turns for a user in
	// chronological order. limit <= 0 returns the full history.
	History(ctx context.Context, user string, limit int) ([]Message, error)

	AddEvent(ctx context.Context, ev Event) error
	// ActiveEvents returns every non-retired event across all users.
	ActiveEvents(ctx context.Context) ([]Event, error)
	// UserEvents returns the non-retired events for one user.
	UserEvents(ctx context.Context, user string) ([]Event, error)
	// UpdateEvents persists flag mutations for the given events in one
	// batch. Events whose flags are both set are retired (archived, not
	// deleted) and disappear from active listings.
	UpdateEvents(ctx context.Context, evs []Event) error

	Close() error
}
