package dispatch

import (
	"sync"
	"time"
)

// Notice describes one delivered notification, published to live
// observers (the websocket feed endpoint).
type Notice struct {
	To   string    `json:"to"`
	Kind string    `json:"kind"`
	Body string    `json:"body"`
	SID  string    `json:"sid"`
	At   time.Time `json:"at"`
}

// Feed fans delivered notifications out to subscribers. Publishing never
// blocks: a subscriber that cannot keep up loses notices rather than
// stalling the reconciliation loop.
type Feed struct {
	mu   sync.Mutex
	subs map[chan Notice]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Notice]struct{})}
}

// Subscribe returns a notice channel and a cancel func that must be
// called when the subscriber goes away.
func (f *Feed) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *Feed) Publish(n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
