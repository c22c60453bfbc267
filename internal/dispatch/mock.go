package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// SendRecord captures one mock delivery for assertions.
type SendRecord struct {
	To   string
	Body string
}

// MockDispatcher records sends and can be told to fail. Safe for
// concurrent use.
type MockDispatcher struct {
	mu   sync.Mutex
	sent []SendRecord
	fail error
}

func NewMockDispatcher() *MockDispatcher { return &MockDispatcher{} }

// FailWith makes every subsequent Send return err; nil restores success.
func (d *MockDispatcher) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *MockDispatcher) Send(_ context.Context, to, body string) (Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrDelivery, d.fail)
	}
	d.sent = append(d.sent, SendRecord{To: to, Body: body})
	return Receipt{SID: fmt.Sprintf("mock-%d", len(d.sent))}, nil
}

// Sent returns a copy of everything delivered so far.
func (d *MockDispatcher) Sent() []SendRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SendRecord, len(d.sent))
	copy(out, d.sent)
	return out
}
