// Package dispatch delivers outbound notifications to users. The
// reconciliation loop only confirms an event flag after a dispatcher
// returned a receipt, so implementations must not report success for a
// message that was never handed to the transport.
package dispatch

import (
	"context"
	"errors"
)

var ErrDelivery = errors.New("notification delivery failed")

// Receipt identifies an accepted outbound message.
type Receipt struct {
	SID string `json:"sid"`
}

// Dispatcher sends one message to one user address.
type Dispatcher interface {
	Send(ctx context.Context, to, body string) (Receipt, error)
}
