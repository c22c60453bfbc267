package dispatch

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// LogDispatcher writes outbound messages to the process log instead of a
// real transport. Used when Twilio credentials are absent so the service
// still runs end-to-end in development.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

func (d *LogDispatcher) Send(_ context.Context, to, body string) (Receipt, error) {
	sid := "local-" + uuid.NewString()
	log.Printf("dispatch (log): to=%s sid=%s body=%q", to, sid, body)
	return Receipt{SID: sid}, nil
}
