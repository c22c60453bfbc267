package store

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single persisted conversation turn.
type Message struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a planned activity with its two notification flags.
// ScheduledAt is immutable after creation. SentBefore and SentAfter only
// ever transition false -> true; once both are true the event is retired
// and leaves active scanning.
type Event struct {
	ID          string     `json:"id"`
	User        string     `json:"user"`
	Action      string     `json:"action"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	SentBefore  bool       `json:"sent_before"`
	SentAfter   bool       `json:"sent_after"`
	CreatedAt   time.Time  `json:"created_at"`
	RetiredAt   *time.Time `json:"retired_at,omitempty"`
}

// Retired reports whether both notifications have been delivered.
func (e Event) Retired() bool {
	return e.SentBefore && e.SentAfter
}
