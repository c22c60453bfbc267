package openai

import (
	"context"

	"github.com/wiboteam/wibo-ai-agent/internal/store"
)

// Reply continues a conversation from the windowed history the router
// hands over. The history already ends with the latest user turn.
func (c *Client) Reply(ctx context.Context, history []store.Message) (string, error) {
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, Message{Role: string(m.Role), Content: m.Content})
	}
	return c.Complete(ctx, msgs)
}
