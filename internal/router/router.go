// Package router decides, per inbound message, whether to schedule a new
// event or continue the chat conversation.
package router

import (
	"context"
	"log"

	"github.com/wiboteam/wibo-ai-agent/internal/clock"
	"github.com/wiboteam/wibo-ai-agent/internal/extract"
	"github.com/wiboteam/wibo-ai-agent/internal/lifecycle"
	"github.com/wiboteam/wibo-ai-agent/internal/observability"
	"github.com/wiboteam/wibo-ai-agent/internal/store"
)

const (
	replyClarify  = "Ho capito l'azione, ma non la data. Puoi riscriverla?"
	replyFallback = "Scusami, ho avuto un problema a risponderti. Riprova tra poco."
)

// ChatModel continues a free-form conversation from windowed history.
type ChatModel interface {
	Reply(ctx context.Context, history []store.Message) (string, error)
}

// ChatFunc adapts a plain function to the ChatModel interface.
type ChatFunc func(ctx context.Context, history []store.Message) (string, error)

func (f ChatFunc) Reply(ctx context.Context, history []store.Message) (string, error) {
	return f(ctx, history)
}

// Router handles one inbound message end to end. The sender is never
// shown a raw internal error: every failure path degrades to a
// clarification or a chat-style reply.
type Router struct {
	store     store.Store
	engine    *lifecycle.Engine
	extractor extract.Extractor
	chat      ChatModel
	clock     clock.Clock
	metrics   *observability.Metrics
	window    int
}

func New(st store.Store, engine *lifecycle.Engine, extractor extract.Extractor, chat ChatModel, clk clock.Clock, metrics *observability.Metrics, window int) *Router {
	if window <= 0 {
		window = 10
	}
	return &Router{
		store:     st,
		engine:    engine,
		extractor: extractor,
		chat:      chat,
		clock:     clk,
		metrics:   metrics,
		window:    window,
	}
}

// Handle appends the user turn, runs extraction and either schedules an
// event or continues the chat. The returned string is the reply text for
// the webhook envelope.
func (r *Router) Handle(ctx context.Context, from, body string) (string, error) {
	userMsg := store.Message{User: from, Role: store.RoleUser, Content: body}
	if err := r.store.AppendMessage(ctx, userMsg); err != nil {
		return "", err
	}

	res, err := r.extractor.Extract(ctx, body, r.clock.Now())
	if err != nil {
		// Malformed model output never crashes the request: the message
		// is treated as plain chat.
		log.Printf("extraction failed, falling back to chat: %v", err)
		res = extract.Result{}
	}

	switch {
	case res.HasAction() && res.HasWhen():
		ev, err := r.engine.Schedule(from, res.Action, res.When)
		if err != nil {
			// Unresolvable or past datetime: ask, never guess.
			log.Printf("schedule rejected for %s: %v", from, err)
			r.count("clarify")
			return replyClarify, nil
		}
		if err := r.store.AddEvent(ctx, ev); err != nil {
			return "", err
		}
		r.count("scheduled")
		return r.engine.RenderConfirmation(ev), nil

	case res.HasAction():
		r.count("clarify")
		return replyClarify, nil

	default:
		return r.continueChat(ctx, from)
	}
}

func (r *Router) continueChat(ctx context.Context, from string) (string, error) {
	history, err := r.store.History(ctx, from, r.window)
	if err != nil {
		return "", err
	}

	reply, err := r.chat.Reply(ctx, history)
	if err != nil {
		log.Printf("chat reply failed for %s: %v", from, err)
		r.count("error")
		return replyFallback, nil
	}

	if err := r.store.AppendMessage(ctx, store.Message{User: from, Role: store.RoleAssistant, Content: reply}); err != nil {
		return "", err
	}
	r.count("chat")
	return reply, nil
}

func (r *Router) count(outcome string) {
	if r.metrics != nil {
		r.metrics.InboundMessages.WithLabelValues(outcome).Inc()
	}
}
