package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wiboteam/wibo-ai-agent/internal/config"
	"github.com/wiboteam/wibo-ai-agent/internal/dispatch"
	"github.com/wiboteam/wibo-ai-agent/internal/observability"
	"github.com/wiboteam/wibo-ai-agent/internal/store"
)

// Conversations handles one inbound message and returns the reply text.
type Conversations interface {
	Handle(ctx context.Context, from, body string) (string, error)
}

type Server struct {
	cfg      config.Config
	conv     Conversations
	store    store.Store
	feed     *dispatch.Feed
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, conv Conversations, st store.Store, feed *dispatch.Feed, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		conv:    conv,
		store:   st,
		feed:    feed,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may watch the notification
				// feed unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/bot", s.handleWebhook)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/events", s.handleListEvents)
	r.Get("/v1/notifications/ws", s.handleNotificationsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode(),
	})
}

// handleWebhook is the inbound message endpoint. The transport posts a
// form with From (sender address) and Body (message text) and expects a
// TwiML envelope wrapping the reply.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	from := strings.TrimSpace(r.FormValue("From"))
	body := strings.TrimSpace(r.FormValue("Body"))
	if from == "" {
		s.countInbound("rejected")
		respondError(w, http.StatusBadRequest, "missing_sender", "form field From is required")
		return
	}

	reply, err := s.conv.Handle(r.Context(), from, body)
	if err != nil {
		// Store-level failure. The sender still gets a friendly reply;
		// the error itself is for the logs.
		s.countInbound("error")
		respondTwiML(w, "Scusami, ho avuto un problema. Riprova tra poco.")
		return
	}
	respondTwiML(w, reply)
}

func (s *Server) countInbound(outcome string) {
	if s.metrics != nil {
		s.metrics.InboundMessages.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))

	var (
		events []store.Event
		err    error
	)
	if user != "" {
		events, err = s.store.UserEvents(r.Context(), user)
	} else {
		events, err = s.store.ActiveEvents(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleNotificationsWS streams delivered notifications to an observer
// (ops console). Writes are single-threaded with a deadline; a slow
// consumer is disconnected rather than buffered without bound.
func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "notification feed not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	notices, cancelSub := s.feed.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader only detects client close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		}
	}
}

func (s *Server) storeMode() string {
	if strings.TrimSpace(s.cfg.DatabaseURL) != "" {
		return "postgres"
	}
	return "file"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
