package httpapi

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wiboteam/wibo-ai-agent/internal/config"
	"github.com/wiboteam/wibo-ai-agent/internal/dispatch"
	"github.com/wiboteam/wibo-ai-agent/internal/observability"
	"github.com/wiboteam/wibo-ai-agent/internal/store"
)

type fakeConversations struct {
	reply string
	err   error
	from  string
	body  string
}

func (f *fakeConversations) Handle(_ context.Context, from, body string) (string, error) {
	f.from = from
	f.body = body
	return f.reply, f.err
}

func newTestServer(t *testing.T, conv Conversations) (*httptest.Server, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	metrics := observability.NewMetrics(testNamespace(t))
	srv := New(config.Config{}, conv, st, dispatch.NewFeed(), metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, st
}

var namespaceSeq atomic.Int64

// testNamespace gives every NewMetrics call its own namespace: promauto
// registers in the process-global registry, so reusing one would panic
// with a duplicate registration.
func testNamespace(t *testing.T) string {
	t.Helper()
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, t.Name())
	return fmt.Sprintf("test_httpapi_%s_%d", name, namespaceSeq.Add(1))
}

func TestWebhookRepliesWithTwiML(t *testing.T) {
	conv := &fakeConversations{reply: "Perfetto, ho registrato “dentista”"}
	ts, _ := newTestServer(t, conv)

	form := url.Values{}
	form.Set("From", "whatsapp:+390001")
	form.Set("Body", "dentista domani alle 15")
	res, err := http.PostForm(ts.URL+"/bot", form)
	if err != nil {
		t.Fatalf("POST /bot error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Fatalf("Content-Type = %q, want application/xml", ct)
	}

	var env struct {
		Messages []string `xml:"Message"`
	}
	if err := decodeXML(res, &env); err != nil {
		t.Fatalf("decode TwiML: %v", err)
	}
	if len(env.Messages) != 1 || env.Messages[0] != conv.reply {
		t.Fatalf("TwiML messages = %v, want the router reply", env.Messages)
	}
	if conv.from != "whatsapp:+390001" || conv.body != "dentista domani alle 15" {
		t.Fatalf("router saw (%q, %q)", conv.from, conv.body)
	}
}

func TestWebhookRequiresSender(t *testing.T) {
	ts, _ := newTestServer(t, &fakeConversations{})

	form := url.Values{}
	form.Set("Body", "ciao")
	res, err := http.PostForm(ts.URL+"/bot", form)
	if err != nil {
		t.Fatalf("POST /bot error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

// Every server built by the helper registers its own metrics; a second
// construction in the same process must not collide in the registry.
func TestServersRegisterDistinctMetrics(t *testing.T) {
	newTestServer(t, &fakeConversations{})
	newTestServer(t, &fakeConversations{})
}

func TestWebhookCountsRejectedSenders(t *testing.T) {
	ts, _ := newTestServer(t, &fakeConversations{})

	form := url.Values{}
	form.Set("Body", "ciao")
	res, err := http.PostForm(ts.URL+"/bot", form)
	if err != nil {
		t.Fatalf("POST /bot error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	mres, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer mres.Body.Close()
	body, err := io.ReadAll(mres.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	if !strings.Contains(string(body), `inbound_messages_total{outcome="rejected"} 1`) {
		t.Fatalf("metrics output missing rejected inbound counter")
	}
}

// A store failure still produces a friendly TwiML reply, never a raw error.
func TestWebhookHidesInternalErrors(t *testing.T) {
	conv := &fakeConversations{err: context.DeadlineExceeded}
	ts, _ := newTestServer(t, conv)

	form := url.Values{}
	form.Set("From", "whatsapp:+390001")
	form.Set("Body", "ciao")
	res, err := http.PostForm(ts.URL+"/bot", form)
	if err != nil {
		t.Fatalf("POST /bot error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var env struct {
		Messages []string `xml:"Message"`
	}
	if err := decodeXML(res, &env); err != nil {
		t.Fatalf("decode TwiML: %v", err)
	}
	if len(env.Messages) != 1 || strings.Contains(env.Messages[0], "deadline") {
		t.Fatalf("TwiML messages = %v, want a friendly reply", env.Messages)
	}
}

func TestListEventsFiltersByUser(t *testing.T) {
	ts, st := newTestServer(t, &fakeConversations{})
	ctx := context.Background()

	at := time.Now().UTC().Add(2 * time.Hour)
	_ = st.AddEvent(ctx, store.Event{ID: "e1", User: "u1", Action: "dentista", ScheduledAt: at})
	_ = st.AddEvent(ctx, store.Event{ID: "e2", User: "u2", Action: "palestra", ScheduledAt: at})

	res, err := http.Get(ts.URL + "/v1/events?user=u1")
	if err != nil {
		t.Fatalf("GET /v1/events error = %v", err)
	}
	defer res.Body.Close()

	var out struct {
		Events []store.Event `json:"events"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(out.Events) != 1 || out.Events[0].User != "u1" {
		t.Fatalf("events = %+v, want only u1", out.Events)
	}
}

func TestHealthReportsStoreMode(t *testing.T) {
	ts, _ := newTestServer(t, &fakeConversations{})

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["store_mode"] != "file" {
		t.Fatalf("store_mode = %v, want file", body["store_mode"])
	}
}

func decodeXML(res *http.Response, out any) error {
	return xml.NewDecoder(res.Body).Decode(out)
}
