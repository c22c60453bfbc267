package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTwilioSendPostsFormAndReturnsSID(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "token" {
			t.Errorf("basic auth = (%q, %q, %v), want account credentials", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotTo = r.FormValue("To")
		gotFrom = r.FormValue("From")
		gotBody = r.FormValue("Body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42"}`))
	}))
	defer ts.Close()

	d := NewTwilio(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		From:       "whatsapp:+14155238886",
		BaseURL:    ts.URL,
	})

	rcpt, err := d.Send(context.Background(), "whatsapp:+390001", "ciao")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if rcpt.SID != "SM42" {
		t.Fatalf("SID = %q, want %q", rcpt.SID, "SM42")
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotTo != "whatsapp:+390001" || gotFrom != "whatsapp:+14155238886" || gotBody != "ciao" {
		t.Fatalf("form = (%q, %q, %q)", gotTo, gotFrom, gotBody)
	}
}

func TestTwilioSendWrapsTransportErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"authentication failed"}`))
	}))
	defer ts.Close()

	d := NewTwilio(TwilioConfig{AccountSID: "AC123", AuthToken: "bad", From: "x", BaseURL: ts.URL})

	_, err := d.Send(context.Background(), "whatsapp:+390001", "ciao")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("Send() error = %v, want ErrDelivery", err)
	}
}
