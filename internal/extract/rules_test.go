package extract

import (
	"context"
	"testing"
	"time"
)

var rome = mustLoadLocation("Europe/Rome")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func TestRuleExtractorISOLiteral(t *testing.T) {
	r := NewRuleExtractor(rome)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, rome)

	res, err := r.Extract(context.Background(), "dentista 2025-06-10T15:00:00+02:00", now)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Action != "dentista" {
		t.Fatalf("Action = %q, want %q", res.Action, "dentista")
	}
	if res.When != "2025-06-10T15:00:00+02:00" {
		t.Fatalf("When = %q, want the ISO literal", res.When)
	}
}

func TestRuleExtractorRelativePhrase(t *testing.T) {
	r := NewRuleExtractor(rome)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, rome)

	res, err := r.Extract(context.Background(), "devo andare in palestra domani alle 15:30", now)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Action != "andare in palestra" {
		t.Fatalf("Action = %q, want %q", res.Action, "andare in palestra")
	}
	want := time.Date(2025, 6, 11, 15, 30, 0, 0, rome).Format(time.RFC3339)
	if res.When != want {
		t.Fatalf("When = %q, want %q", res.When, want)
	}
}

func TestRuleExtractorStaysQuietWithoutDatetime(t *testing.T) {
	r := NewRuleExtractor(rome)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, rome)

	res, err := r.Extract(context.Background(), "ciao, come stai?", now)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.HasAction() || res.HasWhen() {
		t.Fatalf("Extract() = %+v, want no detection", res)
	}
}

func TestChainFallsThroughToNextStrategy(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, rome)
	quiet := Func(func(context.Context, string, time.Time) (Result, error) {
		return Result{}, nil
	})
	positive := Func(func(context.Context, string, time.Time) (Result, error) {
		return Result{Action: "cena", When: "2025-06-11T20:00:00+02:00"}, nil
	})

	res, err := Chain{quiet, positive}.Extract(context.Background(), "cena da Marco", now)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Action != "cena" {
		t.Fatalf("Action = %q, want chained fallback answer", res.Action)
	}
}

func TestChainSurfacesErrorOnlyWhenNoAnswer(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, rome)
	failing := Func(func(context.Context, string, time.Time) (Result, error) {
		return Result{}, ErrUnparseable
	})
	positive := Func(func(context.Context, string, time.Time) (Result, error) {
		return Result{Action: "cena"}, nil
	})

	if res, err := (Chain{failing, positive}).Extract(context.Background(), "x", now); err != nil || res.Action != "cena" {
		t.Fatalf("Extract() = (%+v, %v), want later strategy to win", res, err)
	}
	if _, err := (Chain{failing}).Extract(context.Background(), "x", now); err == nil {
		t.Fatalf("Extract() error = nil, want the strategy error")
	}
}
