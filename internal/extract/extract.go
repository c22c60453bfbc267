// Package extract turns free text into a structured action/datetime pair.
// Strategies share one interface so the router never cares whether the
// answer came from a cheap rule pass or a model call.
package extract

import (
	"context"
	"errors"
	"time"
)

var ErrUnparseable = errors.New("extraction output cannot be parsed")

// Result is the outcome of one extraction. Empty fields mean "not
// detected": no Action means plain chat, an Action without a When means
// the user must be asked to restate the date.
type Result struct {
	Action string
	When   string
}

func (r Result) HasAction() bool { return r.Action != "" }
func (r Result) HasWhen() bool   { return r.When != "" }

// Extractor detects a planned future action in a message. now anchors
// relative expressions ("domani") to the service clock.
type Extractor interface {
	Extract(ctx context.Context, text string, now time.Time) (Result, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, text string, now time.Time) (Result, error)

func (f Func) Extract(ctx context.Context, text string, now time.Time) (Result, error) {
	return f(ctx, text, now)
}

// Chain tries strategies in order and returns the first positive result
// (one that detected an action). A strategy error stops the chain only
// when no later strategy produces an answer.
type Chain []Extractor

func (c Chain) Extract(ctx context.Context, text string, now time.Time) (Result, error) {
	var lastErr error
	for _, e := range c {
		res, err := e.Extract(ctx, text, now)
		if err != nil {
			lastErr = err
			continue
		}
		if res.HasAction() {
			return res, nil
		}
	}
	return Result{}, lastErr
}
