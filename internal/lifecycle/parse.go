package lifecycle

import (
	"errors"
	"strings"
	"time"
)

// whenLayouts are tried in order. The extraction model is asked for full
// ISO-8601 with offset, but in practice it also emits naive local forms,
// so those are resolved in the configured zone.
var whenLayouts = []struct {
	layout string
	naive  bool
}{
	{time.RFC3339, false},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02 15:04", true},
	{"2006-01-02", true},
}

// ParseWhen resolves an ISO-8601-like string to an absolute instant,
// interpreting zone-less strings in loc.
func ParseWhen(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty datetime")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, l := range whenLayouts {
		var (
			t   time.Time
			err error
		)
		if l.naive {
			t, err = time.ParseInLocation(l.layout, raw, loc)
		} else {
			t, err = time.Parse(l.layout, raw)
		}
		if err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, errors.New("unrecognized datetime format")
}
