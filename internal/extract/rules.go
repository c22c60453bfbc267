package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:?\d{2})?)?`)
	relPattern = regexp.MustCompile(`(?i)\b(oggi|domani|dopodomani)\s+alle\s+(\d{1,2})(?::(\d{2}))?\b`)
)

// RuleExtractor is a cheap pre-filter that only answers when the message
// carries an explicit datetime: an ISO literal, or an "oggi/domani alle
// HH:MM" phrase. Everything else is left to the model fallback.
type RuleExtractor struct {
	loc *time.Location
}

func NewRuleExtractor(loc *time.Location) *RuleExtractor {
	if loc == nil {
		loc = time.UTC
	}
	return &RuleExtractor{loc: loc}
}

func (r *RuleExtractor) Extract(_ context.Context, text string, now time.Time) (Result, error) {
	if m := relPattern.FindStringSubmatch(text); m != nil {
		when, ok := r.resolveRelative(m, now)
		if !ok {
			return Result{}, nil
		}
		action := cleanAction(strings.Replace(text, m[0], "", 1))
		if action == "" {
			return Result{}, nil
		}
		return Result{Action: action, When: when.Format(time.RFC3339)}, nil
	}

	if idx := isoPattern.FindStringIndex(text); idx != nil {
		raw := strings.Replace(text[idx[0]:idx[1]], " ", "T", 1)
		action := cleanAction(text[:idx[0]] + " " + text[idx[1]:])
		if action == "" {
			return Result{}, nil
		}
		return Result{Action: action, When: raw}, nil
	}

	return Result{}, nil
}

func (r *RuleExtractor) resolveRelative(m []string, now time.Time) (time.Time, bool) {
	days := 0
	switch strings.ToLower(m[1]) {
	case "domani":
		days = 1
	case "dopodomani":
		days = 2
	}
	hour, err := strconv.Atoi(m[2])
	if err != nil || hour > 23 {
		return time.Time{}, false
	}
	minute := 0
	if m[3] != "" {
		minute, err = strconv.Atoi(m[3])
		if err != nil || minute > 59 {
			return time.Time{}, false
		}
	}
	local := now.In(r.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+days, hour, minute, 0, 0, r.loc), true
}

var actionFiller = map[string]bool{
	"il": true, "lo": true, "la": true, "le": true, "a": true, "al": true,
	"alle": true, "per": true, "di": true, "devo": true, "che": true,
}

func cleanAction(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && actionFiller[strings.ToLower(strings.Trim(words[0], ",.;:!?"))] {
		words = words[1:]
	}
	for len(words) > 0 && actionFiller[strings.ToLower(strings.Trim(words[len(words)-1], ",.;:!?"))] {
		words = words[:len(words)-1]
	}
	out := strings.Trim(strings.Join(words, " "), " ,.;:!?-")
	if len(out) < 3 {
		return ""
	}
	return out
}
