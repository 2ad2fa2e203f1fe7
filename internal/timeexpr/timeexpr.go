// Package timeexpr parses and evaluates the time expressions accepted by plan
// definitions and resolves them to absolute instants.
//
// The grammar covers three base forms, each optionally followed by a signed
// duration offset:
//
//	"HH:MM"              clock time on the reference instant's local date
//	"@now + 90 min"      relative to the reference instant
//	"@sunset - 30 min"   symbolic anchor looked up in a variable namespace
//
// Duration offsets accept the unit suffixes s, m/min, h and d in arbitrary
// combinations ("1h30m", "1d 2h"). Anchors are plain lookups; the resolver
// never computes astronomical values itself and never resolves an anchor
// found inside another anchor's value.
package timeexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Vars supplies values for symbolic anchors. Implementations report whether
// the name is present; values must be RFC3339 timestamps.
type Vars interface {
	Anchor(name string) (string, bool)
}

// VarsFunc adapts a plain function to the Vars interface.
type VarsFunc func(name string) (string, bool)

// Anchor calls f.
func (f VarsFunc) Anchor(name string) (string, bool) { return f(name) }

// MapVars is a Vars backed by an in-memory map, convenient for callers that
// already hold a resolved namespace snapshot.
type MapVars map[string]string

// Anchor looks name up in the map.
func (m MapVars) Anchor(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

const hoursPerDay = 24

var (
	// anchorPattern matches a leading "@name" token.
	anchorPattern = regexp.MustCompile(`^@(\w+)`)

	// clockPattern matches a leading "H:MM" or "HH:MM" token.
	clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)

	// durationToken matches one duration component. "min" must precede "m"
	// so that "30min" is not consumed as "30m" + trailing garbage.
	durationToken = regexp.MustCompile(`^(\d+)(d|h|min|m|s)`)
)

// Resolve evaluates expr against the reference instant now.
//
// The local date and timezone for clock-time literals come from
// now.Location(). vars may be nil when the expression contains no symbolic
// anchor; "@now" never consults vars.
//
// Returns:
//   - time.Time: The resolved absolute instant
//   - error: ErrExpression (wrapped) for syntax errors, unresolved anchors,
//     or anchor values that are not timestamps
func Resolve(expr string, now time.Time, vars Vars) (time.Time, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty expression", ErrExpression)
	}

	base, rest, err := resolveBase(s, now, vars)
	if err != nil {
		return time.Time{}, err
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return base, nil
	}

	offset, err := parseOffset(rest)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad offset in %q: %v", ErrExpression, expr, err)
	}
	return base.Add(offset), nil
}

// resolveBase consumes the leading anchor or clock literal and returns the
// base instant plus the unconsumed remainder of the expression.
func resolveBase(s string, now time.Time, vars Vars) (time.Time, string, error) {
	if m := anchorPattern.FindStringSubmatch(s); m != nil {
		name := m[1]
		rest := s[len(m[0]):]

		if name == "now" {
			return now, rest, nil
		}

		if vars == nil {
			return time.Time{}, "", fmt.Errorf("%w: anchor %q used without variables", ErrExpression, name)
		}
		raw, ok := vars.Anchor(name)
		if !ok {
			return time.Time{}, "", fmt.Errorf("%w: anchor %q not found", ErrExpression, name)
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("%w: anchor %q holds %q, not a timestamp", ErrExpression, name, raw)
		}
		return t.In(now.Location()), rest, nil
	}

	if m := clockPattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return time.Time{}, "", fmt.Errorf("%w: clock time %q out of range", ErrExpression, m[0])
		}
		base := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		return base, s[len(m[0]):], nil
	}

	return time.Time{}, "", fmt.Errorf("%w: unrecognised form %q", ErrExpression, s)
}

// parseOffset parses a signed duration expression such as "+1h30m" or
// "- 30 min". The sign is mandatory; whitespace between components is not.
func parseOffset(s string) (time.Duration, error) {
	sign := s[0]
	if sign != '+' && sign != '-' {
		return 0, fmt.Errorf("expected '+' or '-', got %q", string(sign))
	}

	body := strings.ToLower(strings.Join(strings.Fields(s[1:]), ""))
	if body == "" {
		return 0, fmt.Errorf("missing duration after %q", string(sign))
	}

	var total time.Duration
	for body != "" {
		m := durationToken.FindStringSubmatch(body)
		if m == nil {
			return 0, fmt.Errorf("unrecognised duration component %q", body)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("duration component %q: %w", m[0], err)
		}
		switch m[2] {
		case "d":
			total += time.Duration(n) * hoursPerDay * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "min", "m":
			total += time.Duration(n) * time.Minute
		case "s":
			total += time.Duration(n) * time.Second
		}
		body = body[len(m[0]):]
	}

	if sign == '-' {
		total = -total
	}
	return total, nil
}
