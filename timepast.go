// Time-boundary triggers.
//
// A TimeContains predicate answers one question about an interval
// (start, end]: does it cross a scheduling boundary? TimePast turns a
// sequence of "now" observations into such intervals. Detection compares
// the two endpoints, so sparse polling that skips several boundaries
// reports a single crossing rather than counting them.
package rotor

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// Interval is the span between two polls. Start is exclusive and is the
// zero time when no earlier poll exists; End is inclusive.
type Interval struct {
	Start time.Time
	End   time.Time
}

// TimeContains decides whether an interval crosses a boundary. It must
// return false when Start is zero and the boundary depends on it.
type TimeContains interface {
	Matches(Interval) bool
}

// TimeContainsFunc adapts a plain function to TimeContains.
type TimeContainsFunc func(Interval) bool

// Matches implements TimeContains.
func (f TimeContainsFunc) Matches(i Interval) bool { return f(i) }

// TimePast remembers the previous poll and feeds (previous, now] to a
// TimeContains. It is not safe for concurrent use.
type TimePast struct {
	prev     time.Time
	contains TimeContains
}

// NewTimePast wraps contains. The first Poll sees an unknown start.
func NewTimePast(contains TimeContains) *TimePast {
	return &TimePast{contains: contains}
}

// Poll records now as the latest observation, whatever the verdict, and
// reports whether (previous, now] crosses a boundary.
func (p *TimePast) Poll(now time.Time) bool {
	interval := Interval{Start: p.prev, End: now}
	p.prev = now
	return p.contains.Matches(interval)
}

// Daily matches when the calendar date changes between Start and End,
// both read in End's location.
var Daily TimeContains = TimeContainsFunc(func(i Interval) bool {
	if i.Start.IsZero() {
		return false
	}
	sy, sm, sd := i.Start.In(i.End.Location()).Date()
	ey, em, ed := i.End.Date()
	return sy != ey || sm != em || sd != ed
})

// Hourly matches when an hour boundary lies between Start and End, read
// in End's location. A zone offset change counts as a boundary, so the
// hour repeated when clocks go back is reported too.
var Hourly TimeContains = TimeContainsFunc(func(i Interval) bool {
	if i.Start.IsZero() {
		return false
	}
	if i.End.Sub(i.Start) >= time.Hour || Daily.Matches(i) {
		return true
	}
	start := i.Start.In(i.End.Location())
	_, so := start.Zone()
	_, eo := i.End.Zone()
	return so != eo || start.Hour() != i.End.Hour()
})

// Every matches when Start and End fall in different d-sized windows
// counted from the zero time. Non-positive d never matches.
func Every(d time.Duration) TimeContains {
	return TimeContainsFunc(func(i Interval) bool {
		if d <= 0 || i.Start.IsZero() {
			return false
		}
		return !i.Start.Truncate(d).Equal(i.End.Truncate(d))
	})
}

// Schedule matches when a cron expression has an instant in (Start, End].
// Instants are evaluated in Start's location.
func Schedule(expr string) (TimeContains, error) {
	exp, err := cronexpr.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidTrigger, expr, err)
	}
	return TimeContainsFunc(func(i Interval) bool {
		if i.Start.IsZero() {
			return false
		}
		next := exp.Next(i.Start)
		return !next.IsZero() && !next.After(i.End)
	}), nil
}

// ParseTrigger converts a human readable trigger to a TimeContains.
//
// Supported forms:
//   - "" or "none": no time trigger (nil, nil)
//   - "hourly", "daily"
//   - "every <duration>", e.g. "every 15m"
//   - anything else is parsed as a cron expression, e.g. "0 0 * * *"
func ParseTrigger(s string) (TimeContains, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "none":
		return nil, nil
	case "hourly":
		return Hourly, nil
	case "daily":
		return Daily, nil
	}
	if rest, ok := strings.CutPrefix(s, "every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("%w: bad duration %q: %w", ErrInvalidTrigger, rest, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: duration %q must be positive", ErrInvalidTrigger, rest)
		}
		return Every(d), nil
	}
	return Schedule(s)
}
