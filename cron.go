// Edge-triggered calendar matching.
//
// A SlotMatcher holds one cell per field. Each cell has an allow-set and
// the last value observed for that field. A poll reports a match only when
// every value is allowed and the tuple of values differs from the tuple
// seen on the previous poll, so polling many times within one qualifying
// minute fires once. One unconstrained cell is always appended (the year
// for Cron) so a rule fires again after a full wrap of the constrained
// fields.
package rotor

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// AllowedSet is a non-empty sorted set of permitted values.
type AllowedSet[T cmp.Ordered] struct {
	values []T
}

// NewAllowedSet sorts and deduplicates values. It reports false, and
// creates no rule, when values is empty.
func NewAllowedSet[T cmp.Ordered](values ...T) (*AllowedSet[T], bool) {
	if len(values) == 0 {
		return nil, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return &AllowedSet[T]{values: slices.Compact(sorted)}, true
}

// Contains reports membership by binary search.
func (s *AllowedSet[T]) Contains(v T) bool {
	_, ok := slices.BinarySearch(s.values, v)
	return ok
}

// Next returns the member that follows v, wrapping to the first member
// when v is the last one. For a v that is not a member the first member
// is returned.
func (s *AllowedSet[T]) Next(v T) T {
	i, ok := slices.BinarySearch(s.values, v)
	if !ok || i+1 == len(s.values) {
		return s.values[0]
	}
	return s.values[i+1]
}

// Values returns a copy of the members in ascending order.
func (s *AllowedSet[T]) Values() []T {
	return slices.Clone(s.values)
}

// Allow is the rule for one field: either any value, or an explicit set.
// The zero Allow permits any value.
type Allow[T cmp.Ordered] struct {
	set *AllowedSet[T] // nil means unconstrained
}

// Any permits every value.
func Any[T cmp.Ordered]() Allow[T] {
	return Allow[T]{}
}

// Only permits the members of set.
func Only[T cmp.Ordered](set *AllowedSet[T]) Allow[T] {
	return Allow[T]{set: set}
}

// AllowFrom builds an explicit rule from values, substituting Any when
// values is empty.
func AllowFrom[T cmp.Ordered](values ...T) Allow[T] {
	set, ok := NewAllowedSet(values...)
	if !ok {
		return Any[T]()
	}
	return Only(set)
}

// Permits reports whether v satisfies the rule.
func (a Allow[T]) Permits(v T) bool {
	return a.set == nil || a.set.Contains(v)
}

// Unconstrained reports whether the rule permits every value.
func (a Allow[T]) Unconstrained() bool {
	return a.set == nil
}

// Set returns the explicit set, or nil for an unconstrained rule.
func (a Allow[T]) Set() *AllowedSet[T] {
	return a.set
}

type cell[T cmp.Ordered] struct {
	allow Allow[T]
	prev  T
	seen  bool
}

// SlotMatcher matches value tuples against per-field rules. It is not
// safe for concurrent use.
type SlotMatcher[T cmp.Ordered] struct {
	cells []cell[T]
}

// NewSlotMatcher builds a matcher for len(rules)+1 fields; the extra
// trailing field is unconstrained.
func NewSlotMatcher[T cmp.Ordered](rules ...Allow[T]) *SlotMatcher[T] {
	cells := make([]cell[T], 0, len(rules)+1)
	for _, r := range rules {
		cells = append(cells, cell[T]{allow: r})
	}
	cells = append(cells, cell[T]{allow: Any[T]()})
	return &SlotMatcher[T]{cells: cells}
}

// Fields returns the number of values a poll expects.
func (m *SlotMatcher[T]) Fields() int {
	return len(m.cells)
}

// Poll is EdgeTriggeredPoll with an arity check.
func (m *SlotMatcher[T]) Poll(values ...T) (bool, error) {
	if len(values) != len(m.cells) {
		return false, fmt.Errorf("%w: got %d, want %d", ErrArity, len(values), len(m.cells))
	}
	return m.EdgeTriggeredPoll(values...), nil
}

// EdgeTriggeredPoll stores values as the latest observation and reports
// whether they are all allowed and differ from the previous observation.
// State is updated even when the values are not allowed. It panics if
// len(values) != Fields().
func (m *SlotMatcher[T]) EdgeTriggeredPoll(values ...T) bool {
	if len(values) != len(m.cells) {
		panic(fmt.Sprintf("rotor: slot matcher polled with %d values, want %d", len(values), len(m.cells)))
	}

	allowed, repeat := true, true
	for i := range m.cells {
		c := &m.cells[i]
		v := values[i]
		if !c.allow.Permits(v) {
			allowed = false
		}
		if !c.seen || c.prev != v {
			repeat = false
		}
		c.prev, c.seen = v, true
	}
	return allowed && !repeat
}

// Cron is a five-field calendar rule: minute, hour, day of month, month
// and day of week (0 = Sunday). The year is tracked implicitly.
type Cron struct {
	matcher *SlotMatcher[int]
}

// NewCron builds a rule from per-field allow rules.
func NewCron(minute, hour, dayOfMonth, month, dayOfWeek Allow[int]) *Cron {
	return &Cron{matcher: NewSlotMatcher(minute, hour, dayOfMonth, month, dayOfWeek)}
}

// EdgeTriggeredPoll reports whether now matches the rule and its minute
// has not already been reported. Fields are read in now's location.
func (c *Cron) EdgeTriggeredPoll(now time.Time) bool {
	return c.matcher.EdgeTriggeredPoll(
		now.Minute(),
		now.Hour(),
		now.Day(),
		int(now.Month()),
		int(now.Weekday()),
		now.Year(),
	)
}
