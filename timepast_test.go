package rotor

import (
	"errors"
	"testing"
	"time"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.May, day, hour, minute, 0, 0, time.UTC)
}

func span(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

func TestTimePastDaily(t *testing.T) {
	p := NewTimePast(Daily)

	steps := []struct {
		now  time.Time
		want bool
	}{
		{at(1, 23, 0), false}, // no start yet
		{at(1, 23, 59), false},
		{at(2, 0, 0), true},
		{at(2, 0, 1), false}, // boundary already reported
	}
	for i, s := range steps {
		if got := p.Poll(s.now); got != s.want {
			t.Errorf("step %d: Poll(%v) = %v, want %v", i, s.now, got, s.want)
		}
	}
}

func TestTimePastSkippedBoundaries(t *testing.T) {
	p := NewTimePast(Daily)
	p.Poll(at(1, 12, 0))

	// Several midnights crossed between polls still report once.
	if !p.Poll(at(5, 12, 0)) {
		t.Error("crossing after a gap not reported")
	}
	if p.Poll(at(5, 13, 0)) {
		t.Error("gap reported twice")
	}
}

func TestTimePastStoresEveryObservation(t *testing.T) {
	var calls []Interval
	p := NewTimePast(TimeContainsFunc(func(i Interval) bool {
		calls = append(calls, i)
		return false
	}))

	p.Poll(at(1, 0, 0))
	p.Poll(at(1, 1, 0))

	if len(calls) != 2 {
		t.Fatalf("predicate called %d times, want 2", len(calls))
	}
	if !calls[0].Start.IsZero() {
		t.Errorf("first start = %v, want zero", calls[0].Start)
	}
	if !calls[1].Start.Equal(at(1, 0, 0)) || !calls[1].End.Equal(at(1, 1, 0)) {
		t.Errorf("second interval = %v", calls[1])
	}
}

func TestDailyUsesEndLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	start := time.Date(2024, time.May, 1, 14, 0, 0, 0, time.UTC) // 23:00 JST
	end := time.Date(2024, time.May, 1, 16, 0, 0, 0, time.UTC)   // 01:00 JST next day

	if Daily.Matches(span(start, end)) {
		t.Error("same UTC date reported as a crossing")
	}
	if !Daily.Matches(span(start, end.In(tokyo))) {
		t.Error("JST date change not reported")
	}
}

func TestHourly(t *testing.T) {
	cases := []struct {
		name string
		in   Interval
		want bool
	}{
		{"no start", Interval{End: at(1, 1, 0)}, false},
		{"same hour", span(at(1, 1, 0), at(1, 1, 59)), false},
		{"next hour", span(at(1, 1, 59), at(1, 2, 0)), true},
		{"same hour next day", span(at(1, 1, 0), at(2, 1, 0)), true},
	}
	for _, tc := range cases {
		if got := Hourly.Matches(tc.in); got != tc.want {
			t.Errorf("%s: Hourly = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// TestHourlyRepeatedHour covers the hour that occurs twice when daylight
// saving ends: 01:xx EDT is followed by 01:xx EST.
func TestHourlyRepeatedHour(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	// 2024-11-03 05:50 UTC is 01:50 EDT, 06:10 UTC is 01:10 EST.
	before := time.Date(2024, time.November, 3, 5, 50, 0, 0, time.UTC).In(ny)
	after := time.Date(2024, time.November, 3, 6, 10, 0, 0, time.UTC).In(ny)
	if before.Hour() != 1 || after.Hour() != 1 {
		t.Fatalf("setup: hours %d and %d, want 1 and 1", before.Hour(), after.Hour())
	}

	if !Hourly.Matches(span(before, after)) {
		t.Error("fall-back hour boundary not reported")
	}

	// A full hour later the wall clock reads the same, but an hour passed.
	sameWall := before.Add(time.Hour)
	if !Hourly.Matches(span(before, sameWall)) {
		t.Errorf("%v -> %v not reported", before, sameWall)
	}
}

func TestEvery(t *testing.T) {
	quarter := Every(15 * time.Minute)
	if quarter.Matches(span(at(1, 0, 1), at(1, 0, 14))) {
		t.Error("within one window reported")
	}
	if !quarter.Matches(span(at(1, 0, 14), at(1, 0, 15))) {
		t.Error("window change not reported")
	}
	if Every(0).Matches(span(at(1, 0, 0), at(9, 0, 0))) {
		t.Error("Every(0) matched")
	}
}

func TestSchedule(t *testing.T) {
	nightly, err := Schedule("30 2 * * *")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	cases := []struct {
		in   Interval
		want bool
	}{
		{Interval{End: at(1, 3, 0)}, false},
		{span(at(1, 2, 0), at(1, 2, 29)), false},
		{span(at(1, 2, 29), at(1, 2, 30)), true},
		{span(at(1, 2, 30), at(1, 3, 0)), false},
	}
	for _, tc := range cases {
		if got := nightly.Matches(tc.in); got != tc.want {
			t.Errorf("Matches(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := Schedule("not a cron line"); !errors.Is(err, ErrInvalidTrigger) {
		t.Errorf("bad expression error = %v, want ErrInvalidTrigger", err)
	}
}

func TestParseTrigger(t *testing.T) {
	for _, s := range []string{"", "none", "  "} {
		tc, err := ParseTrigger(s)
		if err != nil || tc != nil {
			t.Errorf("ParseTrigger(%q) = %v, %v; want nil, nil", s, tc, err)
		}
	}

	cases := []struct {
		in       string
		crossing Interval
	}{
		{"daily", span(at(1, 23, 0), at(2, 0, 0))},
		{"hourly", span(at(1, 1, 0), at(1, 2, 0))},
		{"every 10m", span(at(1, 0, 9), at(1, 0, 10))},
		{"0 * * * *", span(at(1, 4, 59), at(1, 5, 0))},
	}
	for _, tc := range cases {
		trigger, err := ParseTrigger(tc.in)
		if err != nil {
			t.Errorf("ParseTrigger(%q): %v", tc.in, err)
			continue
		}
		if !trigger.Matches(tc.crossing) {
			t.Errorf("%q did not match %v", tc.in, tc.crossing)
		}
	}

	for _, bad := range []string{"every soon", "every -1m", "every 0s", "sometimes"} {
		if _, err := ParseTrigger(bad); !errors.Is(err, ErrInvalidTrigger) {
			t.Errorf("ParseTrigger(%q) error = %v, want ErrInvalidTrigger", bad, err)
		}
	}
}
