package rotor

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRotation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	dir := filepath.Join(t.TempDir(), "app")
	r := openRotator(t, dir, RotationPolicy{MaxRecords: 2, MaxEpochs: 2}, WithMetrics(m))

	for _, s := range []string{"a", "b", "c", "d"} {
		writeRecord(t, r, s)
	}
	if err := r.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	cases := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"records", m.Records.WithLabelValues("app"), 4},
		{"rotations by records", m.Rotations.WithLabelValues("app", TriggerRecords), 2},
		{"rotations by hand", m.Rotations.WithLabelValues("app", TriggerManual), 1},
		{"pruned", m.Pruned.WithLabelValues("app"), 2},
		{"epoch", m.Epoch.WithLabelValues("app"), 3},
	}
	for _, tc := range cases {
		if got := testutil.ToFloat64(tc.c); got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMetricsFlushErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	boom := errors.New("boom")

	r, err := NewLogRotator[*memWriter](filepath.Join(t.TempDir(), "bad"), RotationPolicy{MaxEpochs: 2},
		memFormat{failOn: "bad", err: boom}, WithMetrics(m))
	if err != nil {
		t.Fatalf("NewLogRotator: %v", err)
	}
	defer r.Close()

	if err := r.Flush(); !errors.Is(err, boom) {
		t.Errorf("Flush error = %v, want boom", err)
	}
	if got := testutil.ToFloat64(m.FlushErrors.WithLabelValues("bad")); got != 1 {
		t.Errorf("flush errors = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.record("x")
	m.rotated("x", TriggerTime)
	m.pruned("x")
	m.flushFailed("x")
	m.epoch("x", 1)
}

func TestMetricsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice did not panic")
		}
	}()
	NewMetrics(reg)
}
