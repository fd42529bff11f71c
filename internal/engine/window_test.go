package engine

import (
	"testing"
	"time"
)

func TestWindowBoundariesInclusive(t *testing.T) {
	w := DefaultWindow()
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exactly 30m before", start.Add(-30 * time.Minute), true},
		{"exactly 20m after", start.Add(20 * time.Minute), true},
		{"one second too early", start.Add(-30*time.Minute - time.Second), false},
		{"one second too late", start.Add(20*time.Minute + time.Second), false},
		{"at class start", start, true},
		{"mid window", start.Add(5 * time.Minute), true},
	}
	for _, tc := range cases {
		if got := w.Contains(tc.now, start); got != tc.want {
			t.Errorf("%s: Contains=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWindowAsymmetric(t *testing.T) {
	w := Window{Early: 10 * time.Minute, Late: 5 * time.Minute}
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !w.Contains(start.Add(-10*time.Minute), start) {
		t.Fatalf("expected early edge inside")
	}
	if w.Contains(start.Add(-11*time.Minute), start) {
		t.Fatalf("expected beyond early edge outside")
	}
	if !w.Contains(start.Add(5*time.Minute), start) {
		t.Fatalf("expected late edge inside")
	}
	if w.Contains(start.Add(6*time.Minute), start) {
		t.Fatalf("expected beyond late edge outside")
	}
}
