package observ

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	clock := time.Unix(0, 0)
	tm.now = func() time.Time {
		clock = clock.Add(2 * time.Millisecond)
		return clock
	}
	if err := tm.Measure("extract", func() (string, error) { return "3 spans", nil }); err != nil {
		t.Fatalf("Measure: %v", err)
	}
	boom := errors.New("boom")
	if err := tm.Measure("schema", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("Measure error = %v", err)
	}

	r := tm.Report()
	if len(r.Phases) != 2 || r.TotalMS != 4 {
		t.Fatalf("report = %+v", r)
	}
	if r.Phases[0].Note != "3 spans" || r.Phases[1].Note != "failed" {
		t.Fatalf("notes = %+v", r.Phases)
	}
	s := tm.Summary()
	if !strings.Contains(s, "extract") || !strings.Contains(s, "total") {
		t.Fatalf("summary = %q", s)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	if err := tm.Measure("x", func() (string, error) { return "", nil }); err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Fatalf("nil timer reported %+v", r)
	}
}
