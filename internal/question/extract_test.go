package question

import (
	"testing"
	"time"
)

func mustContain(t *testing.T, cities []string, want string) {
	t.Helper()
	for _, c := range cities {
		if c == want {
			return
		}
	}
	t.Fatalf("city candidates %v missing %q", cities, want)
}

func TestCityCandidates(t *testing.T) {
	mustContain(t, CityCandidates("Will it rain in Seattle tomorrow?"), "Seattle")
	mustContain(t, CityCandidates("Will Phoenix hit 110 degrees?"), "Phoenix")
	mustContain(t, CityCandidates("Snow in Buffalo, NY on Friday?"), "Buffalo, NY")
	mustContain(t, CityCandidates("New York weather: rain this weekend?"), "New York")
}

func TestCityCandidates_SkipsStopTokens(t *testing.T) {
	for _, c := range CityCandidates("Will the temperature in rain be high?") {
		if c == "rain" || c == "temperature" {
			t.Fatalf("stop token leaked into candidates: %q", c)
		}
	}
}

func TestTargetDates_ISO(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := TargetDates("Will it rain in Paris on 2026-03-15?", now)
	if len(got) != 1 || !got[0].Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
}

func TestTargetDates_NaturalRollsForward(t *testing.T) {
	// "Jan 5" with no year, asked in March, means next January.
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := TargetDates("Will it snow in Oslo on Jan 5?", now)
	if len(got) != 1 || got[0].Year() != 2027 {
		t.Fatalf("got %v, want Jan 5 2027", got)
	}
}

func TestTargetDates_Relative(t *testing.T) {
	// 2026-03-10 is a Tuesday.
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	got := TargetDates("rain today in Lima?", now)
	if len(got) != 1 || got[0].Day() != 10 {
		t.Fatalf("today: got %v", got)
	}

	got = TargetDates("rain tomorrow in Lima?", now)
	if len(got) != 1 || got[0].Day() != 11 {
		t.Fatalf("tomorrow: got %v", got)
	}

	got = TargetDates("rain this weekend in Lima?", now)
	if len(got) != 2 || got[0].Weekday() != time.Saturday || got[1].Weekday() != time.Sunday {
		t.Fatalf("weekend: got %v", got)
	}

	got = TargetDates("rain on Friday in Lima?", now)
	if len(got) != 1 || got[0].Weekday() != time.Friday || got[0].Before(now.Truncate(24*time.Hour)) {
		t.Fatalf("friday: got %v", got)
	}
}

func TestTargetDates_NoneMeansRollingWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := TargetDates("Will it rain in London?", now); got != nil {
		t.Fatalf("want nil for undated question, got %v", got)
	}
}

func TestExtractTempRule(t *testing.T) {
	cases := []struct {
		q     string
		op    string
		wantC float64
	}{
		{"Will Phoenix be >= 110F?", ">=", (110 - 32) * 5.0 / 9.0},
		// magnitude 20 with no unit reads as Celsius
		{"Will it stay below 20 degrees in Boston?", "<=", 20},
		{"Will Berlin go above 30 celsius?", ">=", 30},
		// magnitude 100 with no unit reads as Fahrenheit
		{"Will Dallas hit 100?", ">=", (100 - 32) * 5.0 / 9.0},
		{"Will it be below freezing in Denver?", "<=", 0},
	}

	for _, c := range cases {
		rule := ExtractTempRule(c.q)
		if rule == nil {
			t.Fatalf("ExtractTempRule(%q) = nil", c.q)
		}
		if rule.Op != c.op {
			t.Fatalf("ExtractTempRule(%q).Op = %s, want %s", c.q, rule.Op, c.op)
		}
		if diff := rule.ThresholdC - c.wantC; diff > 0.01 || diff < -0.01 {
			t.Fatalf("ExtractTempRule(%q).ThresholdC = %v, want %v", c.q, rule.ThresholdC, c.wantC)
		}
	}

	if rule := ExtractTempRule("Will it rain in Madrid?"); rule != nil {
		t.Fatalf("want nil rule, got %+v", rule)
	}
}
