package question

import "testing"

func TestClassify_EventTypes(t *testing.T) {
	cases := []struct {
		q    string
		want EventType
	}{
		{"Will it rain in Seattle tomorrow?", EventRain},
		{"Will NYC see snow on Friday?", EventSnow},
		{"Will Chicago wind gusts exceed 50 mph on Monday?", EventWind},
		{"Will the temperature in Phoenix reach 110F on July 4?", EventTemperature},
		{"Will Miami hit 95 degrees this weekend?", EventTemperature},
		{"Will the Lakers win the championship?", EventUnknown},
	}
	for _, c := range cases {
		got := Classify(c.q)
		if got.Event != c.want {
			t.Fatalf("Classify(%q) = %s, want %s", c.q, got.Event, c.want)
		}
	}
}

func TestClassify_SnowBeatsRain(t *testing.T) {
	got := Classify("Will the snow storm bring rain or snow to Denver?")
	if got.Event != EventSnow {
		t.Fatalf("want SNOW, got %s", got.Event)
	}
	if !got.Ambiguous() {
		t.Fatalf("expected ambiguous classification, matched=%v", got.Matched)
	}
}

func TestClassify_TempRuleWithPrecipGoesPrecip(t *testing.T) {
	// A question mixing a threshold with rain wording uses the precip
	// model, matching the resolution source for such markets.
	got := Classify("Will it rain in Boston if temps stay above 40F?")
	if got.Event != EventRain {
		t.Fatalf("want RAIN, got %s", got.Event)
	}
	if got.TempRule == nil {
		t.Fatalf("temp rule should still be extracted")
	}
}

func TestClassify_UnknownHasNoMatches(t *testing.T) {
	got := Classify("Who will win the election?")
	if got.Event != EventUnknown || len(got.Matched) != 0 {
		t.Fatalf("want no matches, got %+v", got)
	}
}
