// Package question parses prediction-market question text into the
// structured pieces the estimator needs: a weather event type, the
// city the question is about, the target date window, and any
// temperature threshold rule.
package question

import "strings"

// EventType is the kind of weather event a market resolves on.
type EventType string

const (
	EventRain        EventType = "RAIN"
	EventSnow        EventType = "SNOW"
	EventTemperature EventType = "TEMPERATURE"
	EventWind        EventType = "WIND"
	EventUnknown     EventType = "UNKNOWN"
)

// keywordTable maps an event type to the substrings that select it.
// Matching is case-insensitive substring containment, same as the
// market-side weather filter.
type keywordTable struct {
	event    EventType
	keywords []string
}

var defaultTables = []keywordTable{
	{EventRain, []string{"rain", "precip", "storm", "thunder", "shower"}},
	{EventSnow, []string{"snow", "blizzard", "sleet", "flurr"}},
	{EventWind, []string{"wind", "gust"}},
	{EventTemperature, []string{"temperature", "temp ", "degrees", "freezing", "high of", "hot", "cold"}},
}

// Classification is the parsed view of one market question.
type Classification struct {
	Event    EventType
	Matched  []EventType // every event type whose table matched
	TempRule *TempRule
}

// Ambiguous reports whether more than one event table matched.
func (c Classification) Ambiguous() bool {
	return len(c.Matched) > 1
}

// Classify picks the event type for a question. A parsed temperature
// rule wins only when no precipitation table matched; snow beats rain
// so that "snow storm" questions use the snow model. Questions with no
// matching table come back EventUnknown and are skipped upstream.
func Classify(q string) Classification {
	lower := strings.ToLower(q)

	var matched []EventType
	has := map[EventType]bool{}
	for _, tbl := range defaultTables {
		for _, kw := range tbl.keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, tbl.event)
				has[tbl.event] = true
				break
			}
		}
	}

	rule := ExtractTempRule(q)
	if rule != nil && !has[EventTemperature] {
		matched = append(matched, EventTemperature)
		has[EventTemperature] = true
	}

	out := Classification{Matched: matched, TempRule: rule}
	switch {
	case rule != nil && !has[EventRain] && !has[EventSnow]:
		out.Event = EventTemperature
	case has[EventSnow]:
		out.Event = EventSnow
	case has[EventRain]:
		out.Event = EventRain
	case has[EventWind]:
		out.Event = EventWind
	case has[EventTemperature]:
		out.Event = EventTemperature
	default:
		out.Event = EventUnknown
	}
	return out
}
