package question

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateISORe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	dateMDYRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	dateNatRe = regexp.MustCompile(`(?i)\b(?:on\s+)?(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+(\d{1,2})(?:,\s*(\d{4}))?\b`)
	weekdayRe = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|weekend|today|tomorrow)\b`)

	cityPrepRe  = regexp.MustCompile(`(?i)\b(?:in|at|for)\s+([A-Za-z][A-Za-z\.\-'\s]{1,60}?)(?:\s+(?:on|by|before|after|through|during|if|when|will|with|above|below|over|under|this|next|tomorrow|today)\b|[?.!,]|$)`)
	cityVerbRe  = regexp.MustCompile(`(?i)\bwill\s+([A-Za-z][A-Za-z\.\-'\s]{1,50}?)\s+(?:hit|reach|get|see|have)\b`)
	cityStateRe = regexp.MustCompile(`\b([A-Za-z][A-Za-z\.\-']+(?:\s+[A-Za-z][A-Za-z\.\-']+){0,3}),\s*([A-Z]{2})\b`)
	cityNounRe  = regexp.MustCompile(`\b([A-Z][A-Za-z\.\-']+(?:\s+[A-Z][A-Za-z\.\-']+){0,3})\s+(?:weather|rain|snow|temperature|temp)\b`)

	tempSymbolRe = regexp.MustCompile(`(?i)(>=|<=|>|<)\s*(-?\d{1,3})\s*°?\s*([fc])?`)
	tempWordRe   = regexp.MustCompile(`(?i)(above|over|at\s+least|greater\s+than|below|under|at\s+most|less\s+than)\s+(-?\d{1,3})\s*(?:°?\s*([fc])|degrees?)?`)
	tempReachRe  = regexp.MustCompile(`(?i)(?:hit|reach|get to|top|high of)\s+(-?\d{1,3})\s*(?:°?\s*([fc]))?`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

// stopTokens are bare weather nouns the city patterns sometimes catch.
var stopTokens = map[string]bool{
	"temperature": true, "temp": true, "rain": true, "snow": true,
	"weather": true, "degrees": true, "degree": true,
	"will": true, "be": true, "is": true, "it": true,
}

// CityCandidates extracts possible city names from a question, most
// specific pattern first, deduplicated case-insensitively.
func CityCandidates(q string) []string {
	var out []string
	for _, m := range cityStateRe.FindAllStringSubmatch(q, -1) {
		out = append(out, strings.TrimSpace(m[1])+", "+strings.TrimSpace(m[2]))
	}
	for _, re := range []*regexp.Regexp{cityPrepRe, cityVerbRe} {
		for _, m := range re.FindAllStringSubmatch(q, -1) {
			city := strings.Trim(m[1], " ,.?")
			if len(city) < 2 || stopTokens[strings.ToLower(city)] {
				continue
			}
			out = append(out, city)
		}
	}
	if m := cityNounRe.FindStringSubmatch(q); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}

	seen := map[string]bool{}
	deduped := out[:0]
	for _, city := range out {
		key := strings.ToLower(city)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, city)
	}
	return deduped
}

// TargetDates extracts explicit or relative resolution dates from a
// question. Returns nil when the question names no date, which means
// the caller should use the rolling lookahead window instead.
func TargetDates(q string, now time.Time) []time.Time {
	today := truncateToDay(now.UTC())

	if m := dateISORe.FindStringSubmatch(q); m != nil {
		if d, err := time.ParseInLocation("2006-01-02", m[1], time.UTC); err == nil {
			return []time.Time{d}
		}
	}

	if m := dateNatRe.FindStringSubmatch(q); m != nil {
		monthTok := strings.ToLower(m[1])
		if len(monthTok) > 3 {
			monthTok = monthTok[:3]
		}
		day, _ := strconv.Atoi(m[2])
		if month, ok := months[monthTok]; ok && day >= 1 && day <= 31 {
			year := today.Year()
			explicit := m[3] != ""
			if explicit {
				year, _ = strconv.Atoi(m[3])
			}
			d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if !explicit && d.Before(today) {
				d = d.AddDate(1, 0, 0)
			}
			if d.Month() == month { // reject overflowed days like Feb 30
				return []time.Time{d}
			}
		}
	}

	if m := dateMDYRe.FindStringSubmatch(q); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			year := today.Year()
			explicit := m[3] != ""
			if explicit {
				year, _ = strconv.Atoi(m[3])
				if year < 100 {
					year += 2000
				}
			}
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if !explicit && d.Before(today) {
				d = d.AddDate(1, 0, 0)
			}
			if d.Month() == time.Month(month) {
				return []time.Time{d}
			}
		}
	}

	if m := weekdayRe.FindStringSubmatch(q); m != nil {
		return relativeDates(strings.ToLower(m[1]), today)
	}
	return nil
}

func relativeDates(token string, today time.Time) []time.Time {
	switch token {
	case "today":
		return []time.Time{today}
	case "tomorrow":
		return []time.Time{today.AddDate(0, 0, 1)}
	case "weekend":
		delta := (int(time.Saturday) - int(today.Weekday()) + 7) % 7
		sat := today.AddDate(0, 0, delta)
		return []time.Time{sat, sat.AddDate(0, 0, 1)}
	}
	wd, ok := weekdays[token]
	if !ok {
		return nil
	}
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	return []time.Time{today.AddDate(0, 0, delta)}
}

// TempRule is a parsed temperature threshold: the market resolves YES
// when the observed temperature satisfies Op against ThresholdC.
type TempRule struct {
	Op         string  // ">=" or "<="
	ThresholdC float64 // always Celsius
}

// ExtractTempRule parses a temperature comparison out of a question.
// Thresholds are normalized to Celsius; when no unit appears, the
// question text and the magnitude decide (values above 55 read as °F).
func ExtractTempRule(q string) *TempRule {
	lower := strings.ToLower(q)
	if strings.Contains(lower, "below freezing") || strings.Contains(lower, "under freezing") {
		return &TempRule{Op: "<=", ThresholdC: 0}
	}
	if strings.Contains(lower, "above freezing") {
		return &TempRule{Op: ">=", ThresholdC: 0}
	}

	if m := tempSymbolRe.FindStringSubmatch(q); m != nil {
		raw, _ := strconv.ParseFloat(m[2], 64)
		value := normalizeTemp(raw, m[3], q)
		op := "<="
		if m[1] == ">" || m[1] == ">=" {
			op = ">="
		}
		return &TempRule{Op: op, ThresholdC: value}
	}

	if m := tempWordRe.FindStringSubmatch(q); m != nil {
		raw, _ := strconv.ParseFloat(m[2], 64)
		value := normalizeTemp(raw, m[3], q)
		phrase := strings.ToLower(m[1])
		op := "<="
		for _, tok := range []string{"above", "over", "at least", "greater than"} {
			if strings.Contains(phrase, tok) {
				op = ">="
				break
			}
		}
		return &TempRule{Op: op, ThresholdC: value}
	}

	if m := tempReachRe.FindStringSubmatch(q); m != nil {
		raw, _ := strconv.ParseFloat(m[1], 64)
		return &TempRule{Op: ">=", ThresholdC: normalizeTemp(raw, m[2], q)}
	}
	return nil
}

func normalizeTemp(value float64, unit, q string) float64 {
	u := strings.ToLower(unit)
	if u == "" {
		lower := strings.ToLower(q)
		switch {
		case strings.Contains(lower, "fahrenheit"):
			u = "f"
		case strings.Contains(lower, "celsius"), strings.Contains(lower, "centigrade"):
			u = "c"
		case value > 55 || value < -55:
			u = "f"
		default:
			u = "c"
		}
	}
	if u == "f" {
		return (value - 32.0) * 5.0 / 9.0
	}
	return value
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
