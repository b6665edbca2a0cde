// Package estimator turns a market question plus a forecast snapshot
// into a model probability and a confidence. It is pure: all inputs
// arrive as arguments and nothing is persisted.
package estimator

import (
	"fmt"
	"math"
	"time"

	"github.com/RondoWright/weather/internal/forecast"
	"github.com/RondoWright/weather/internal/market"
	"github.com/RondoWright/weather/internal/question"
)

// Estimate is the model's view of one market for one cycle.
type Estimate struct {
	MarketID    string
	Event       question.EventType
	Probability float64 // clamped to [0.01, 0.99]
	Confidence  float64 // [0, 1]
	Rationale   string
	GeneratedAt time.Time
}

// Estimator holds the static knobs of the probability model.
type Estimator struct {
	LookaheadHours   int
	WindThresholdKmh float64

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func New(lookaheadHours int) *Estimator {
	return &Estimator{
		LookaheadHours:   lookaheadHours,
		WindThresholdKmh: 50,
		Now:              time.Now,
	}
}

// Estimate returns the model probability for a market, or ok=false
// when the market is out of scope for this cycle: no weather keyword
// matched, or the forecast collaborator produced nothing.
func (e *Estimator) Estimate(m market.Snapshot, f *forecast.Snapshot) (Estimate, bool) {
	cls := question.Classify(m.Question)
	if cls.Event == question.EventUnknown {
		return Estimate{}, false
	}
	if f == nil || len(f.Times) == 0 {
		return Estimate{}, false
	}

	now := e.Now().UTC()
	dates := question.TargetDates(m.Question, now)

	var prob, boost float64
	var rationale string
	switch cls.Event {
	case question.EventTemperature:
		temps := pickWindow(f.Times, f.TempsC, dates, now, e.LookaheadHours)
		if cls.TempRule == nil {
			prob, boost = 0.5, 0.4
			rationale = fmt.Sprintf("%s: temperature market without parseable threshold", f.Location.Label())
		} else {
			prob = temperatureProbability(temps, *cls.TempRule)
			boost = 1.0
			rationale = fmt.Sprintf("%s: temp rule %s %.1fC, points=%d", f.Location.Label(), cls.TempRule.Op, cls.TempRule.ThresholdC, len(temps))
		}
		return e.finish(m, cls, f, prob, boost, len(temps), rationale, now), true

	case question.EventSnow:
		precip := pickWindow(f.Times, f.PrecipProb, dates, now, e.LookaheadHours)
		prob = precipProbability(precip)
		temps := pickWindow(f.Times, f.TempsC, dates, now, e.LookaheadHours)
		if len(temps) > 0 {
			prob *= clamp(freezingShare(temps)*1.3, 0.15, 1.0)
		}
		boost = 0.75
		rationale = fmt.Sprintf("%s: snow proxy, points=%d", f.Location.Label(), len(precip))
		return e.finish(m, cls, f, prob, boost, len(precip), rationale, now), true

	case question.EventWind:
		winds := pickWindow(f.Times, f.WindKmh, dates, now, e.LookaheadHours)
		prob = exceedanceFrequency(winds, e.WindThresholdKmh)
		boost = 0.75
		rationale = fmt.Sprintf("%s: wind >= %.0f km/h, points=%d", f.Location.Label(), e.WindThresholdKmh, len(winds))
		return e.finish(m, cls, f, prob, boost, len(winds), rationale, now), true

	default: // EventRain
		precip := pickWindow(f.Times, f.PrecipProb, dates, now, e.LookaheadHours)
		prob = precipProbability(precip)
		boost = 0.85
		rationale = fmt.Sprintf("%s: precip proxy, points=%d", f.Location.Label(), len(precip))
		return e.finish(m, cls, f, prob, boost, len(precip), rationale, now), true
	}
}

func (e *Estimator) finish(m market.Snapshot, cls question.Classification, f *forecast.Snapshot, prob, boost float64, samples int, rationale string, now time.Time) Estimate {
	if samples == 0 {
		// No usable window: neutral probability, confidence floor.
		prob, boost = 0.5, 0.4
	}

	conf := confidence(prob, samples, boost)
	if !f.Complete() {
		conf *= 0.8
	}
	if cls.Ambiguous() {
		conf *= 0.85
	}
	conf *= closeProximity(now, e.LookaheadHours, m.CloseTime)
	conf = clamp(conf, 0.05, 0.98)

	return Estimate{
		MarketID:    m.ID,
		Event:       cls.Event,
		Probability: clamp(prob, 0.01, 0.99),
		Confidence:  conf,
		Rationale:   fmt.Sprintf("%s, model_prob=%.3f", rationale, prob),
		GeneratedAt: now,
	}
}

// pickWindow selects values whose timestamps fall on the target dates,
// or inside [now, now+lookahead] when the question named no date.
func pickWindow(times []time.Time, values []float64, dates []time.Time, now time.Time, lookaheadHours int) []float64 {
	n := len(times)
	if len(values) < n {
		n = len(values)
	}

	var out []float64
	if len(dates) > 0 {
		want := map[string]bool{}
		for _, d := range dates {
			want[d.Format("2006-01-02")] = true
		}
		for i := 0; i < n; i++ {
			if want[times[i].Format("2006-01-02")] {
				out = append(out, values[i])
			}
		}
		return out
	}

	horizon := now.Add(time.Duration(lookaheadHours) * time.Hour)
	for i := 0; i < n; i++ {
		if !times[i].Before(now) && !times[i].After(horizon) {
			out = append(out, values[i])
		}
	}
	return out
}

// temperatureProbability blends how far the window's extreme clears
// the threshold (sigmoid on the margin) with how often the threshold
// is satisfied across the window.
func temperatureProbability(temps []float64, rule question.TempRule) float64 {
	if len(temps) == 0 {
		return 0.5
	}
	var extreme, margin float64
	satisfied := 0
	if rule.Op == ">=" {
		extreme = temps[0]
		for _, t := range temps {
			if t > extreme {
				extreme = t
			}
			if t >= rule.ThresholdC {
				satisfied++
			}
		}
		margin = extreme - rule.ThresholdC
	} else {
		extreme = temps[0]
		for _, t := range temps {
			if t < extreme {
				extreme = t
			}
			if t <= rule.ThresholdC {
				satisfied++
			}
		}
		margin = rule.ThresholdC - extreme
	}

	frequency := float64(satisfied) / float64(len(temps))
	marginProb := 1.0 / (1.0 + math.Exp(-margin/2.0))
	return clamp(0.6*marginProb+0.4*frequency, 0, 1)
}

// precipProbability mixes the peak hourly probability, the chance of
// any precipitation across the window (complement product), and the
// window average.
func precipProbability(precipPct []float64) float64 {
	if len(precipPct) == 0 {
		return 0.5
	}
	noneProb := 1.0
	maxProb := 0.0
	sum := 0.0
	for _, pct := range precipPct {
		p := clamp(pct/100.0, 0, 1)
		noneProb *= 1.0 - p
		if p > maxProb {
			maxProb = p
		}
		sum += p
	}
	anyProb := 1.0 - noneProb
	avgProb := sum / float64(len(precipPct))
	return clamp(0.55*maxProb+0.35*anyProb+0.10*avgProb, 0, 1)
}

func freezingShare(temps []float64) float64 {
	if len(temps) == 0 {
		return 0
	}
	freezing := 0
	for _, t := range temps {
		if t <= 0 {
			freezing++
		}
	}
	return float64(freezing) / float64(len(temps))
}

func exceedanceFrequency(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0.5
	}
	over := 0
	for _, v := range values {
		if v >= threshold {
			over++
		}
	}
	return float64(over) / float64(len(values))
}

// confidence grows with how far the probability sits from coin-flip
// (dispersion) and with window coverage, scaled by the per-event
// boost.
func confidence(prob float64, samples int, boost float64) float64 {
	dispersion := math.Abs(prob-0.5) * 2
	coverage := math.Min(float64(samples)/24.0, 1.0)
	return (0.35 + 0.45*dispersion + 0.20*coverage) * boost
}

// closeProximity decays confidence for markets that close beyond the
// forecast lookahead window: 1.0 inside the window, then
// 1/(1 + hoursPast/24) so each extra day past the window roughly
// halves-then-thirds the weight. Monotonically non-increasing in the
// close distance. Unknown close times are treated as in-window.
func closeProximity(now time.Time, lookaheadHours int, closeTime time.Time) float64 {
	if closeTime.IsZero() {
		return 1.0
	}
	windowEnd := now.Add(time.Duration(lookaheadHours) * time.Hour)
	if !closeTime.After(windowEnd) {
		return 1.0
	}
	hoursPast := closeTime.Sub(windowEnd).Hours()
	return 1.0 / (1.0 + hoursPast/24.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
