// Package engine runs the scan cycle: markets and forecasts in,
// signals and ledger updates out. One cycle runs to completion before
// the next begins; there is no concurrent work.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RondoWright/weather/internal/alerts"
	"github.com/RondoWright/weather/internal/estimator"
	"github.com/RondoWright/weather/internal/forecast"
	"github.com/RondoWright/weather/internal/market"
	"github.com/RondoWright/weather/internal/observ"
	"github.com/RondoWright/weather/internal/paper"
	"github.com/RondoWright/weather/internal/question"
	"github.com/RondoWright/weather/internal/signal"
)

// MarketLister supplies the active markets for one cycle.
type MarketLister interface {
	ActiveMarkets(ctx context.Context) ([]market.Snapshot, error)
}

// ForecastProvider resolves a question's city candidates to a location
// and fetches its hourly forecast.
type ForecastProvider interface {
	Resolve(ctx context.Context, candidates []string) (forecast.Location, error)
	Fetch(ctx context.Context, loc forecast.Location) (*forecast.Snapshot, error)
}

// Evaluation is the per-market row of the cycle payload, emitted for
// every candidate whether or not it signaled.
type Evaluation struct {
	MarketID       string  `json:"market_id"`
	Question       string  `json:"question"`
	Liquidity      float64 `json:"liquidity"`
	MarketYesPrice float64 `json:"market_yes_price"`
	ModelYesPrice  float64 `json:"model_yes_price,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	EdgeBps        int     `json:"edge_bps,omitempty"`
	SignalAction   string  `json:"signal_action,omitempty"`
	SkipReason     string  `json:"skip_reason,omitempty"`
}

// Payload summarizes one completed cycle.
type Payload struct {
	CycleID      string           `json:"cycle_id"`
	Timestamp    time.Time        `json:"timestamp"`
	ScannedCount int              `json:"scanned_count"`
	SkippedCount int              `json:"skipped_count"`
	AlertsCount  int              `json:"alerts_count"`
	Alerts       []*signal.Signal `json:"alerts"`
	Evaluations  []Evaluation     `json:"evaluations"`
	Paper        *paper.Summary   `json:"paper,omitempty"`
}

// Scanner owns the collaborators for the scan loop.
type Scanner struct {
	markets    MarketLister
	forecasts  ForecastProvider
	estimator  *estimator.Estimator
	thresholds signal.Thresholds
	sink       alerts.Sink
	paper      *paper.Engine // nil when paper trading is off
}

func NewScanner(markets MarketLister, forecasts ForecastProvider, est *estimator.Estimator, th signal.Thresholds, sink alerts.Sink, paperEngine *paper.Engine) *Scanner {
	return &Scanner{
		markets:    markets,
		forecasts:  forecasts,
		estimator:  est,
		thresholds: th,
		sink:       sink,
		paper:      paperEngine,
	}
}

// RunCycle performs one scan: fetch markets, estimate and gate each
// one, emit alerts, then hand the cycle's views and signals to the
// paper engine. A market-fetch failure aborts the whole cycle and the
// ledger is left untouched; a forecast failure skips only its market.
func (s *Scanner) RunCycle(ctx context.Context) (*Payload, error) {
	cycleID := uuid.NewString()
	started := s.estimator.Now().UTC()

	snapshots, err := s.markets.ActiveMarkets(ctx)
	if err != nil {
		observ.IncCounter("cycles_aborted_total", nil)
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	payload := &Payload{
		CycleID:      cycleID,
		Timestamp:    started,
		ScannedCount: len(snapshots),
		Alerts:       []*signal.Signal{},
		Evaluations:  []Evaluation{},
	}
	views := make(map[string]paper.MarketView, len(snapshots))

	for _, m := range snapshots {
		views[m.ID] = paper.MarketView{Snapshot: m}

		eval := Evaluation{
			MarketID:       m.ID,
			Question:       m.Question,
			Liquidity:      m.Liquidity,
			MarketYesPrice: m.YesPrice,
		}

		est, ok := s.evaluateMarket(ctx, m, &eval)
		if !ok {
			payload.SkippedCount++
			payload.Evaluations = append(payload.Evaluations, eval)
			continue
		}

		edge := signal.EdgeBps(est.Probability, m.YesPrice)
		views[m.ID] = paper.MarketView{Snapshot: m, EdgeBps: edge, HasEdge: true}
		eval.ModelYesPrice = est.Probability
		eval.Confidence = est.Confidence
		eval.EdgeBps = edge

		sig := signal.Generate(m, est, s.thresholds, started)
		if sig == nil {
			payload.SkippedCount++
			payload.Evaluations = append(payload.Evaluations, eval)
			continue
		}

		eval.SignalAction = string(sig.Direction)
		payload.Evaluations = append(payload.Evaluations, eval)
		payload.Alerts = append(payload.Alerts, sig)
		alerts.Dispatch(s.sink, sig)
		observ.IncCounter("signals_emitted_total", map[string]string{"direction": string(sig.Direction)})
	}
	payload.AlertsCount = len(payload.Alerts)

	if s.paper != nil {
		summary, err := s.paper.Apply(views, payload.Alerts)
		if err != nil {
			return nil, fmt.Errorf("paper update: %w", err)
		}
		payload.Paper = &summary
	}

	observ.IncCounter("cycles_completed_total", nil)
	observ.Log("cycle_completed", map[string]any{
		"cycle_id": cycleID,
		"scanned":  payload.ScannedCount,
		"skipped":  payload.SkippedCount,
		"alerts":   payload.AlertsCount,
	})
	return payload, nil
}

// evaluateMarket runs question parsing, forecast fetch and estimation
// for one market. ok=false means the market is skipped this cycle; the
// reason lands in the evaluation row.
func (s *Scanner) evaluateMarket(ctx context.Context, m market.Snapshot, eval *Evaluation) (estimator.Estimate, bool) {
	cities := question.CityCandidates(m.Question)
	if len(cities) == 0 {
		eval.SkipReason = "no_city_parsed"
		return estimator.Estimate{}, false
	}

	loc, err := s.forecasts.Resolve(ctx, cities)
	if err != nil {
		observ.Warn("geocode_failed", map[string]any{"market_id": m.ID, "error": err.Error()})
		observ.IncCounter("forecast_errors_total", map[string]string{"stage": "geocode"})
		eval.SkipReason = "geocode_failed"
		return estimator.Estimate{}, false
	}

	f, err := s.forecasts.Fetch(ctx, loc)
	if err != nil {
		observ.Warn("forecast_failed", map[string]any{"market_id": m.ID, "error": err.Error()})
		observ.IncCounter("forecast_errors_total", map[string]string{"stage": "forecast"})
		eval.SkipReason = "forecast_failed"
		return estimator.Estimate{}, false
	}

	est, ok := s.estimator.Estimate(m, f)
	if !ok {
		eval.SkipReason = "unclassified"
		return estimator.Estimate{}, false
	}
	return est, true
}
