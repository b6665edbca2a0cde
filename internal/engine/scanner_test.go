package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RondoWright/weather/internal/estimator"
	"github.com/RondoWright/weather/internal/forecast"
	"github.com/RondoWright/weather/internal/market"
	"github.com/RondoWright/weather/internal/paper"
	"github.com/RondoWright/weather/internal/signal"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeMarkets struct {
	snaps []market.Snapshot
	err   error
}

func (f *fakeMarkets) ActiveMarkets(ctx context.Context) ([]market.Snapshot, error) {
	return f.snaps, f.err
}

type fakeForecasts struct {
	snap       *forecast.Snapshot
	resolveErr error
	fetchErr   error
}

func (f *fakeForecasts) Resolve(ctx context.Context, candidates []string) (forecast.Location, error) {
	if f.resolveErr != nil {
		return forecast.Location{}, f.resolveErr
	}
	return forecast.Location{Name: candidates[0]}, nil
}

func (f *fakeForecasts) Fetch(ctx context.Context, loc forecast.Location) (*forecast.Snapshot, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snap, nil
}

type captureSink struct {
	sent []*signal.Signal
}

func (c *captureSink) Emit(sig *signal.Signal) error {
	c.sent = append(c.sent, sig)
	return nil
}

func wetForecast() *forecast.Snapshot {
	hours := 48
	snap := &forecast.Snapshot{
		Location:  forecast.Location{Name: "Seattle"},
		FetchedAt: testNow,
	}
	for i := 0; i < hours; i++ {
		snap.Times = append(snap.Times, testNow.Add(time.Duration(i)*time.Hour))
		snap.TempsC = append(snap.TempsC, 15)
		snap.PrecipProb = append(snap.PrecipProb, 90)
		snap.WindKmh = append(snap.WindKmh, 10)
	}
	return snap
}

func rainMarket(id string) market.Snapshot {
	return market.Snapshot{
		ID:        id,
		Question:  "Will it rain in Seattle tomorrow?",
		YesPrice:  0.40,
		NoPrice:   0.60,
		Liquidity: 5000,
		CloseTime: testNow.Add(48 * time.Hour),
	}
}

func testEstimator() *estimator.Estimator {
	est := estimator.New(72)
	est.Now = func() time.Time { return testNow }
	return est
}

func testThresholds() signal.Thresholds {
	return signal.Thresholds{MinEdgeBps: 300, MinConfidence: 0.55, MinLiquidity: 1000}
}

func newPaperEngine(t *testing.T) *paper.Engine {
	t.Helper()
	eng, err := paper.NewEngine(paper.Config{
		StatePath:        filepath.Join(t.TempDir(), "paper_state.json"),
		StartingCashUSD:  1000,
		PositionSizeUSD:  50,
		MaxOpenPositions: 5,
		CloseEdgeBps:     100,
	})
	require.NoError(t, err)
	eng.Now = func() time.Time { return testNow }
	return eng
}

func TestRunCycle_FullPipeline(t *testing.T) {
	sink := &captureSink{}
	eng := newPaperEngine(t)
	s := NewScanner(
		&fakeMarkets{snaps: []market.Snapshot{rainMarket("m1")}},
		&fakeForecasts{snap: wetForecast()},
		testEstimator(), testThresholds(), sink, eng,
	)

	payload, err := s.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, payload.ScannedCount)
	assert.Equal(t, 0, payload.SkippedCount)
	require.Equal(t, 1, payload.AlertsCount)
	assert.Equal(t, signal.BuyYes, payload.Alerts[0].Direction)
	assert.Greater(t, payload.Alerts[0].EdgeBps, 300)
	require.Len(t, sink.sent, 1)

	require.NotNil(t, payload.Paper)
	assert.Len(t, payload.Paper.Opened, 1)
	assert.InDelta(t, 950.0, payload.Paper.CashUSD, 1e-9)
	assert.Equal(t, 1, payload.Paper.OpenCount)

	require.Len(t, payload.Evaluations, 1)
	assert.Equal(t, "BUY_YES", payload.Evaluations[0].SignalAction)
}

func TestRunCycle_MarketFetchFailureLeavesLedgerUntouched(t *testing.T) {
	eng := newPaperEngine(t)
	s := NewScanner(
		&fakeMarkets{err: errors.New("gamma down")},
		&fakeForecasts{snap: wetForecast()},
		testEstimator(), testThresholds(), &captureSink{}, eng,
	)

	_, err := s.RunCycle(context.Background())
	require.Error(t, err)

	st := eng.State()
	assert.InDelta(t, 1000.0, st.CashUSD, 1e-9)
	assert.Empty(t, st.Open)
	assert.Zero(t, st.Version, "no save may happen on an aborted cycle")
}

func TestRunCycle_ForecastFailureSkipsOnlyThatMarket(t *testing.T) {
	sink := &captureSink{}
	s := NewScanner(
		&fakeMarkets{snaps: []market.Snapshot{rainMarket("m1")}},
		&fakeForecasts{fetchErr: errors.New("open-meteo down")},
		testEstimator(), testThresholds(), sink, nil,
	)

	payload, err := s.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, payload.SkippedCount)
	assert.Empty(t, payload.Alerts)
	require.Len(t, payload.Evaluations, 1)
	assert.Equal(t, "forecast_failed", payload.Evaluations[0].SkipReason)
	assert.Empty(t, sink.sent)
}

func TestRunCycle_GeocodeFailureSkips(t *testing.T) {
	s := NewScanner(
		&fakeMarkets{snaps: []market.Snapshot{rainMarket("m1")}},
		&fakeForecasts{resolveErr: errors.New("no match")},
		testEstimator(), testThresholds(), &captureSink{}, nil,
	)

	payload, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Evaluations, 1)
	assert.Equal(t, "geocode_failed", payload.Evaluations[0].SkipReason)
}

func TestRunCycle_NoCityParsedSkips(t *testing.T) {
	m := rainMarket("m1")
	m.Question = "Will it rain tomorrow?"
	s := NewScanner(
		&fakeMarkets{snaps: []market.Snapshot{m}},
		&fakeForecasts{snap: wetForecast()},
		testEstimator(), testThresholds(), &captureSink{}, nil,
	)

	payload, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Evaluations, 1)
	assert.Equal(t, "no_city_parsed", payload.Evaluations[0].SkipReason)
}

func TestRunCycle_UnclassifiedQuestionSkips(t *testing.T) {
	m := rainMarket("m1")
	m.Question = "Will it be foggy in Denver on Tuesday?"
	s := NewScanner(
		&fakeMarkets{snaps: []market.Snapshot{m}},
		&fakeForecasts{snap: wetForecast()},
		testEstimator(), testThresholds(), &captureSink{}, nil,
	)

	payload, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Evaluations, 1)
	assert.Equal(t, "unclassified", payload.Evaluations[0].SkipReason)
}

func TestRunCycle_EdgeDecayClosesOnLaterCycle(t *testing.T) {
	eng := newPaperEngine(t)
	sink := &captureSink{}

	open := NewScanner(
		&fakeMarkets{snaps: []market.Snapshot{rainMarket("m1")}},
		&fakeForecasts{snap: wetForecast()},
		testEstimator(), testThresholds(), sink, eng,
	)
	_, err := open.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, eng.State().Open, 1)

	// Market price caught up with the model; edge is gone.
	converged := rainMarket("m1")
	converged.YesPrice = 0.93
	converged.NoPrice = 0.07
	decay := NewScanner(
		&fakeMarkets{snaps: []market.Snapshot{converged}},
		&fakeForecasts{snap: wetForecast()},
		testEstimator(), testThresholds(), sink, eng,
	)
	payload, err := decay.RunCycle(context.Background())
	require.NoError(t, err)

	require.NotNil(t, payload.Paper)
	require.Len(t, payload.Paper.Closed, 1)
	assert.Equal(t, paper.CloseReasonEdgeDecay, payload.Paper.Closed[0].CloseReason)
	assert.Empty(t, eng.State().Open)
}
