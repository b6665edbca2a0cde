// Package signal converts a probability estimate plus a market quote
// into a trade signal, or nothing when any threshold fails.
package signal

import (
	"math"
	"time"

	"github.com/RondoWright/weather/internal/estimator"
	"github.com/RondoWright/weather/internal/market"
)

// Direction says which side of the market the model favors.
type Direction string

const (
	BuyYes Direction = "BUY_YES"
	BuyNo  Direction = "BUY_NO"
)

// Thresholds are the static gates a candidate signal must clear. All
// bounds are inclusive.
type Thresholds struct {
	MinEdgeBps    int
	MinConfidence float64
	MinLiquidity  float64
}

// Signal is one actionable divergence between model and market.
type Signal struct {
	MarketID         string    `json:"market_id"`
	Question         string    `json:"question"`
	Direction        Direction `json:"direction"`
	EdgeBps          int       `json:"edge_bps"`
	MarketYesPrice   float64   `json:"market_yes_price"`
	ModelProbability float64   `json:"model_probability"`
	Confidence       float64   `json:"confidence"`
	Liquidity        float64   `json:"liquidity"`
	Rationale        string    `json:"rationale"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// EdgeBps is the signed model-vs-market divergence in basis points.
func EdgeBps(modelProb, yesPrice float64) int {
	return int(math.Round((modelProb - yesPrice) * 10000))
}

// Generate gates an estimate into a signal. Returns nil when the
// market has closed, the edge is zero, or any threshold fails; a nil
// result is a skip, never an error.
func Generate(m market.Snapshot, est estimator.Estimate, th Thresholds, now time.Time) *Signal {
	if m.Closed(now) {
		return nil
	}
	if est.Confidence <= 0 || est.Confidence < th.MinConfidence {
		return nil
	}
	if m.Liquidity < th.MinLiquidity {
		return nil
	}

	edge := EdgeBps(est.Probability, m.YesPrice)
	if edge == 0 {
		return nil
	}
	if abs(edge) < th.MinEdgeBps {
		return nil
	}

	dir := BuyYes
	if edge < 0 {
		dir = BuyNo
	}
	return &Signal{
		MarketID:         m.ID,
		Question:         m.Question,
		Direction:        dir,
		EdgeBps:          edge,
		MarketYesPrice:   m.YesPrice,
		ModelProbability: est.Probability,
		Confidence:       est.Confidence,
		Liquidity:        m.Liquidity,
		Rationale:        est.Rationale,
		GeneratedAt:      est.GeneratedAt,
	}
}

// DirectionalEdge converts the signed YES edge into the edge seen from
// a direction: positive means the position's thesis still holds.
func DirectionalEdge(edgeBps int, dir Direction) int {
	if dir == BuyNo {
		return -edgeBps
	}
	return edgeBps
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
