package paper

import (
	"fmt"
	"sort"
	"time"

	"github.com/RondoWright/weather/internal/market"
	"github.com/RondoWright/weather/internal/observ"
	"github.com/RondoWright/weather/internal/signal"
)

// Config holds the static paper-trading knobs, fixed for the process
// lifetime.
type Config struct {
	StatePath        string
	StartingCashUSD  float64
	PositionSizeUSD  float64
	MaxOpenPositions int
	CloseEdgeBps     int
}

// MarketView is the per-cycle data the engine needs about one market:
// its fresh snapshot and, when the estimator produced one, the current
// model edge. Markets absent from the view map are treated as settled.
type MarketView struct {
	Snapshot market.Snapshot
	EdgeBps  int
	HasEdge  bool
}

// Summary reports what one cycle did to the ledger.
type Summary struct {
	CashUSD          float64    `json:"cash_usd"`
	EquityUSD        float64    `json:"equity_usd"`
	OpenCount        int        `json:"open_positions"`
	PositionValueUSD float64    `json:"position_value_usd"`
	UnrealizedPnLUSD float64    `json:"unrealized_pnl_usd"`
	Opened           []Position `json:"opened"`
	Closed           []Position `json:"closed"`
}

// Engine owns the ledger. Single writer: one Apply call runs at a time
// and every state transition is persisted atomically before the next.
type Engine struct {
	cfg   Config
	state State

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// NewEngine loads the ledger from the configured state file. Missing
// file means a fresh ledger with starting cash; an invalid file is
// returned as an error and the engine must not be used.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.PositionSizeUSD <= 0 {
		return nil, fmt.Errorf("position size must be positive, got %v", cfg.PositionSizeUSD)
	}
	if cfg.MaxOpenPositions <= 0 {
		return nil, fmt.Errorf("max open positions must be positive, got %d", cfg.MaxOpenPositions)
	}
	st, err := loadState(cfg.StatePath, cfg.StartingCashUSD)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, state: st, Now: time.Now}, nil
}

// State returns a copy of the current ledger for reporting.
func (e *Engine) State() State {
	cp := e.state
	cp.Open = make(map[string]Position, len(e.state.Open))
	for k, v := range e.state.Open {
		cp.Open[k] = v
	}
	cp.Closed = append([]Position(nil), e.state.Closed...)
	return cp
}

// Apply runs one cycle's transitions: a close pass over open
// positions, an open pass over this cycle's signals (highest |edge|
// first), then a mark-to-market of whatever remains open. Each
// transition persists the full ledger before the next is attempted.
// Replaying the same inputs against the resulting state opens nothing
// new for markets that already hold a position.
func (e *Engine) Apply(views map[string]MarketView, signals []*signal.Signal) (Summary, error) {
	now := e.Now().UTC()
	summary := Summary{Opened: []Position{}, Closed: []Position{}}

	// Close pass.
	openIDs := make([]string, 0, len(e.state.Open))
	for marketID := range e.state.Open {
		openIDs = append(openIDs, marketID)
	}
	sort.Strings(openIDs)
	for _, marketID := range openIDs {
		pos := e.state.Open[marketID]
		view, listed := views[marketID]

		var reason string
		closeYes := pos.LastYesPrice
		switch {
		case !listed:
			reason = CloseReasonMarketGone
		case view.Snapshot.Closed(now):
			reason = CloseReasonMarketClosed
			closeYes = view.Snapshot.YesPrice
		case view.HasEdge && signal.DirectionalEdge(view.EdgeBps, pos.Direction) < e.cfg.CloseEdgeBps:
			reason = CloseReasonEdgeDecay
			closeYes = view.Snapshot.YesPrice
		}

		if reason == "" {
			if listed {
				pos.LastYesPrice = view.Snapshot.YesPrice
				e.state.Open[marketID] = pos
			}
			continue
		}

		closed, err := e.closePosition(pos, closeYes, reason, now)
		if err != nil {
			return summary, err
		}
		summary.Closed = append(summary.Closed, closed)
	}

	// Open pass, strongest edge first.
	ordered := append([]*signal.Signal(nil), signals...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return absInt(ordered[i].EdgeBps) > absInt(ordered[j].EdgeBps)
	})
	for _, sig := range ordered {
		if _, exists := e.state.Open[sig.MarketID]; exists {
			continue // one open position per market
		}
		if len(e.state.Open) >= e.cfg.MaxOpenPositions {
			observ.IncCounter("paper_opens_rejected_total", map[string]string{"reason": "max_positions"})
			break
		}
		if e.state.CashUSD < e.cfg.PositionSizeUSD {
			observ.IncCounter("paper_opens_rejected_total", map[string]string{"reason": "insufficient_cash"})
			break
		}
		view, listed := views[sig.MarketID]
		if !listed || view.Snapshot.Closed(now) {
			continue
		}

		opened, err := e.openPosition(sig, view.Snapshot, now)
		if err != nil {
			return summary, err
		}
		summary.Opened = append(summary.Opened, opened)
	}

	// Mark pass.
	positionValue := 0.0
	unrealized := 0.0
	for _, pos := range e.state.Open {
		mark := pos.MarkValueUSD(pos.LastYesPrice)
		positionValue += mark
		unrealized += mark - pos.SizeUSD
	}
	e.state.EquityUSD = e.state.CashUSD + positionValue
	if err := saveState(e.cfg.StatePath, &e.state); err != nil {
		return summary, err
	}

	summary.CashUSD = e.state.CashUSD
	summary.EquityUSD = e.state.EquityUSD
	summary.OpenCount = len(e.state.Open)
	summary.PositionValueUSD = positionValue
	summary.UnrealizedPnLUSD = unrealized
	return summary, nil
}

func (e *Engine) openPosition(sig *signal.Signal, snap market.Snapshot, now time.Time) (Position, error) {
	pos := Position{
		ID:           fmt.Sprintf("%s-%s", sig.MarketID, now.Format("20060102T150405Z")),
		MarketID:     sig.MarketID,
		Question:     sig.Question,
		Direction:    sig.Direction,
		EntryPrice:   directionPrice(snap.YesPrice, sig.Direction),
		SizeUSD:      e.cfg.PositionSizeUSD,
		OpenedAt:     now,
		Status:       StatusOpen,
		LastYesPrice: snap.YesPrice,
	}

	e.state.CashUSD -= pos.SizeUSD
	e.state.Open[sig.MarketID] = pos
	if err := saveState(e.cfg.StatePath, &e.state); err != nil {
		return Position{}, err
	}

	observ.Log("paper_position_opened", map[string]any{
		"position_id": pos.ID,
		"market_id":   pos.MarketID,
		"direction":   string(pos.Direction),
		"entry_price": pos.EntryPrice,
		"size_usd":    pos.SizeUSD,
		"edge_bps":    sig.EdgeBps,
		"cash_usd":    e.state.CashUSD,
	})
	observ.IncCounter("paper_positions_opened_total", nil)
	return pos, nil
}

func (e *Engine) closePosition(pos Position, closeYes float64, reason string, now time.Time) (Position, error) {
	closePrice := directionPrice(closeYes, pos.Direction)
	pnl := pos.SizeUSD * (closePrice - pos.EntryPrice)

	pos.Status = StatusClosed
	pos.ClosePrice = &closePrice
	pos.ClosedAt = &now
	pos.PnLUSD = &pnl
	pos.CloseReason = reason
	pos.LastYesPrice = closeYes

	e.state.CashUSD += pos.SizeUSD + pnl
	delete(e.state.Open, pos.MarketID)
	e.state.Closed = append(e.state.Closed, pos)
	if len(e.state.Closed) > maxClosedHistory {
		e.state.Closed = e.state.Closed[len(e.state.Closed)-maxClosedHistory:]
	}
	if err := saveState(e.cfg.StatePath, &e.state); err != nil {
		return Position{}, err
	}

	observ.Log("paper_position_closed", map[string]any{
		"position_id": pos.ID,
		"market_id":   pos.MarketID,
		"direction":   string(pos.Direction),
		"close_price": closePrice,
		"pnl_usd":     pnl,
		"reason":      reason,
		"cash_usd":    e.state.CashUSD,
	})
	observ.IncCounter("paper_positions_closed_total", map[string]string{"reason": reason})
	return pos, nil
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
