// Package paper simulates holding positions against signals. It owns
// the persisted ledger: cash, at most one open position per market,
// and an append-only history of closed positions.
package paper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RondoWright/weather/internal/signal"
)

// Status is a position's lifecycle state. CLOSED is terminal.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Close reasons recorded on closed positions.
const (
	CloseReasonEdgeDecay    = "edge_decay"
	CloseReasonMarketClosed = "market_closed"
	CloseReasonMarketGone   = "market_gone"
)

// Position is one simulated holding. Entry and close prices are quoted
// in the signaled direction (the NO price for BUY_NO positions).
// ClosePrice, ClosedAt, PnLUSD and CloseReason are set only once the
// position is CLOSED, and never change afterwards.
type Position struct {
	ID           string           `json:"id"`
	MarketID     string           `json:"market_id"`
	Question     string           `json:"question,omitempty"`
	Direction    signal.Direction `json:"direction"`
	EntryPrice   float64          `json:"entry_price"`
	SizeUSD      float64          `json:"size_usd"`
	OpenedAt     time.Time        `json:"opened_at"`
	Status       Status           `json:"status"`
	LastYesPrice float64          `json:"last_yes_price"`
	ClosePrice   *float64         `json:"close_price,omitempty"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
	PnLUSD       *float64         `json:"pnl_usd,omitempty"`
	CloseReason  string           `json:"close_reason,omitempty"`
}

// MarkValueUSD is the position's current worth under the linear PnL
// convention: size plus size x (mark - entry) in direction prices.
func (p Position) MarkValueUSD(yesPrice float64) float64 {
	return p.SizeUSD + p.SizeUSD*(directionPrice(yesPrice, p.Direction)-p.EntryPrice)
}

// State is the full persisted ledger. It is rewritten wholesale on
// every save; no partial updates exist.
type State struct {
	Version   int64               `json:"version"`
	UpdatedAt string              `json:"updated_at"`
	CashUSD   float64             `json:"cash_usd"`
	Open      map[string]Position `json:"open_positions"`   // market id -> open position
	Closed    []Position          `json:"closed_positions"` // append-only, newest last
	EquityUSD float64             `json:"equity_usd"`
}

// maxClosedHistory caps the closed list kept in the state file.
const maxClosedHistory = 1000

func newState(startingCash float64) State {
	return State{
		CashUSD: startingCash,
		Open:    map[string]Position{},
	}
}

// loadState reads the ledger from path. A missing file initializes a
// fresh ledger with the configured starting cash. A present but
// unreadable or structurally invalid file is an error: the caller must
// refuse to trade rather than silently reset history.
func loadState(path string, startingCash float64) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newState(startingCash), nil
		}
		return State{}, fmt.Errorf("read paper state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("paper state file %s is corrupt: %w", path, err)
	}
	if st.Open == nil {
		st.Open = map[string]Position{}
	}
	if err := validateState(st); err != nil {
		return State{}, fmt.Errorf("paper state file %s is invalid: %w", path, err)
	}
	return st, nil
}

func validateState(st State) error {
	if st.CashUSD < 0 {
		return fmt.Errorf("negative cash balance %v", st.CashUSD)
	}
	for marketID, pos := range st.Open {
		if pos.Status != StatusOpen {
			return fmt.Errorf("open map entry for market %s has status %s", marketID, pos.Status)
		}
		if pos.MarketID != marketID {
			return fmt.Errorf("open map key %s does not match position market %s", marketID, pos.MarketID)
		}
		if pos.SizeUSD <= 0 {
			return fmt.Errorf("open position %s has non-positive size", pos.ID)
		}
	}
	for _, pos := range st.Closed {
		if pos.Status != StatusClosed {
			return fmt.Errorf("closed history entry %s has status %s", pos.ID, pos.Status)
		}
	}
	return nil
}

// saveState atomically rewrites the ledger: marshal, write to a temp
// file next to the target, fsync-free rename. A crash mid-save leaves
// the previous ledger intact.
func saveState(path string, st *State) error {
	st.Version++
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal paper state: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp paper state: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename paper state: %w", err)
	}
	return nil
}

func directionPrice(yesPrice float64, dir signal.Direction) float64 {
	p := yesPrice
	if dir == signal.BuyNo {
		p = 1 - yesPrice
	}
	if p < 0.01 {
		p = 0.01
	}
	if p > 0.99 {
		p = 0.99
	}
	return p
}
