package market

import "time"

// Snapshot is one active market as of the current scan cycle. It is
// immutable once fetched; the next cycle replaces it wholesale.
type Snapshot struct {
	ID        string
	Question  string
	YesPrice  float64 // implied probability of YES, [0,1]
	NoPrice   float64
	Liquidity float64   // USD
	CloseTime time.Time // zero when the market payload carries no end date
}

// Closed reports whether the market has passed its close time.
func (s Snapshot) Closed(now time.Time) bool {
	return !s.CloseTime.IsZero() && !now.Before(s.CloseTime)
}
