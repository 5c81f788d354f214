package engine

import (
	"time"

	"quantworker/internal/domain"
)

// Recorder accumulates the raw observations of one simulation run: every
// fill and one equity sample per trading day.
type Recorder struct {
	trades []domain.TradeFill
	equity []domain.EquityPoint
	cumPnL float64
	won    int
	lost   int
}

// RecordFill appends a fill, stamping its display datetime and running
// cumulative profit. A sell closes a trade for win/loss counting.
func (r *Recorder) RecordFill(f domain.TradeFill) {
	f.DatetimeStr = f.Datetime.Format("2006-01-02 15:04:05")
	r.cumPnL += f.PnL
	f.CumulativePnL = r.cumPnL
	r.trades = append(r.trades, f)

	if f.Action == domain.ActionSell {
		if f.PnL > 0 {
			r.won++
		} else {
			r.lost++
		}
	}
}

// MarkEquity appends one end-of-day portfolio value sample.
func (r *Recorder) MarkEquity(day time.Time, value float64) {
	r.equity = append(r.equity, domain.EquityPoint{
		Date:  day.Format("20060102"),
		Value: value,
	})
}

// Trades returns all recorded fills in order.
func (r *Recorder) Trades() []domain.TradeFill { return r.trades }

// EquityCurve returns the daily equity samples in order.
func (r *Recorder) EquityCurve() []domain.EquityPoint { return r.equity }

// Outcomes returns closed-trade counts: wins, losses, and their total.
func (r *Recorder) Outcomes() (won, lost, closed int) {
	return r.won, r.lost, r.won + r.lost
}
