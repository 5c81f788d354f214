// Package engine runs bar-by-bar strategy simulations against a cash-account
// broker, records fills and daily equity, and computes performance metrics.
package engine

import (
	"quantworker/internal/domain"
	"quantworker/internal/strategy"
)

// CommissionScheme models per-trade costs: a proportional commission on both
// sides plus a stamp tax charged on sells only.
type CommissionScheme struct {
	Rate         float64
	SellStampTax float64
}

// DefaultCommission matches a typical A-share retail account.
func DefaultCommission() CommissionScheme {
	return CommissionScheme{
		Rate:         0.0001,
		SellStampTax: 0.0005,
	}
}

// Cost returns the total charge for a fill with the given notional value.
func (c CommissionScheme) Cost(action domain.SignalAction, notional float64) float64 {
	cost := notional * c.Rate
	if action == domain.ActionSell {
		cost += notional * c.SellStampTax
	}
	return cost
}

// Broker is a single-symbol cash account that fills orders at bar close.
// It implements strategy.AccountView so strategies size and gate against
// real broker state instead of a local copy.
type Broker struct {
	cash      float64
	position  int64
	avgCost   float64
	lastPrice float64
	scheme    CommissionScheme
}

var _ strategy.AccountView = (*Broker)(nil)

// NewBroker creates a flat account with the given starting cash.
func NewBroker(cash float64, scheme CommissionScheme) *Broker {
	return &Broker{cash: cash, scheme: scheme}
}

func (b *Broker) Cash() float64   { return b.cash }
func (b *Broker) Position() int64 { return b.position }

// Value marks the account to the last seen price.
func (b *Broker) Value() float64 {
	return b.cash + float64(b.position)*b.lastPrice
}

// MarkPrice updates the mark-to-market price. Called once per bar before the
// strategy sees it.
func (b *Broker) MarkPrice(price float64) {
	b.lastPrice = price
}

// Execute fills a signal at the bar's closing price. Buys are clamped to
// what cash can cover after commission, sells to the held position. The
// second return is false when nothing could be filled.
func (b *Broker) Execute(sig domain.Signal, bar domain.Bar) (domain.TradeFill, bool) {
	price := bar.Close
	if price <= 0 || sig.Quantity <= 0 {
		return domain.TradeFill{}, false
	}

	qty := sig.Quantity
	switch sig.Action {
	case domain.ActionBuy:
		perShare := price * (1 + b.scheme.Rate)
		if affordable := int64(b.cash / perShare); qty > affordable {
			qty = affordable
		}
		if qty <= 0 {
			return domain.TradeFill{}, false
		}
		notional := float64(qty) * price
		commission := b.scheme.Cost(domain.ActionBuy, notional)
		b.avgCost = (b.avgCost*float64(b.position) + notional) / float64(b.position+qty)
		b.cash -= notional + commission
		b.position += qty
		return domain.TradeFill{
			Datetime:   bar.Timestamp,
			Action:     domain.ActionBuy,
			Price:      price,
			Quantity:   qty,
			Commission: commission,
		}, true

	case domain.ActionSell:
		if qty > b.position {
			qty = b.position
		}
		if qty <= 0 {
			return domain.TradeFill{}, false
		}
		notional := float64(qty) * price
		commission := b.scheme.Cost(domain.ActionSell, notional)
		pnl := (price-b.avgCost)*float64(qty) - commission
		b.cash += notional - commission
		b.position -= qty
		if b.position == 0 {
			b.avgCost = 0
		}
		return domain.TradeFill{
			Datetime:   bar.Timestamp,
			Action:     domain.ActionSell,
			Price:      price,
			Quantity:   qty,
			Commission: commission,
			PnL:        pnl,
		}, true
	}
	return domain.TradeFill{}, false
}
