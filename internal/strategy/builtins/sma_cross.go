// Package builtins contains the trading strategies shipped with the worker
// and a constructor for the registry that holds them.
package builtins

import (
	"context"

	"quantworker/internal/domain"
	"quantworker/internal/strategy"
)

// SMACross buys when the short moving average crosses above the long one and
// liquidates when it crosses back below.
type SMACross struct {
	shortN int
	longN  int

	closes []float64
	acct   strategy.AccountView
}

var _ strategy.Strategy = (*SMACross)(nil)

// SMACrossDescriptor registers the sma_cross strategy.
func SMACrossDescriptor() strategy.Descriptor {
	return strategy.Descriptor{
		Key: "sma_cross",
		Defaults: strategy.Schema{
			{Name: "short_ma", Default: 5},
			{Name: "long_ma", Default: 20},
		},
		New: func(params map[string]any) (strategy.Strategy, error) {
			return &SMACross{
				shortN: strategy.IntParam(params, "short_ma", 5),
				longN:  strategy.IntParam(params, "long_ma", 20),
			}, nil
		},
	}
}

func (s *SMACross) Name() string { return "SMA Cross" }

func (s *SMACross) Init(_ context.Context, acct strategy.AccountView) error {
	s.acct = acct
	return nil
}

func (s *SMACross) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) <= s.longN {
		return nil, nil
	}

	curShort := sma(s.closes, s.shortN, 0)
	curLong := sma(s.closes, s.longN, 0)
	prevShort := sma(s.closes, s.shortN, 1)
	prevLong := sma(s.closes, s.longN, 1)

	crossedUp := prevShort <= prevLong && curShort > curLong
	crossedDown := prevShort >= prevLong && curShort < curLong

	if crossedUp && s.acct.Position() == 0 {
		qty := affordableShares(s.acct.Cash(), bar.Close)
		if qty > 0 {
			return []domain.Signal{{Action: domain.ActionBuy, Quantity: qty, Reason: "sma cross up"}}, nil
		}
	}
	if crossedDown && s.acct.Position() > 0 {
		return []domain.Signal{{Action: domain.ActionSell, Quantity: s.acct.Position(), Reason: "sma cross down"}}, nil
	}
	return nil, nil
}

// sma averages the last n closes, skipping `back` most recent samples.
func sma(closes []float64, n, back int) float64 {
	end := len(closes) - back
	sum := 0.0
	for _, c := range closes[end-n : end] {
		sum += c
	}
	return sum / float64(n)
}

// affordableShares leaves a small cash buffer so commissions never push the
// account negative.
func affordableShares(cash, price float64) int64 {
	if price <= 0 {
		return 0
	}
	return int64(cash * 0.99 / price)
}
