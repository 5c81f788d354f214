package builtins

import (
	"context"

	"quantworker/internal/domain"
	"quantworker/internal/strategy"
)

// Turtle is a channel-breakout strategy: enter on a new entry-window high,
// exit on a new exit-window low. Position size is chosen so that a stop-out
// at the exit channel loses roughly risk_pct of portfolio value.
type Turtle struct {
	entryWindow int
	exitWindow  int
	riskPct     float64

	highs []float64
	lows  []float64
	acct  strategy.AccountView
}

var _ strategy.Strategy = (*Turtle)(nil)

// TurtleDescriptor registers the turtle strategy.
func TurtleDescriptor() strategy.Descriptor {
	return strategy.Descriptor{
		Key: "turtle",
		Defaults: strategy.Schema{
			{Name: "entry_window", Default: 20},
			{Name: "exit_window", Default: 10},
			{Name: "risk_pct", Default: 0.02},
		},
		New: func(params map[string]any) (strategy.Strategy, error) {
			return &Turtle{
				entryWindow: strategy.IntParam(params, "entry_window", 20),
				exitWindow:  strategy.IntParam(params, "exit_window", 10),
				riskPct:     strategy.FloatParam(params, "risk_pct", 0.02),
			}, nil
		},
	}
}

func (t *Turtle) Name() string { return "Turtle Breakout" }

func (t *Turtle) Init(_ context.Context, acct strategy.AccountView) error {
	t.acct = acct
	return nil
}

func (t *Turtle) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	// Channels exclude the current bar so a breakout compares against
	// history, not itself.
	entryHigh := highestHigh(t.highs, t.entryWindow)
	exitLow := lowestLow(t.lows, t.exitWindow)

	t.highs = append(t.highs, bar.High)
	t.lows = append(t.lows, bar.Low)
	if len(t.highs) <= t.entryWindow {
		return nil, nil
	}

	pos := t.acct.Position()
	if pos == 0 && bar.Close > entryHigh {
		qty := t.unitSize(bar.Close, exitLow)
		if qty > 0 {
			return []domain.Signal{{Action: domain.ActionBuy, Quantity: qty, Reason: "entry channel breakout"}}, nil
		}
		return nil, nil
	}
	if pos > 0 && bar.Close < exitLow {
		return []domain.Signal{{Action: domain.ActionSell, Quantity: pos, Reason: "exit channel breakdown"}}, nil
	}
	return nil, nil
}

// unitSize risks riskPct of portfolio value against a stop at the exit
// channel low, capped by available cash.
func (t *Turtle) unitSize(price, stop float64) int64 {
	stopDist := price - stop
	if stopDist <= 0 {
		stopDist = price * t.riskPct
	}
	if stopDist <= 0 {
		return 0
	}
	qty := int64(t.acct.Value() * t.riskPct / stopDist)
	if max := affordableShares(t.acct.Cash(), price); qty > max {
		qty = max
	}
	return qty
}

func highestHigh(highs []float64, n int) float64 {
	if len(highs) == 0 {
		return 0
	}
	start := len(highs) - n
	if start < 0 {
		start = 0
	}
	best := highs[start]
	for _, h := range highs[start:] {
		if h > best {
			best = h
		}
	}
	return best
}

func lowestLow(lows []float64, n int) float64 {
	if len(lows) == 0 {
		return 0
	}
	start := len(lows) - n
	if start < 0 {
		start = 0
	}
	best := lows[start]
	for _, l := range lows[start:] {
		if l < best {
			best = l
		}
	}
	return best
}
