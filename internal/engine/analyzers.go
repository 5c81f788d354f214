package engine

import (
	"math"

	"quantworker/internal/domain"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// MaxDrawdownPct returns the deepest peak-to-trough decline of the equity
// curve as a negative percentage (a 3.69% decline yields -3.69). A flat or
// monotonically rising curve yields 0.
func MaxDrawdownPct(equity []domain.EquityPoint) float64 {
	worst := 0.0
	peak := math.Inf(-1)
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (p.Value - peak) / peak * 100; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// SharpeRatio computes the annualized Sharpe ratio of daily returns derived
// from the equity curve, with a zero risk-free rate. Curves too short to
// produce returns, or with zero variance, yield 0.
func SharpeRatio(equity []domain.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			return 0
		}
		returns = append(returns, equity[i].Value/prev-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
