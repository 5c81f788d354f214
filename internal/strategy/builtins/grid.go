package builtins

import (
	"context"
	"math"

	"quantworker/internal/domain"
	"quantworker/internal/strategy"
)

// Grid trades a ladder of price levels around a base price: one batch bought
// per level below the base, one batch sold per level above it. Each level
// fires at most once until price returns to the base band, so a price that
// sits on a level for days produces a single fill. Held position is always
// read from the broker, never tracked locally.
type Grid struct {
	gridPct     float64
	batchSize   int64
	maxBatches  int64
	dynamicBase bool

	base          float64
	triggeredBuy  map[int]bool
	triggeredSell map[int]bool
	acct          strategy.AccountView
}

var _ strategy.Strategy = (*Grid)(nil)

// GridDescriptor registers the grid strategy.
func GridDescriptor() strategy.Descriptor {
	return strategy.Descriptor{
		Key: "grid",
		Defaults: strategy.Schema{
			{Name: "grid_pct", Default: 0.03},
			{Name: "batch_size", Default: 100},
			{Name: "max_batches", Default: 5},
			{Name: "dynamic_base", Default: true},
		},
		MinBars: 2,
		New: func(params map[string]any) (strategy.Strategy, error) {
			return &Grid{
				gridPct:       strategy.FloatParam(params, "grid_pct", 0.03),
				batchSize:     int64(strategy.IntParam(params, "batch_size", 100)),
				maxBatches:    int64(strategy.IntParam(params, "max_batches", 5)),
				dynamicBase:   strategy.BoolParam(params, "dynamic_base", true),
				triggeredBuy:  make(map[int]bool),
				triggeredSell: make(map[int]bool),
			}, nil
		},
	}
}

func (g *Grid) Name() string { return "Grid Trading" }

func (g *Grid) Init(_ context.Context, acct strategy.AccountView) error {
	g.acct = acct
	return nil
}

func (g *Grid) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	if g.base == 0 {
		g.base = bar.Close
		return nil, nil
	}

	pos := g.acct.Position()

	// After a round trip completes and the position is flat, re-anchor the
	// ladder at the current price.
	if g.dynamicBase && pos == 0 && (len(g.triggeredBuy) > 0 || len(g.triggeredSell) > 0) {
		g.base = bar.Close
		g.triggeredBuy = make(map[int]bool)
		g.triggeredSell = make(map[int]bool)
		return nil, nil
	}

	gridSize := g.base * g.gridPct
	if gridSize <= 0 {
		return nil, nil
	}

	levelsBelow := int(math.Floor((g.base - bar.Close) / gridSize))
	levelsAbove := int(math.Floor((bar.Close - g.base) / gridSize))

	// Back inside the base band: every level is re-armed.
	if levelsBelow < 1 && levelsAbove < 1 {
		if len(g.triggeredBuy) > 0 || len(g.triggeredSell) > 0 {
			g.triggeredBuy = make(map[int]bool)
			g.triggeredSell = make(map[int]bool)
		}
		return nil, nil
	}

	if levelsBelow >= 1 {
		level := -levelsBelow
		held := pos / g.batchSize
		if !g.triggeredBuy[level] && held < g.maxBatches {
			qty := g.batchSize
			if max := affordableShares(g.acct.Cash(), bar.Close); qty > max {
				return nil, nil
			}
			g.triggeredBuy[level] = true
			return []domain.Signal{{Action: domain.ActionBuy, Quantity: qty, Reason: "grid buy level"}}, nil
		}
		return nil, nil
	}

	level := levelsAbove
	if !g.triggeredSell[level] && pos >= g.batchSize {
		g.triggeredSell[level] = true
		return []domain.Signal{{Action: domain.ActionSell, Quantity: g.batchSize, Reason: "grid sell level"}}, nil
	}
	return nil, nil
}
