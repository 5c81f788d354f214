package builtins

import (
	"context"

	"quantworker/internal/domain"
	"quantworker/internal/strategy"
)

// HiddenDragon buys when price reclaims its moving average on a volume surge
// and exits below a shorter exit average. In "combined" exit mode the exit
// additionally requires price below the entry average, which holds positions
// through shallow pullbacks.
type HiddenDragon struct {
	maPeriod     int
	exitMAPeriod int
	volumeRatio  float64
	exitMode     string

	closes  []float64
	volumes []float64
	acct    strategy.AccountView
}

var _ strategy.Strategy = (*HiddenDragon)(nil)

// HiddenDragonDescriptor registers the hidden_dragon strategy.
func HiddenDragonDescriptor() strategy.Descriptor {
	return strategy.Descriptor{
		Key: "hidden_dragon",
		Defaults: strategy.Schema{
			{Name: "ma_period", Default: 20},
			{Name: "exit_ma_period", Default: 10},
			{Name: "volume_ratio", Default: 2.0},
			{Name: "exit_mode", Default: "ma"},
		},
		New: func(params map[string]any) (strategy.Strategy, error) {
			return &HiddenDragon{
				maPeriod:     strategy.IntParam(params, "ma_period", 20),
				exitMAPeriod: strategy.IntParam(params, "exit_ma_period", 10),
				volumeRatio:  strategy.FloatParam(params, "volume_ratio", 2.0),
				exitMode:     strategy.StringParam(params, "exit_mode", "ma"),
			}, nil
		},
	}
}

func (h *HiddenDragon) Name() string { return "Hidden Dragon" }

func (h *HiddenDragon) Init(_ context.Context, acct strategy.AccountView) error {
	h.acct = acct
	return nil
}

func (h *HiddenDragon) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	h.closes = append(h.closes, bar.Close)
	h.volumes = append(h.volumes, float64(bar.Volume))
	if len(h.closes) <= h.maPeriod {
		return nil, nil
	}

	entryMA := sma(h.closes, h.maPeriod, 0)
	prevMA := sma(h.closes, h.maPeriod, 1)
	prevClose := h.closes[len(h.closes)-2]

	pos := h.acct.Position()
	if pos == 0 {
		avgVol := sma(h.volumes, h.maPeriod, 0)
		reclaimed := prevClose <= prevMA && bar.Close > entryMA
		surged := avgVol > 0 && float64(bar.Volume) >= h.volumeRatio*avgVol
		if reclaimed && surged {
			qty := affordableShares(h.acct.Cash(), bar.Close)
			if qty > 0 {
				return []domain.Signal{{Action: domain.ActionBuy, Quantity: qty, Reason: "ma reclaim on volume surge"}}, nil
			}
		}
		return nil, nil
	}

	exitN := h.exitMAPeriod
	if exitN > len(h.closes) {
		exitN = len(h.closes)
	}
	exitMA := sma(h.closes, exitN, 0)

	exit := bar.Close < exitMA
	if h.exitMode == "combined" {
		exit = exit && bar.Close < entryMA
	}
	if exit {
		return []domain.Signal{{Action: domain.ActionSell, Quantity: pos, Reason: "close below exit ma"}}, nil
	}
	return nil, nil
}
