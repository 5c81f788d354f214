package strategy

// windowParamNames are the parameter names that imply a lookback window.
// The largest one drives the minimum-history estimate.
var windowParamNames = []string{
	"exit_ma_period",
	"ma_period",
	"short_ma",
	"long_ma",
	"entry_window",
	"exit_window",
}

const (
	// maxReferenceWindow is the longest lookback any shipped indicator uses.
	maxReferenceWindow = 60

	// defaultMinBars is the floor when no window parameter is declared.
	defaultMinBars = 20
)

// EstimateMinBars returns the minimum number of bars a strategy needs before
// its signals are meaningful. An explicit MinBars on the descriptor wins.
// Strategies running in combined-exit mode need the full reference window on
// both sides of an entry, so they get twice the longest indicator lookback.
// Otherwise the estimate is twice the largest declared window parameter, or a
// small fixed floor when the strategy declares no window at all.
func EstimateMinBars(d Descriptor, params map[string]any) int {
	if d.MinBars > 0 {
		return d.MinBars
	}
	if StringParam(params, "exit_mode", "") == "combined" {
		return 2 * maxReferenceWindow
	}
	longest := 0
	for _, name := range windowParamNames {
		if w := IntParam(params, name, 0); w > longest {
			longest = w
		}
	}
	if longest > 0 {
		return 2 * longest
	}
	return defaultMinBars
}
