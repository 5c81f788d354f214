package strategy

import "fmt"

// Preset is a named bundle of parameter overrides for one strategy. A task or
// screening run names a preset; explicit parameters still win over it.
type Preset struct {
	Name        string
	StrategyKey string
	Params      map[string]any
}

// builtinPresets are the tuned parameter bundles shipped with the worker.
var builtinPresets = map[string]Preset{
	"turtle_standard": {
		Name:        "turtle_standard",
		StrategyKey: "turtle",
		Params: map[string]any{
			"entry_window": 20,
			"exit_window":  10,
			"risk_pct":     0.02,
		},
	},
	"turtle_selective": {
		Name:        "turtle_selective",
		StrategyKey: "turtle",
		Params: map[string]any{
			"entry_window": 30,
			"exit_window":  15,
			"risk_pct":     0.015,
		},
	},
	"grid_default": {
		Name:        "grid_default",
		StrategyKey: "grid",
		Params: map[string]any{
			"grid_pct":     0.05,
			"batch_size":   100,
			"max_batches":  5,
			"dynamic_base": true,
		},
	},
	"dragon_combined": {
		Name:        "dragon_combined",
		StrategyKey: "hidden_dragon",
		Params: map[string]any{
			"ma_period":      20,
			"exit_ma_period": 10,
			"volume_ratio":   2.0,
			"exit_mode":      "combined",
		},
	},
}

// LookupPreset returns the preset with the given name.
func LookupPreset(name string) (Preset, error) {
	p, ok := builtinPresets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", name)
	}
	return p, nil
}

// ResolveStrategyKey returns the strategy key a run should dispatch on. A
// preset is bound to a strategy, so naming one replaces the explicitly
// supplied key; a run would otherwise feed one strategy another's tuned
// parameters.
func ResolveStrategyKey(key, presetName string) (string, error) {
	if presetName == "" {
		return key, nil
	}
	p, err := LookupPreset(presetName)
	if err != nil {
		return "", err
	}
	if p.StrategyKey != "" {
		return p.StrategyKey, nil
	}
	return key, nil
}

// ResolveParams produces the effective parameter map for a run: preset values
// (when presetName is non-empty) overlaid with explicit values, then coerced
// to the declared schema types. An empty presetName skips preset lookup.
func ResolveParams(defaults Schema, presetName string, explicit map[string]any) (map[string]any, error) {
	var presetParams map[string]any
	if presetName != "" {
		p, err := LookupPreset(presetName)
		if err != nil {
			return nil, err
		}
		presetParams = p.Params
	}
	return Normalize(defaults, MergePreset(presetParams, explicit)), nil
}
