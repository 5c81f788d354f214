package strategy

import (
	"math"
	"strconv"
	"strings"
)

// trueTokens is the closed set of textual values that coerce to true.
var trueTokens = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true, "t": true,
}

// falseTokens lets generic coercion distinguish an explicit false from a
// string that is not boolean at all.
var falseTokens = map[string]bool{
	"0": true, "false": true, "no": true, "n": true, "f": true,
}

// Normalize coerces a loosely-typed parameter bag (strings and numbers from
// CLI flags or remote JSON) into the types declared by the strategy's
// parameter defaults.
//
// For keys with a declared default, textual values are cast to the default's
// type: booleans via the fixed token set, integers via float-then-truncate,
// floats via direct parse. A failed cast leaves the original value unchanged
// so the simulation driver surfaces the resulting type error. Numeric values
// are aligned to the default's kind (JSON decoding always yields float64, so
// an integral float becomes an int when the default is an int).
//
// Keys without a matching default get generic coercion: boolean tokens, then
// numeric parse (integral float becomes int), else the string stays a string.
//
// The input map is not mutated; the same input always yields the same output.
func Normalize(defaults Schema, raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if def, ok := defaults.Lookup(key); ok {
			out[key] = coerceToDeclared(def, value)
		} else {
			out[key] = coerceGeneric(value)
		}
	}
	return out
}

// MergePreset overlays explicit parameters on top of preset parameters.
// Explicit values win key-by-key. Neither input map is mutated.
func MergePreset(preset, explicit map[string]any) map[string]any {
	merged := make(map[string]any, len(preset)+len(explicit))
	for k, v := range preset {
		merged[k] = v
	}
	for k, v := range explicit {
		merged[k] = v
	}
	return merged
}

// coerceToDeclared casts value to the type of the declared default. Cast
// failures return the value unchanged (fail soft, not hard).
func coerceToDeclared(def, value any) any {
	switch def.(type) {
	case bool:
		switch v := value.(type) {
		case bool:
			return v
		case string:
			return trueTokens[strings.ToLower(strings.TrimSpace(v))]
		}
		return value
	case int:
		switch v := value.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return int(f)
			}
		}
		return value
	case float64:
		switch v := value.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
		return value
	case string:
		if s, ok := value.(string); ok {
			return s
		}
		return value
	}
	return value
}

// coerceGeneric applies best-effort typing to a value with no declared
// default: boolean tokens, then numeric parse, else unchanged.
func coerceGeneric(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	token := strings.ToLower(strings.TrimSpace(s))
	if trueTokens[token] {
		return true
	}
	if falseTokens[token] {
		return false
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f)
		}
		return f
	}
	return s
}

// ---------------------------------------------------------------------------
// Typed parameter readers used by strategy constructors
// ---------------------------------------------------------------------------

// IntParam reads an integer parameter, falling back to def when the key is
// absent or not numeric.
func IntParam(params map[string]any, name string, def int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// FloatParam reads a float parameter, falling back to def.
func FloatParam(params map[string]any, name string, def float64) float64 {
	switch v := params[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// BoolParam reads a boolean parameter, falling back to def.
func BoolParam(params map[string]any, name string, def bool) bool {
	if v, ok := params[name].(bool); ok {
		return v
	}
	return def
}

// StringParam reads a string parameter, falling back to def.
func StringParam(params map[string]any, name string, def string) string {
	if v, ok := params[name].(string); ok {
		return v
	}
	return def
}
