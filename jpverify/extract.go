package jpverify

import (
	"encoding/json"
	"math"
	"strconv"
)

// The oracle's evidence payload is duck-typed: the liquidation timestamp may
// appear under several optional fields depending on which upstream source
// produced the evidence. Extraction is an ordered list of named extractors
// tried in sequence; the first finite positive value wins. Absence of every
// candidate yields nil rather than an error.

type timeExtractor struct {
	name    string
	extract func(payload map[string]any) (int64, bool)
}

var liquidationTimeExtractors = []timeExtractor{
	{name: "fillTime", extract: topLevelMillis("fillTime")},
	{name: "cTime", extract: topLevelMillis("cTime")},
	{name: "uTime", extract: topLevelMillis("uTime")},
	{name: "meta.fillTime", extract: nestedMillis("meta", "fillTime")},
	{name: "meta.liquidationTimeMs", extract: nestedMillis("meta", "liquidationTimeMs")},
	{name: "data.fillTime", extract: nestedMillis("data", "fillTime")},
}

// ExtractLiquidationTimeMs walks the extractor list over a decoded evidence
// payload and returns the first usable epoch-milliseconds value.
func ExtractLiquidationTimeMs(payload map[string]any) *int64 {
	for _, ex := range liquidationTimeExtractors {
		if ms, ok := ex.extract(payload); ok {
			return &ms
		}
	}
	return nil
}

func topLevelMillis(field string) func(map[string]any) (int64, bool) {
	return func(payload map[string]any) (int64, bool) {
		return coerceMillis(payload[field])
	}
}

func nestedMillis(parent, field string) func(map[string]any) (int64, bool) {
	return func(payload map[string]any) (int64, bool) {
		inner, ok := payload[parent].(map[string]any)
		if !ok {
			return 0, false
		}
		return coerceMillis(inner[field])
	}
}

// coerceMillis accepts the numeric encodings upstream actually emits: JSON
// numbers, numeric strings, and json.Number. Only finite positive values count.
func coerceMillis(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	case string:
		if t == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
