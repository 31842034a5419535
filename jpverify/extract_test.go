package jpverify

import (
	"encoding/json"
	"testing"
)

func TestExtractLiquidationTimeMs_FieldPrecedence(t *testing.T) {
	cases := []struct {
		name     string
		payload  map[string]any
		expected int64
	}{
		{
			name:     "top-level fillTime wins over everything",
			payload:  map[string]any{"fillTime": float64(1700000000001), "cTime": float64(1700000000002)},
			expected: 1700000000001,
		},
		{
			name:     "cTime used when fillTime absent",
			payload:  map[string]any{"cTime": float64(1700000000002), "uTime": float64(1700000000003)},
			expected: 1700000000002,
		},
		{
			name:     "uTime used when earlier fields absent",
			payload:  map[string]any{"uTime": float64(1700000000003)},
			expected: 1700000000003,
		},
		{
			name:     "nested meta.fillTime",
			payload:  map[string]any{"meta": map[string]any{"fillTime": float64(1700000000004)}},
			expected: 1700000000004,
		},
		{
			name:     "nested meta.liquidationTimeMs",
			payload:  map[string]any{"meta": map[string]any{"liquidationTimeMs": float64(1700000000005)}},
			expected: 1700000000005,
		},
		{
			name:     "nested data.fillTime is the last resort",
			payload:  map[string]any{"data": map[string]any{"fillTime": float64(1700000000006)}},
			expected: 1700000000006,
		},
		{
			name:     "invalid top-level value falls through to nested",
			payload:  map[string]any{"fillTime": "not-a-number", "meta": map[string]any{"fillTime": float64(1700000000007)}},
			expected: 1700000000007,
		},
	}

	for _, tc := range cases {
		got := ExtractLiquidationTimeMs(tc.payload)
		if got == nil {
			t.Fatalf("%s: expected %d, got nil", tc.name, tc.expected)
		}
		if *got != tc.expected {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.expected, *got)
		}
	}
}

func TestExtractLiquidationTimeMs_AbsenceIsNilNotError(t *testing.T) {
	payloads := []map[string]any{
		{},
		{"instId": "BTC-USDT-SWAP", "state": "filled"},
		{"fillTime": float64(0)},
		{"fillTime": float64(-5)},
		{"fillTime": ""},
		{"meta": "not-an-object"},
		{"meta": map[string]any{"fillTime": "abc"}},
	}
	for i, p := range payloads {
		if got := ExtractLiquidationTimeMs(p); got != nil {
			t.Fatalf("payload %d: expected nil, got %d", i, *got)
		}
	}
}

func TestCoerceMillis_AcceptsUpstreamEncodings(t *testing.T) {
	cases := []struct {
		in       any
		expected int64
		ok       bool
	}{
		{float64(1700000000000), 1700000000000, true},
		{"1700000000000", 1700000000000, true},
		{json.Number("1700000000000"), 1700000000000, true},
		{float64(0), 0, false},
		{float64(-1), 0, false},
		{"", 0, false},
		{"12.5", 0, false},
		{json.Number("-3"), 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := coerceMillis(tc.in)
		if ok != tc.ok {
			t.Fatalf("coerceMillis(%#v) ok expected %v, got %v", tc.in, tc.ok, ok)
		}
		if ok && got != tc.expected {
			t.Fatalf("coerceMillis(%#v) expected %d, got %d", tc.in, tc.expected, got)
		}
	}
}
