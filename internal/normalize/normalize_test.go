package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/co2twin/internal/sector"
)

func TestFraction(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-20, -0.2},
		{20, 0.2},
		{-0.2, -0.2},
		{0, 0},
		{1, 1},
		{-1, -1},
		{1.5, 0.015},
		{150, 1.5},
		{-100, -1},
	}

	for _, tt := range tests {
		if got := Fraction(tt.in); got != tt.want {
			t.Errorf("Fraction(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestChanges_PercentAndFractionAgree(t *testing.T) {
	fromPercent := Changes(map[string]interface{}{"x": -20})
	fromFraction := Changes(map[string]interface{}{"x": -0.20})

	want := sector.Values{"x": -0.20}
	if diff := cmp.Diff(want, fromPercent); diff != "" {
		t.Errorf("percent input mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, fromFraction); diff != "" {
		t.Errorf("fraction input mismatch (-want +got):\n%s", diff)
	}
}

func TestChanges_MalformedBecomesZero(t *testing.T) {
	got := Changes(map[string]interface{}{
		"transport": "not a number",
		"industry":  nil,
		"power":     []string{"x"},
		"energy":    "-30",
	})

	want := sector.Values{
		"transport": 0,
		"industry":  0,
		"power":     0,
		"energy":    -0.3,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestChanges_PreservesKeysAndInput(t *testing.T) {
	raw := map[string]interface{}{"a": 50, "b": 0.5, "c": 0}
	got := Changes(raw)

	if len(got) != len(raw) {
		t.Fatalf("got %d keys, want %d", len(got), len(raw))
	}
	for k := range raw {
		if _, ok := got[k]; !ok {
			t.Errorf("key %q dropped", k)
		}
	}
	if raw["a"] != 50 {
		t.Errorf("input mutated: %v", raw)
	}
}

func TestChanges_Nil(t *testing.T) {
	got := Changes(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Changes(nil) = %#v, want empty map", got)
	}
}

func TestValues(t *testing.T) {
	in := sector.Values{"a": -20, "b": -0.2, "c": 1}
	got := Values(in)

	want := sector.Values{"a": -0.2, "b": -0.2, "c": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if in["a"] != -20 {
		t.Error("input mutated")
	}
}
