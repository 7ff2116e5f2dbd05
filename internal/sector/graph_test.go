package sector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewGraph_CopiesInput(t *testing.T) {
	m := map[string]map[string]float64{
		"a": {"b": 0.1},
	}
	g := NewGraph(m)

	m["a"]["b"] = 0.9
	m["a"]["c"] = 0.5

	c, ok := g.Coefficient("a", "b")
	if !ok || c != 0.1 {
		t.Errorf("Coefficient(a, b) = %v, %v; want 0.1, true", c, ok)
	}
	if _, ok := g.Coefficient("a", "c"); ok {
		t.Error("graph picked up edge added after construction")
	}
}

func TestNewGraph_SortedTraversal(t *testing.T) {
	g := NewGraph(map[string]map[string]float64{
		"z": {"c": 1, "a": 2, "b": 3},
		"m": {"z": 0.5},
	})

	want := []Edge{
		{Source: "m", Target: "z", Coefficient: 0.5},
		{Source: "z", Target: "a", Coefficient: 2},
		{Source: "z", Target: "b", Coefficient: 3},
		{Source: "z", Target: "c", Coefficient: 1},
	}
	if diff := cmp.Diff(want, g.Edges()); diff != "" {
		t.Errorf("Edges() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "m", "z"}, g.Sectors()); diff != "" {
		t.Errorf("Sectors() mismatch (-want +got):\n%s", diff)
	}
	if g.Len() != 4 {
		t.Errorf("Len() = %d, want 4", g.Len())
	}
}

func TestDefaultGraph(t *testing.T) {
	g := DefaultGraph()

	want := map[string]map[string]float64{
		"transport":   {"industry": -0.05, "power": -0.02},
		"industry":    {"power": -0.08},
		"residential": {"power": -0.03},
		"power":       {},
	}
	if diff := cmp.Diff(want, g.Map()); diff != "" {
		t.Errorf("DefaultGraph mismatch (-want +got):\n%s", diff)
	}
	if len(g.Out("power")) != 0 {
		t.Errorf("power should be terminal, got %v", g.Out("power"))
	}

	// Each call is an independent value.
	if DefaultGraph() == g {
		t.Error("DefaultGraph returned a shared pointer")
	}
}

func TestNilGraph(t *testing.T) {
	var g *Graph
	if g.Len() != 0 || g.Out("x") != nil || g.Sectors() != nil || g.Edges() != nil {
		t.Error("nil graph should behave as empty")
	}
	if len(g.Map()) != 0 {
		t.Errorf("nil graph Map() = %v", g.Map())
	}
}

func TestParseGraph(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]map[string]float64
		wantErr bool
	}{
		{
			name:  "yaml",
			input: "transport:\n  industry: -0.05\npower: {}\n",
			want: map[string]map[string]float64{
				"transport": {"industry": -0.05},
				"power":     {},
			},
		},
		{
			name:  "json",
			input: `{"industry": {"power": -0.08}}`,
			want: map[string]map[string]float64{
				"industry": {"power": -0.08},
			},
		},
		{
			name:  "null targets",
			input: "power:\n",
			want:  map[string]map[string]float64{"power": {}},
		},
		{
			name:    "non-numeric coefficient",
			input:   "a:\n  b: lots\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGraph([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGraph: %v", err)
			}
			if diff := cmp.Diff(tt.want, g.Map()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("a:\n  b: 0.1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	g, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if c, ok := g.Coefficient("a", "b"); !ok || c != 0.1 {
		t.Errorf("Coefficient(a, b) = %v, %v", c, ok)
	}

	if _, err := LoadGraph(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValues(t *testing.T) {
	v := Values{"b": 2, "a": 1, "c": 3}

	if diff := cmp.Diff([]string{"a", "b", "c"}, v.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if v.Total() != 6 {
		t.Errorf("Total() = %v, want 6", v.Total())
	}

	c := v.Clone()
	c["a"] = 100
	if v["a"] != 1 {
		t.Error("Clone shares storage with original")
	}

	var nilValues Values
	if got := nilValues.Clone(); got == nil || len(got) != 0 {
		t.Errorf("nil Clone() = %#v, want empty map", got)
	}
}
