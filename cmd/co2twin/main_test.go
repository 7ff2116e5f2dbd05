package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/co2twin/internal/report"
)

// isolateHome points HOME and every co2twin data location at a temp
// directory and seeds a Delhi preset. MUST be called by any test that
// opens a workspace.
func isolateHome(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	home := filepath.Join(root, "home")
	dataDir := filepath.Join(root, "data")
	for _, dir := range []string{home, dataDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	t.Setenv("HOME", home)
	t.Setenv("CO2TWIN_DATA_DIR", dataDir)
	t.Setenv("CO2TWIN_DB", filepath.Join(root, "co2twin.db"))
	t.Setenv("CO2TWIN_OUTPUT_DIR", filepath.Join(root, "outputs"))

	writeFile(t, filepath.Join(dataDir, "delhi.json"),
		`{"city": "Delhi", "sectors": {"transport": 1000, "industry": 2000, "power": 3000}}`)
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version", "--json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestSimulateCmd_Text(t *testing.T) {
	isolateHome(t)

	out, err := runCLI(t, "simulate", "--city", "delhi", "--change", "transport=-20")
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}
	for _, want := range []string{"City: Delhi", "Sector", "transport", "800.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulateCmd_JSON(t *testing.T) {
	isolateHome(t)

	out, err := runCLI(t, "simulate", "--city", "delhi", "--change", "transport=-0.2", "--json")
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}

	var got struct {
		RunID     string       `json:"run_id"`
		City      string       `json:"city"`
		Rows      []report.Row `json:"rows"`
		Converged bool         `json:"converged"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.City != "Delhi" {
		t.Errorf("city = %q, want Delhi", got.City)
	}
	if got.RunID == "" {
		t.Error("run_id is empty")
	}
	if !got.Converged {
		t.Error("converged = false, want true")
	}
	if len(got.Rows) != 3 || got.Rows[0].Sector != "transport" {
		t.Fatalf("rows = %+v, want transport first of 3", got.Rows)
	}
	if math.Abs(got.Rows[0].Simulated-800) > 1e-9 {
		t.Errorf("transport simulated = %v, want 800", got.Rows[0].Simulated)
	}
}

func TestSimulateCmd_FileAndSave(t *testing.T) {
	root := isolateHome(t)
	file := filepath.Join(root, "oslo.json")
	writeFile(t, file, `{"city": "Oslo", "sectors": {"power": 100}}`)
	outDir := filepath.Join(root, "results")

	out, err := runCLI(t, "simulate", "--file", file, "--change", "power=-10", "--save", "--out", outDir)
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}
	if !strings.Contains(out, "Saved ") {
		t.Errorf("output does not report saved files:\n%s", out)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d files in %s, want 2 (json and csv)", len(entries), outDir)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "Oslo_results_") {
			t.Errorf("unexpected file %q", e.Name())
		}
	}
}

func TestSimulateCmd_Errors(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no city or file", []string{"simulate"}},
		{"unknown city", []string{"simulate", "--city", "atlantis"}},
		{"bad change", []string{"simulate", "--city", "delhi", "--change", "transport"}},
		{"missing file", []string{"simulate", "--file", "/nonexistent/city.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseChanges(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		want    map[string]interface{}
		wantErr bool
	}{
		{"none", nil, map[string]interface{}{}, false},
		{"percent and fraction", []string{"transport=-20", "power=-0.1"},
			map[string]interface{}{"transport": -20.0, "power": -0.1}, false},
		{"spaces trimmed", []string{" industry = 5 "}, map[string]interface{}{"industry": 5.0}, false},
		{"later wins", []string{"power=1", "power=2"}, map[string]interface{}{"power": 2.0}, false},
		{"missing equals", []string{"power"}, nil, true},
		{"empty sector", []string{"=5"}, nil, true},
		{"not a number", []string{"power=lots"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChanges(tt.flags)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseChanges() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseChanges() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("changes[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestPrintRows(t *testing.T) {
	var buf bytes.Buffer
	printRows(&buf, []report.Row{
		{Sector: "transport", Baseline: 1000, Simulated: 800, Delta: 200, PctChange: 20},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Sector   ") {
		t.Errorf("header = %q, want padded to sector width", lines[0])
	}
	if !strings.Contains(lines[1], "20.0%") {
		t.Errorf("row = %q, want percent column", lines[1])
	}
}

func TestImportThenSimulate(t *testing.T) {
	root := isolateHome(t)
	file := filepath.Join(root, "Mumbai 2024.json")
	writeFile(t, file, `{"city": "Mumbai", "sectors": {"transport": 500, "power": 900}}`)

	out, err := runCLI(t, "import", file)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, `"Mumbai2024"`) {
		t.Errorf("import output = %q, want sanitized name Mumbai2024", out)
	}

	out, err = runCLI(t, "cities", "--json")
	if err != nil {
		t.Fatalf("cities error = %v", err)
	}
	var cities struct {
		Presets []string `json:"presets"`
		Stored  []struct {
			Name string `json:"name"`
			City string `json:"city"`
		} `json:"stored"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &cities); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if cities.Count != 2 || len(cities.Stored) != 1 || cities.Stored[0].City != "Mumbai" {
		t.Errorf("cities = %+v, want delhi preset plus stored Mumbai", cities)
	}

	out, err = runCLI(t, "simulate", "--city", "Mumbai2024", "--change", "power=-50")
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}
	if !strings.Contains(out, "City: Mumbai") || !strings.Contains(out, "450.0") {
		t.Errorf("simulate output:\n%s", out)
	}
}

func TestImportCmd_Errors(t *testing.T) {
	root := isolateHome(t)
	file := filepath.Join(root, "ok.json")
	writeFile(t, file, `{"city": "Ok", "sectors": {"power": 1}}`)
	bad := filepath.Join(root, "bad.json")
	writeFile(t, bad, `{not json`)

	if _, err := runCLI(t, "import", file, "--name", "!!!"); err == nil {
		t.Error("expected error for unusable name")
	}
	if _, err := runCLI(t, "import", bad); err == nil {
		t.Error("expected error for malformed dataset")
	}
	if _, err := runCLI(t, "import"); err == nil {
		t.Error("expected error without a file argument")
	}
}

func TestCitiesCmd_Text(t *testing.T) {
	isolateHome(t)

	out, err := runCLI(t, "cities")
	if err != nil {
		t.Fatalf("cities error = %v", err)
	}
	if !strings.Contains(out, "Presets") || !strings.Contains(out, "delhi") {
		t.Errorf("cities output:\n%s", out)
	}
}

func TestGraphCmd(t *testing.T) {
	isolateHome(t)

	t.Run("dot", func(t *testing.T) {
		out, err := runCLI(t, "graph", "--city", "delhi")
		if err != nil {
			t.Fatalf("graph error = %v", err)
		}
		if !strings.HasPrefix(out, "digraph co2twin {") {
			t.Errorf("output is not DOT:\n%s", out)
		}
		if !strings.Contains(out, `\n1000.0`) {
			t.Errorf("transport node missing baseline value:\n%s", out)
		}
	})

	t.Run("json flag", func(t *testing.T) {
		out, err := runCLI(t, "graph", "--json")
		if err != nil {
			t.Fatalf("graph error = %v", err)
		}
		var got struct {
			EdgeCount int `json:"edge_count"`
		}
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if got.EdgeCount != 4 {
			t.Errorf("edge_count = %d, want 4", got.EdgeCount)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		if _, err := runCLI(t, "graph", "--format", "svg"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestGraphProfiles(t *testing.T) {
	root := isolateHome(t)
	file := filepath.Join(root, "steep.yaml")
	writeFile(t, file, "transport:\n  industry: 0.5\nindustry: {}\n")

	out, err := runCLI(t, "graph", "import", "steep", file)
	if err != nil {
		t.Fatalf("graph import error = %v", err)
	}
	if !strings.Contains(out, "1 issue(s) found") {
		t.Errorf("import output = %q, want issue hint", out)
	}

	out, err = runCLI(t, "graph", "list", "--json")
	if err != nil {
		t.Fatalf("graph list error = %v", err)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	out, err = runCLI(t, "graph", "validate", "--profile", "steep")
	if err != nil {
		t.Fatalf("graph validate error = %v", err)
	}
	if !strings.Contains(out, "Found 1 issue(s)") || !strings.Contains(out, "amplifying") {
		t.Errorf("validate output:\n%s", out)
	}

	out, err = runCLI(t, "simulate", "--city", "delhi", "--change", "transport=-10", "--profile", "steep", "--json")
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}
	if !strings.Contains(out, `"converged": true`) {
		t.Errorf("simulate with profile output:\n%s", out)
	}
}

func TestGraphValidateCmd_Default(t *testing.T) {
	isolateHome(t)

	out, err := runCLI(t, "graph", "validate")
	if err != nil {
		t.Fatalf("graph validate error = %v", err)
	}
	if !strings.Contains(out, "Influence graph is valid") {
		t.Errorf("validate output:\n%s", out)
	}
}

func TestConfigCmd(t *testing.T) {
	root := isolateHome(t)

	out, err := runCLI(t, "config", "--json")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	var got struct {
		Database string `json:"database"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if want := filepath.Join(root, "co2twin.db"); got.Database != want {
		t.Errorf("database = %q, want %q", got.Database, want)
	}

	cfgFile := filepath.Join(root, "custom.yaml")
	writeFile(t, cfgFile, "simulation:\n  max_iterations: 3\n")
	out, err = runCLI(t, "config", "--config", cfgFile)
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(out, "max_iterations: 3") || !strings.Contains(out, "# source: "+cfgFile) {
		t.Errorf("config output:\n%s", out)
	}
}

func TestConfigCmd_Invalid(t *testing.T) {
	root := isolateHome(t)
	cfgFile := filepath.Join(root, "bad.yaml")
	writeFile(t, cfgFile, "simulation:\n  max_iterations: 0\n")

	if _, err := runCLI(t, "config", "--config", cfgFile); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestDeleteCmds(t *testing.T) {
	root := isolateHome(t)
	data := filepath.Join(root, "lima.json")
	writeFile(t, data, `{"city": "Lima", "sectors": {"power": 10}}`)
	graph := filepath.Join(root, "flat.yaml")
	writeFile(t, graph, "power: {}\n")

	if _, err := runCLI(t, "import", data); err != nil {
		t.Fatalf("import error = %v", err)
	}
	if _, err := runCLI(t, "graph", "import", "flat", graph); err != nil {
		t.Fatalf("graph import error = %v", err)
	}

	if _, err := runCLI(t, "delete", "lima"); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if _, err := runCLI(t, "simulate", "--city", "lima"); err == nil {
		t.Error("simulate succeeded for a deleted dataset")
	}
	if _, err := runCLI(t, "delete", "lima"); err == nil {
		t.Error("deleting twice should fail")
	}

	out, err := runCLI(t, "graph", "delete", "flat", "--json")
	if err != nil {
		t.Fatalf("graph delete error = %v", err)
	}
	if !strings.Contains(out, `"deleted"`) {
		t.Errorf("graph delete output = %q", out)
	}
	if _, err := runCLI(t, "graph", "validate", "--profile", "flat"); err == nil {
		t.Error("validate succeeded for a deleted profile")
	}
	if _, err := runCLI(t, "delete", "delhi"); err == nil {
		t.Error("presets are not deletable through the library")
	}
}
