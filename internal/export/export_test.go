package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/co2twin/internal/report"
)

func sampleRows() []report.Row {
	return []report.Row{
		{Sector: "transport", Baseline: 1000, Simulated: 800, Delta: 200, PctChange: 20},
		{Sector: "power", Baseline: 3000, Simulated: 3002.5, Delta: -2.5, PctChange: -0.25},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "sector,baseline,simulated,delta,pct_change\n" +
		"transport,1000,800,200,20\n" +
		"power,3000,3002.5,-2.5,-0.25\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSV_QuotesSectorNames(t *testing.T) {
	var buf bytes.Buffer
	rows := []report.Row{{Sector: "heat, district"}}
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	want := "sector,baseline,simulated,delta,pct_change\n\"heat, district\",0,0,0,0\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var got []report.Row
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON record list: %v", err)
	}
	if diff := cmp.Diff(sampleRows(), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  {")) {
		t.Errorf("expected indented output, got:\n%s", buf.String())
	}
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("WriteJSON(nil) = %q, want %q", got, "[]\n")
	}
}

func TestSaveResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs")
	now := time.Date(2026, 4, 2, 9, 30, 15, 0, time.FixedZone("IST", 5*3600+1800))

	jsonPath, csvPath, err := SaveResults(dir, "New Delhi", sampleRows(), now)
	if err != nil {
		t.Fatalf("SaveResults() error = %v", err)
	}

	if want := filepath.Join(dir, "New_Delhi_results_20260402T040015Z.json"); jsonPath != want {
		t.Errorf("jsonPath = %q, want %q", jsonPath, want)
	}
	if want := filepath.Join(dir, "New_Delhi_results_20260402T040015Z.csv"); csvPath != want {
		t.Errorf("csvPath = %q, want %q", csvPath, want)
	}

	for _, p := range []string{jsonPath, csvPath} {
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", p)
		}
	}
}

func TestSaveResults_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := SaveResults(filepath.Join(file, "sub"), "X", sampleRows(), time.Now()); err == nil {
		t.Error("expected error when output dir cannot be created")
	}
}
