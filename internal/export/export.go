// Package export writes simulation comparisons to JSON and CSV files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nvandessel/co2twin/internal/report"
	"github.com/nvandessel/co2twin/internal/sanitize"
)

// TimestampFormat is the UTC timestamp layout used in result file names.
const TimestampFormat = "20060102T150405Z"

// Header is the CSV column order.
var Header = []string{"sector", "baseline", "simulated", "delta", "pct_change"}

// SaveResults writes rows to <city>_results_<timestamp>.json and .csv in
// dir, creating dir if needed, and returns both paths.
func SaveResults(dir, city string, rows []report.Row, now time.Time) (jsonPath, csvPath string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}

	stem := fmt.Sprintf("%s_results_%s", sanitize.FileName(city), now.UTC().Format(TimestampFormat))
	jsonPath = filepath.Join(dir, stem+".json")
	csvPath = filepath.Join(dir, stem+".csv")

	if err := writeFile(jsonPath, func(w io.Writer) error { return WriteJSON(w, rows) }); err != nil {
		return "", "", fmt.Errorf("saving JSON results: %w", err)
	}
	if err := writeFile(csvPath, func(w io.Writer) error { return WriteCSV(w, rows) }); err != nil {
		return "", "", fmt.Errorf("saving CSV results: %w", err)
	}
	return jsonPath, csvPath, nil
}

// WriteJSON writes rows as an indented JSON array of records.
func WriteJSON(w io.Writer, rows []report.Row) error {
	if rows == nil {
		rows = []report.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteCSV writes rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []report.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Sector,
			formatFloat(r.Baseline),
			formatFloat(r.Simulated),
			formatFloat(r.Delta),
			formatFloat(r.PctChange),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
