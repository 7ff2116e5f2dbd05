// Package report compares baseline and simulated sector values and
// produces a short narrative summary.
package report

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nvandessel/co2twin/internal/sector"
)

// Row is one sector of a baseline/simulated comparison.
type Row struct {
	Sector    string  `json:"sector"`
	Baseline  float64 `json:"baseline"`
	Simulated float64 `json:"simulated"`
	Delta     float64 `json:"delta"`
	PctChange float64 `json:"pct_change"`
}

// Summary aggregates a comparison.
type Summary struct {
	TotalBaseline  float64 `json:"total_baseline"`
	TotalSimulated float64 `json:"total_simulated"`
	TotalDelta     float64 `json:"total_delta"`
	PctReduction   float64 `json:"pct_reduction"`
	PerSector      []Row   `json:"per_sector,omitempty"`
}

// Compare builds one row per baseline sector. order fixes the row order;
// baseline sectors missing from order follow in sorted order. A positive
// delta is a reduction. A zero baseline divides by 1 for pct_change.
func Compare(baseline, simulated sector.Values, order []string) []Row {
	names := orderedSectors(baseline, order)
	rows := make([]Row, 0, len(names))
	for _, s := range names {
		b := baseline[s]
		sim := simulated[s]
		delta := b - sim
		denom := b
		if denom == 0 {
			denom = 1
		}
		rows = append(rows, Row{
			Sector:    s,
			Baseline:  b,
			Simulated: sim,
			Delta:     delta,
			PctChange: delta / denom * 100,
		})
	}
	return rows
}

// Summarize totals the rows. PctReduction is 0 when the baseline total is
// not positive.
func Summarize(rows []Row) Summary {
	s := Summary{PerSector: rows}
	for _, r := range rows {
		s.TotalBaseline += r.Baseline
		s.TotalSimulated += r.Simulated
	}
	s.TotalDelta = s.TotalBaseline - s.TotalSimulated
	if s.TotalBaseline > 0 {
		s.PctReduction = s.TotalDelta / s.TotalBaseline * 100
	}
	return s
}

// Text renders the two-line narrative comparing baseline and simulated
// totals and naming the sector with the largest percentage reduction.
// Every simulated sector counts toward the after total, including sectors
// the cascade introduced.
func Text(baseline, simulated sector.Values, order []string) string {
	totalBefore := baseline.Total()
	totalAfter := simulated.Total()
	overall := 0.0
	if totalBefore > 0 {
		overall = (totalBefore - totalAfter) / totalBefore * 100
	}

	bestSector := ""
	bestPct := 0.0
	for _, s := range orderedSectors(baseline, order) {
		b := baseline[s]
		if b <= 0 {
			continue
		}
		pct := (b - simulated[s]) / b * 100
		if pct > bestPct {
			bestPct = pct
			bestSector = s
		}
	}

	var direction string
	switch {
	case overall > 0:
		direction = "reduced"
	case overall < 0:
		direction = "increased"
	default:
		direction = "had no change in"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Overall CO₂ emissions %s by %.1f%% (from %.0f to %.0f).\n",
		direction, math.Abs(overall), totalBefore, totalAfter)
	if bestSector != "" {
		fmt.Fprintf(&b, "The most responsive sector was %s, showing a %.1f%% reduction.",
			Capitalize(bestSector), bestPct)
	} else {
		b.WriteString("No significant reductions were observed in individual sectors.")
	}
	return b.String()
}

// Capitalize upper-cases the first letter of s and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func orderedSectors(baseline sector.Values, order []string) []string {
	seen := make(map[string]bool, len(baseline))
	out := make([]string, 0, len(baseline))
	for _, s := range order {
		if _, ok := baseline[s]; ok && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range baseline.Keys() {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out
}
