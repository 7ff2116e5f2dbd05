// Package normalize turns user-entered sector interventions into decimal
// fractions. Users may type either a fraction (-0.2) or a percent (-20);
// both mean a 20% reduction.
package normalize

import (
	"math"

	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/utils"
)

// Fraction applies the percent-or-fraction rule to a single value.
// Magnitudes strictly greater than 1 are percents and are divided by 100;
// everything else, including exactly ±1, is already a fraction.
func Fraction(v float64) float64 {
	if math.Abs(v) > 1 {
		return v / 100
	}
	return v
}

// Changes normalizes a raw change request. Values that cannot be read as
// numbers become 0. Every input key appears in the output and no other key
// does. A nil request yields an empty map.
func Changes(raw map[string]interface{}) sector.Values {
	out := make(sector.Values, len(raw))
	for s, v := range raw {
		out[s] = Fraction(utils.ToFloat64(v))
	}
	return out
}

// Values is Changes for input that is already numeric.
func Values(raw sector.Values) sector.Values {
	out := make(sector.Values, len(raw))
	for s, v := range raw {
		out[s] = Fraction(v)
	}
	return out
}
