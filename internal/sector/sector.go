// Package sector defines the open sector vocabulary, per-sector value maps,
// and the immutable influence graph that links sectors together.
package sector

import (
	"sort"
)

// Values maps a sector name to an emission quantity. Sector names are
// case-sensitive and caller-defined.
type Values map[string]float64

// Clone returns a shallow copy of v. A nil map clones to an empty map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Keys returns the sector names in v, sorted.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total returns the sum of all values, added in sorted key order.
func (v Values) Total() float64 {
	var total float64
	for _, k := range v.Keys() {
		total += v[k]
	}
	return total
}
