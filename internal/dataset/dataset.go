// Package dataset loads city emission baselines from JSON documents.
//
// The canonical document is
//
//	{"city": "Delhi", "sectors": {"transport": 1200, "energy": 2200}}
//
// Older documents where a sector is an object such as
// {"baseline": 1200, "unit": "kt"} are accepted too.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/utils"
)

// UnknownCity is used when a document names no city.
const UnknownCity = "Unknown"

// ErrNotFound is returned when a named dataset does not exist.
var ErrNotFound = errors.New("dataset not found")

// Dataset is a normalized city baseline.
type Dataset struct {
	City    string        `json:"city"`
	Sectors sector.Values `json:"sectors"`

	// Order lists the sectors in document order.
	Order []string `json:"order,omitempty"`
}

// Parse normalizes a dataset document. The document must be valid JSON
// with an object at the top level. Sector values that cannot be read as
// numbers become 0.
func Parse(data []byte) (*Dataset, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("parsing dataset: invalid JSON")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := readValue(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	doc, ok := root.(object)
	if !ok {
		return nil, fmt.Errorf("parsing dataset: top level must be an object")
	}

	ds := &Dataset{Sectors: sector.Values{}}
	var city, name string
	for _, m := range doc {
		switch m.key {
		case "city":
			city = scalarString(m.val)
		case "name":
			name = scalarString(m.val)
		case "sectors":
			if err := ds.readSectors(m.val); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case city != "":
		ds.City = city
	case name != "":
		ds.City = name
	default:
		ds.City = UnknownCity
	}
	return ds, nil
}

// LoadFile reads and normalizes the dataset at path.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	return &Dataset{
		City:    d.City,
		Sectors: d.Sectors.Clone(),
		Order:   append([]string(nil), d.Order...),
	}
}

// OrderedSectors returns the sector names in document order, followed by
// any sectors missing from Order in sorted order.
func (d *Dataset) OrderedSectors() []string {
	seen := make(map[string]bool, len(d.Order))
	out := make([]string, 0, len(d.Sectors))
	for _, s := range d.Order {
		if _, ok := d.Sectors[s]; ok && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range d.Sectors.Keys() {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out
}

// object is a decoded JSON object with its members in document order.
type object []member

type member struct {
	key string
	val interface{}
}

// readValue decodes the next JSON value. Objects become object, arrays
// []interface{}, numbers json.Number.
func readValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		var obj object
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			val, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, val: val})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		if obj == nil {
			obj = object{}
		}
		return obj, nil
	case '[':
		arr := []interface{}{}
		for dec.More() {
			val, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

func (d *Dataset) readSectors(v interface{}) error {
	switch sectors := v.(type) {
	case nil:
		return nil
	case object:
		for _, m := range sectors {
			if _, dup := d.Sectors[m.key]; !dup {
				d.Order = append(d.Order, m.key)
			}
			d.Sectors[m.key] = sectorValue(m.val)
		}
		return nil
	default:
		return fmt.Errorf("parsing dataset: sectors must be an object")
	}
}

// sectorValue reads one sector entry. Objects yield their "baseline"
// member or, failing that, their first numeric member.
func sectorValue(v interface{}) float64 {
	obj, ok := v.(object)
	if !ok {
		return scalarFloat(v)
	}
	for _, m := range obj {
		if m.key == "baseline" {
			return scalarFloat(m.val)
		}
	}
	for _, m := range obj {
		if isContainer(m.val) {
			continue
		}
		if f, ok := utils.Float64(m.val); ok {
			return f
		}
	}
	return 0
}

func isContainer(v interface{}) bool {
	switch v.(type) {
	case object, []interface{}:
		return true
	}
	return false
}

func scalarFloat(v interface{}) float64 {
	if isContainer(v) {
		return 0
	}
	return utils.ToFloat64(v)
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
