package sector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseGraph decodes a YAML or JSON document of the form
//
//	transport:
//	  industry: -0.05
//	  power: -0.02
//	power: {}
//
// into a Graph. A null target map is treated as a node with no edges.
func ParseGraph(data []byte) (*Graph, error) {
	var m map[string]map[string]float64
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing influence graph: %w", err)
	}
	return NewGraph(m), nil
}

// LoadGraph reads an influence graph file from path.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading influence graph: %w", err)
	}
	return ParseGraph(data)
}

// MarshalYAML encodes the graph as a source -> target -> coefficient map.
func (g *Graph) MarshalYAML() (interface{}, error) {
	return g.Map(), nil
}
