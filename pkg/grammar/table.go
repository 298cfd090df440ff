// Package grammar holds the versioned feature grammar table and the
// support filter that classifies normalized trees against it. Both the
// filter and the codec consult the same table, so the supported set stays
// in lockstep by construction.
package grammar

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTableYAML []byte

// Limits bounds the numeric parameters the codec accepts.
type Limits struct {
	MinRadius        float64 `yaml:"min_radius"`
	MaxAbsCoordinate float64 `yaml:"max_abs_coordinate"`
	MaxAbsDistance   float64 `yaml:"max_abs_distance"`
}

// Table enumerates the entity and feature kinds the codec handles, plus
// per-kind parameter constraints. A Table is loaded once at startup and
// never mutated; it is safe for concurrent readers.
type Table struct {
	Version      int      `yaml:"version"`
	Curves       []string `yaml:"curves"`
	Segments     []string `yaml:"segments"`
	Operations   []string `yaml:"operations"`
	ExtentTypes  []string `yaml:"extent_types"`
	StartExtents []string `yaml:"start_extents"`
	Limits       Limits   `yaml:"limits"`

	curves       map[string]bool
	segments     map[string]bool
	operations   map[string]bool
	extentTypes  map[string]bool
	startExtents map[string]bool
}

// Default returns the grammar table embedded in the binary.
func Default() *Table {
	t, err := Parse(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("grammar: embedded default table is invalid: %v", err))
	}
	return t
}

// Load reads a grammar table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load grammar table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load grammar table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a grammar table. Unknown YAML fields are
// rejected so a mistyped constraint cannot silently widen the grammar.
func Parse(data []byte) (*Table, error) {
	var t Table
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse grammar table: %w", err)
	}
	if t.Version <= 0 {
		return nil, fmt.Errorf("grammar table has no positive version")
	}
	if len(t.Curves) == 0 || len(t.Segments) == 0 || len(t.Operations) == 0 {
		return nil, fmt.Errorf("grammar table enumerates no supported kinds")
	}
	t.curves = toSet(t.Curves)
	t.segments = toSet(t.Segments)
	t.operations = toSet(t.Operations)
	t.extentTypes = toSet(t.ExtentTypes)
	t.startExtents = toSet(t.StartExtents)
	return &t, nil
}

func (t *Table) SupportsCurve(kind string) bool       { return t.curves[kind] }
func (t *Table) SupportsSegment(kind string) bool     { return t.segments[kind] }
func (t *Table) SupportsOperation(kind string) bool   { return t.operations[kind] }
func (t *Table) SupportsExtentType(kind string) bool  { return t.extentTypes[kind] }
func (t *Table) SupportsStartExtent(kind string) bool { return t.startExtents[kind] }

func toSet(kinds []string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
