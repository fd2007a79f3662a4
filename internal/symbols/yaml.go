package symbols

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlTable is the serialized symbol table emitted alongside the compiled
// sequential program.
type yamlTable struct {
	RoundMarker string                `yaml:"round_marker"`
	Agents      map[int]int           `yaml:"agents"`
	Variables   map[string]yamlSymbol `yaml:"variables"`
}

type yamlSymbol struct {
	Scope Scope    `yaml:"scope"`
	Type  yamlType `yaml:"type"`
}

type yamlType struct {
	Kind   Kind       `yaml:"kind"`
	Width  int        `yaml:"width"`
	Signed bool       `yaml:"signed"`
	Len    int        `yaml:"len"`
	Elem   *yamlType  `yaml:"elem"`
	Fields []yamlType `yaml:"fields"`
}

// Parse deserializes a symbol table document and validates it.
func Parse(data []byte) (*Table, error) {
	var doc yamlTable
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse symbol table: %w", err)
	}

	table := &Table{
		RoundMarker: doc.RoundMarker,
		Agents:      doc.Agents,
		Symbols:     make(map[string]Symbol, len(doc.Variables)),
	}
	if table.Agents == nil {
		table.Agents = map[int]int{}
	}
	for name, sym := range doc.Variables {
		table.Symbols[name] = Symbol{
			Name:  name,
			Scope: sym.Scope,
			Type:  sym.Type.toType(),
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadFile reads and parses a symbol table file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbol table: %w", err)
	}
	return Parse(data)
}

func (t yamlType) toType() Type {
	typ := Type{
		Kind:   t.Kind,
		Width:  t.Width,
		Signed: t.Signed,
		Len:    t.Len,
	}
	if t.Elem != nil {
		elem := t.Elem.toType()
		typ.Elem = &elem
	}
	for _, field := range t.Fields {
		typ.Fields = append(typ.Fields, field.toType())
	}
	return typ
}
