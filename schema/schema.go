// Package schema holds the declarative description of tables, fields and
// relations consumed by the Loom engine. A Schema is built once, validated,
// and shared read-only across all table accessors for the process lifetime.
package schema

import (
	"fmt"
	"sort"
)

// Type is the declared type tag of a field.
type Type string

// The fixed set of field type tags.
const (
	TypeText      Type = "text"
	TypeVarchar   Type = "varchar"
	TypeInt       Type = "integer"
	TypeSerial    Type = "serial"
	TypeFloat     Type = "float"
	TypeBool      Type = "boolean"
	TypeDate      Type = "date"
	TypeTimestamp Type = "timestamp"
	TypeJSON      Type = "json"
	TypeUUID      Type = "uuid"
)

// Valid reports whether t is one of the declared type tags.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeVarchar, TypeInt, TypeSerial, TypeFloat,
		TypeBool, TypeDate, TypeTimestamp, TypeJSON, TypeUUID:
		return true
	}
	return false
}

// Kind describes the cardinality of a relation and which side owns
// the foreign key.
type Kind string

// Relation kinds.
const (
	HasMany    Kind = "hasMany"
	HasOne     Kind = "hasOne"
	BelongsTo  Kind = "belongsTo"
	ManyToMany Kind = "manyToMany"
)

// Valid reports whether k is a known relation kind.
func (k Kind) Valid() bool {
	switch k {
	case HasMany, HasOne, BelongsTo, ManyToMany:
		return true
	}
	return false
}

// Field is a single named column with its declared type tag.
type Field struct {
	Name string
	Type Type
}

// Relation describes a named relation attached to a table definition.
type Relation struct {
	Kind       Kind
	Target     string // related table name
	ForeignKey string // column on the owning side (or on the junction table)

	// ManyToMany only.
	JunctionTable string
	RelatedKey    string // junction column referencing the target

	// References optionally names the referenced column. Foreign-key
	// constraints are always resolved against the target table's primary
	// key; this field is carried for schema-file compatibility only.
	References string

	// Referential actions for emitted constraints (BelongsTo only).
	OnDelete string
	OnUpdate string
}

// TableDefinition describes one table: its ordered fields, the required
// and optional field sets, the primary key and the declared relations.
type TableDefinition struct {
	Name       string
	Fields     []Field
	Required   []string
	Optional   []string
	PrimaryKey []string
	Relations  map[string]*Relation
}

// FieldType returns the declared type of the named field.
func (t *TableDefinition) FieldType(name string) (Type, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// HasField reports whether the named field is declared on the table.
func (t *TableDefinition) HasField(name string) bool {
	_, ok := t.FieldType(name)
	return ok
}

// Columns returns the field names in declaration order.
func (t *TableDefinition) Columns() []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Name
	}
	return cols
}

// IsRequired reports whether the named field must be present on create.
func (t *TableDefinition) IsRequired(name string) bool {
	for _, r := range t.Required {
		if r == name {
			return true
		}
	}
	return false
}

// IsPrimaryKey reports whether the named field is part of the primary key.
func (t *TableDefinition) IsPrimaryKey(name string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == name {
			return true
		}
	}
	return false
}

// Relation returns the named relation descriptor.
func (t *TableDefinition) Relation(name string) (*Relation, bool) {
	r, ok := t.Relations[name]
	return r, ok
}

// RelationNames returns the declared relation names in sorted order.
func (t *TableDefinition) RelationNames() []string {
	names := make([]string, 0, len(t.Relations))
	for name := range t.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema is the immutable mapping from table name to definition.
type Schema struct {
	tables map[string]*TableDefinition
}

// New builds a Schema from the given table definitions and validates it.
// The returned Schema must not be mutated; it is shared by reference
// across all table accessors.
func New(defs ...*TableDefinition) (*Schema, error) {
	s := &Schema{tables: make(map[string]*TableDefinition, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("schema: table with empty name")
		}
		if _, ok := s.tables[def.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate table %q", def.Name)
		}
		s.tables[def.Name] = def
	}
	if result := Validate(s); result.HasErrors() {
		return nil, fmt.Errorf("schema: invalid schema:\n%s", result)
	}
	return s, nil
}

// Table returns the definition of the named table.
func (s *Schema) Table(name string) (*TableDefinition, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns all table definitions sorted by name.
func (s *Schema) Tables() []*TableDefinition {
	defs := make([]*TableDefinition, 0, len(s.tables))
	for _, t := range s.tables {
		defs = append(defs, t)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// TableNames returns all table names sorted.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
