package sqlgen

import (
	"fmt"
	"strings"

	"github.com/syssam/loom/dialect"
	"github.com/syssam/loom/schema"
)

// columnType maps a declared type tag to the backing-store column type.
// Unknown tags default to the generic text type.
func (b *Builder) columnType(t schema.Type) string {
	types, ok := columnTypes[b.dialect]
	if !ok {
		types = columnTypes[dialect.SQLite]
	}
	if ct, ok := types[t]; ok {
		return ct
	}
	return types[schema.TypeText]
}

var columnTypes = map[string]map[schema.Type]string{
	dialect.Postgres: {
		schema.TypeText:      "text",
		schema.TypeVarchar:   "varchar(255)",
		schema.TypeInt:       "bigint",
		schema.TypeSerial:    "bigserial",
		schema.TypeFloat:     "double precision",
		schema.TypeBool:      "boolean",
		schema.TypeDate:      "date",
		schema.TypeTimestamp: "timestamptz",
		schema.TypeJSON:      "jsonb",
		schema.TypeUUID:      "uuid",
	},
	dialect.MySQL: {
		schema.TypeText:      "text",
		schema.TypeVarchar:   "varchar(255)",
		schema.TypeInt:       "bigint",
		schema.TypeSerial:    "bigint auto_increment",
		schema.TypeFloat:     "double",
		schema.TypeBool:      "boolean",
		schema.TypeDate:      "date",
		schema.TypeTimestamp: "datetime",
		schema.TypeJSON:      "json",
		schema.TypeUUID:      "char(36)",
	},
	dialect.SQLite: {
		schema.TypeText:      "text",
		schema.TypeVarchar:   "text",
		schema.TypeInt:       "integer",
		schema.TypeSerial:    "integer",
		schema.TypeFloat:     "real",
		schema.TypeBool:      "boolean",
		schema.TypeDate:      "date",
		schema.TypeTimestamp: "datetime",
		schema.TypeJSON:      "text",
		schema.TypeUUID:      "text",
	},
}

// timestampDefaults are the timestamp fields that receive a
// default-generation rule on table create.
var timestampDefaults = map[string]bool{
	"createdAt":  true,
	"updatedAt":  true,
	"created_at": true,
	"updated_at": true,
}

// CreateTable synthesizes the table-create statement for def. For every
// BelongsTo relation a foreign-key constraint is emitted against the target
// table's primary key; a missing target definition is an error.
func (b *Builder) CreateTable(s *schema.Schema, def *schema.TableDefinition) (string, error) {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS " + b.Quote(def.Name) + " (")

	// SQLite requires serial keys to be spelled as the rowid alias.
	inlinePK := b.dialect == dialect.SQLite &&
		len(def.PrimaryKey) == 1 &&
		fieldType(def, def.PrimaryKey[0]) == schema.TypeSerial

	for i, f := range def.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.Quote(f.Name) + " ")
		if inlinePK && f.Name == def.PrimaryKey[0] {
			sb.WriteString("integer PRIMARY KEY AUTOINCREMENT")
			continue
		}
		sb.WriteString(b.columnType(f.Type))
		if def.IsRequired(f.Name) && !def.IsPrimaryKey(f.Name) {
			sb.WriteString(" NOT NULL")
		}
		if f.Type == schema.TypeTimestamp && timestampDefaults[f.Name] {
			sb.WriteString(" DEFAULT CURRENT_TIMESTAMP")
		}
	}

	if len(def.PrimaryKey) > 0 && !inlinePK {
		quoted := make([]string, len(def.PrimaryKey))
		for i, pk := range def.PrimaryKey {
			quoted[i] = b.Quote(pk)
		}
		sb.WriteString(", PRIMARY KEY (" + strings.Join(quoted, ", ") + ")")
	}

	for _, name := range def.RelationNames() {
		rel := def.Relations[name]
		if rel.Kind != schema.BelongsTo {
			continue
		}
		target, ok := s.Table(rel.Target)
		if !ok {
			return "", fmt.Errorf("sqlgen: table %q relation %q: target table %q not in schema", def.Name, name, rel.Target)
		}
		if len(target.PrimaryKey) != 1 {
			return "", fmt.Errorf("sqlgen: table %q relation %q: target %q primary key is not a single column", def.Name, name, rel.Target)
		}
		sb.WriteString(", FOREIGN KEY (" + b.Quote(rel.ForeignKey) + ") REFERENCES " +
			b.Quote(rel.Target) + " (" + b.Quote(target.PrimaryKey[0]) + ")")
		if rel.OnDelete != "" {
			sb.WriteString(" ON DELETE " + rel.OnDelete)
		}
		if rel.OnUpdate != "" {
			sb.WriteString(" ON UPDATE " + rel.OnUpdate)
		}
	}

	sb.WriteString(")")
	return sb.String(), nil
}

func fieldType(def *schema.TableDefinition, name string) schema.Type {
	t, _ := def.FieldType(name)
	return t
}

// IndexName derives the deterministic index name for a table field.
func IndexName(table, field string) string {
	return fmt.Sprintf("idx_%s_%s", table, field)
}

// CreateIndex synthesizes an index-create statement. Kind "unique" emits a
// unique index; any other kind emits a plain index.
func (b *Builder) CreateIndex(table, field, kind string) string {
	unique := ""
	if strings.EqualFold(kind, "unique") {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, b.Quote(IndexName(table, field)), b.Quote(table), b.Quote(field))
}

// DropIndex synthesizes the matching index-drop statement.
func (b *Builder) DropIndex(table, field string) string {
	if b.dialect == dialect.MySQL {
		return fmt.Sprintf("DROP INDEX %s ON %s", b.Quote(IndexName(table, field)), b.Quote(table))
	}
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", b.Quote(IndexName(table, field)))
}

// DropTable synthesizes a table-drop statement, cascading to dependents
// where the dialect supports it.
func (b *Builder) DropTable(table string) string {
	if b.dialect == dialect.Postgres {
		return "DROP TABLE IF EXISTS " + b.Quote(table) + " CASCADE"
	}
	return "DROP TABLE IF EXISTS " + b.Quote(table)
}
