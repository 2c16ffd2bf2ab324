// Package sqlgen synthesizes parameterized SQL statements from schema
// metadata. All value parameters are positional; statement text only ever
// interpolates identifiers, which are quoted by dialect policy and taken
// exclusively from schema-declared names.
package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/loom/dialect"
)

// Builder synthesizes statements for one SQL dialect.
type Builder struct {
	dialect string
}

// New returns a Builder for the given dialect name.
func New(d string) *Builder {
	return &Builder{dialect: d}
}

// Dialect returns the builder's dialect name.
func (b *Builder) Dialect() string { return b.dialect }

// SupportsReturning reports whether the dialect can return rows from
// INSERT/UPDATE/DELETE statements.
func (b *Builder) SupportsReturning() bool {
	return b.dialect != dialect.MySQL
}

// Quote quotes an identifier to tolerate reserved words and case
// sensitivity. Embedded quote characters are doubled.
func (b *Builder) Quote(ident string) string {
	if b.dialect == dialect.MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (b *Builder) placeholder(n int) string {
	if b.dialect == dialect.Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// stmt accumulates statement text and positional arguments.
type stmt struct {
	b  *Builder
	sb strings.Builder
	// args holds the positional parameters in placeholder order.
	args []any
}

func (s *stmt) writeString(str string) { s.sb.WriteString(str) }

func (s *stmt) arg(v any) string {
	s.args = append(s.args, v)
	return s.b.placeholder(len(s.args))
}

// writeFilter appends a conjunction of equality predicates over the filter
// map in sorted key order. A nil value becomes an IS NULL predicate. An
// empty filter writes nothing (selects all rows).
func (s *stmt) writeFilter(filter map[string]any) {
	if len(filter) == 0 {
		return
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.writeString(" WHERE ")
	for i, k := range keys {
		if i > 0 {
			s.writeString(" AND ")
		}
		if filter[k] == nil {
			s.writeString(s.b.Quote(k) + " IS NULL")
			continue
		}
		s.writeString(s.b.Quote(k) + " = " + s.arg(filter[k]))
	}
}

// writeKey appends the primary-key equality predicate.
func (s *stmt) writeKey(pkCols []string, pkVals []any) {
	s.writeString(" WHERE ")
	for i, col := range pkCols {
		if i > 0 {
			s.writeString(" AND ")
		}
		s.writeString(s.b.Quote(col) + " = " + s.arg(pkVals[i]))
	}
}

// SelectOptions bounds a synthesized select statement. The filter language
// is a conjunction of equality predicates only.
type SelectOptions struct {
	Filter  map[string]any
	OrderBy string // field name; empty means no ordering
	Desc    bool
	Limit   int // emitted only when > 0
	Offset  int // emitted only when > 0
}

// Select synthesizes a filtered select over all columns.
func (b *Builder) Select(table string, opts SelectOptions) (string, []any) {
	s := &stmt{b: b}
	s.writeString("SELECT * FROM " + b.Quote(table))
	s.writeFilter(opts.Filter)
	if opts.OrderBy != "" {
		s.writeString(" ORDER BY " + b.Quote(opts.OrderBy))
		if opts.Desc {
			s.writeString(" DESC")
		}
	}
	if opts.Limit > 0 {
		s.writeString(fmt.Sprintf(" LIMIT %d", opts.Limit))
	}
	if opts.Offset > 0 {
		s.writeString(fmt.Sprintf(" OFFSET %d", opts.Offset))
	}
	return s.sb.String(), s.args
}

// SelectColumns synthesizes a filtered select over an explicit column list.
func (b *Builder) SelectColumns(table string, cols []string, filter map[string]any) (string, []any) {
	s := &stmt{b: b}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = b.Quote(c)
	}
	s.writeString("SELECT " + strings.Join(quoted, ", ") + " FROM " + b.Quote(table))
	s.writeFilter(filter)
	return s.sb.String(), s.args
}

// SelectColumnsIn synthesizes a select of an explicit column list where
// col is in the given set.
func (b *Builder) SelectColumnsIn(table string, cols []string, col string, vals []any) (string, []any) {
	s := &stmt{b: b}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = b.Quote(c)
	}
	s.writeString("SELECT " + strings.Join(quoted, ", ") + " FROM " + b.Quote(table) +
		" WHERE " + b.Quote(col) + " IN (")
	for i, v := range vals {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(s.arg(v))
	}
	s.writeString(")")
	return s.sb.String(), s.args
}

// SelectIn synthesizes a select of all columns where col is in the given set.
func (b *Builder) SelectIn(table, col string, vals []any) (string, []any) {
	s := &stmt{b: b}
	s.writeString("SELECT * FROM " + b.Quote(table) + " WHERE " + b.Quote(col) + " IN (")
	for i, v := range vals {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(s.arg(v))
	}
	s.writeString(")")
	return s.sb.String(), s.args
}

// Count synthesizes a count query over the filter.
func (b *Builder) Count(table string, filter map[string]any) (string, []any) {
	s := &stmt{b: b}
	s.writeString("SELECT COUNT(*) FROM " + b.Quote(table))
	s.writeFilter(filter)
	return s.sb.String(), s.args
}

// Insert synthesizes an insert of the given columns and values, in the
// caller-supplied order. When returning is true the statement returns the
// full inserted row. An empty column list inserts a row of defaults; the
// DEFAULT VALUES form has no MySQL spelling, so that dialect gets the
// empty VALUES list instead.
func (b *Builder) Insert(table string, cols []string, vals []any, returning bool) (string, []any) {
	s := &stmt{b: b}
	if len(cols) == 0 {
		if b.dialect == dialect.MySQL {
			s.writeString("INSERT INTO " + b.Quote(table) + " () VALUES ()")
		} else {
			s.writeString("INSERT INTO " + b.Quote(table) + " DEFAULT VALUES")
			if returning {
				s.writeString(" RETURNING *")
			}
		}
		return s.sb.String(), s.args
	}
	s.writeString("INSERT INTO " + b.Quote(table) + " (")
	for i, c := range cols {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(b.Quote(c))
	}
	s.writeString(") VALUES (")
	for i, v := range vals {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(s.arg(v))
	}
	s.writeString(")")
	if returning && b.SupportsReturning() {
		s.writeString(" RETURNING *")
	}
	return s.sb.String(), s.args
}

// InsertRows synthesizes a multi-row insert of the given columns. Every
// row must have one value per column.
func (b *Builder) InsertRows(table string, cols []string, rows [][]any) (string, []any) {
	s := &stmt{b: b}
	s.writeString("INSERT INTO " + b.Quote(table) + " (")
	for i, c := range cols {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(b.Quote(c))
	}
	s.writeString(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString("(")
		for j, v := range row {
			if j > 0 {
				s.writeString(", ")
			}
			s.writeString(s.arg(v))
		}
		s.writeString(")")
	}
	return s.sb.String(), s.args
}

// DeleteWhereIn synthesizes a delete constrained by equality predicates
// plus a membership predicate on col.
func (b *Builder) DeleteWhereIn(table string, filter map[string]any, col string, vals []any) (string, []any) {
	s := &stmt{b: b}
	s.writeString("DELETE FROM " + b.Quote(table))
	s.writeFilter(filter)
	if len(filter) == 0 {
		s.writeString(" WHERE ")
	} else {
		s.writeString(" AND ")
	}
	s.writeString(b.Quote(col) + " IN (")
	for i, v := range vals {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(s.arg(v))
	}
	s.writeString(")")
	return s.sb.String(), s.args
}

// UpdateByKey synthesizes an update of the given assignments, keyed on the
// primary key. When returning is true the statement returns the full
// updated row.
func (b *Builder) UpdateByKey(table string, cols []string, vals []any, pkCols []string, pkVals []any, returning bool) (string, []any) {
	s := &stmt{b: b}
	s.writeString("UPDATE " + b.Quote(table) + " SET ")
	for i, c := range cols {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(b.Quote(c) + " = " + s.arg(vals[i]))
	}
	s.writeKey(pkCols, pkVals)
	if returning && b.SupportsReturning() {
		s.writeString(" RETURNING *")
	}
	return s.sb.String(), s.args
}

// UpdateByFilter synthesizes an update over a multi-field equality
// predicate, returning the affected identifiers for relation cascade when
// the dialect supports it.
func (b *Builder) UpdateByFilter(table string, cols []string, vals []any, filter map[string]any, pkCols []string) (string, []any) {
	s := &stmt{b: b}
	s.writeString("UPDATE " + b.Quote(table) + " SET ")
	for i, c := range cols {
		if i > 0 {
			s.writeString(", ")
		}
		s.writeString(b.Quote(c) + " = " + s.arg(vals[i]))
	}
	s.writeFilter(filter)
	if len(pkCols) > 0 && b.SupportsReturning() {
		quoted := make([]string, len(pkCols))
		for i, c := range pkCols {
			quoted[i] = b.Quote(c)
		}
		s.writeString(" RETURNING " + strings.Join(quoted, ", "))
	}
	return s.sb.String(), s.args
}

// DeleteByKey synthesizes a delete of a single row by primary key. When
// returning is true the statement returns the deleted row.
func (b *Builder) DeleteByKey(table string, pkCols []string, pkVals []any, returning bool) (string, []any) {
	s := &stmt{b: b}
	s.writeString("DELETE FROM " + b.Quote(table))
	s.writeKey(pkCols, pkVals)
	if returning && b.SupportsReturning() {
		s.writeString(" RETURNING *")
	}
	return s.sb.String(), s.args
}

// DeleteByFilter synthesizes a delete over a multi-field equality
// predicate; execution reports the affected row count.
func (b *Builder) DeleteByFilter(table string, filter map[string]any) (string, []any) {
	s := &stmt{b: b}
	s.writeString("DELETE FROM " + b.Quote(table))
	s.writeFilter(filter)
	return s.sb.String(), s.args
}
