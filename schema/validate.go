package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateTable validates a single table definition: every field referenced
// by the required, optional and primary-key sets must exist in Fields, field
// names must be unique and type tags must be known.
func ValidateTable(t *TableDefinition) *ValidationResult {
	result := &ValidationResult{}

	names := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if names[f.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  f.Name,
				Message: "duplicate field name",
			})
		}
		names[f.Name] = true
		if !f.Type.Valid() {
			// Unknown tags degrade to a generic text type at statement
			// synthesis; surface them as warnings, not errors.
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   t.Name,
				Column:  f.Name,
				Message: fmt.Sprintf("unknown type tag %q, will map to text", f.Type),
			})
		}
	}

	for _, set := range []struct {
		label  string
		fields []string
	}{
		{"required", t.Required},
		{"optional", t.Optional},
		{"primaryKey", t.PrimaryKey},
	} {
		for _, name := range set.fields {
			if !names[name] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Column:  name,
					Message: fmt.Sprintf("%s references undeclared field", set.label),
				})
			}
		}
	}

	if len(t.PrimaryKey) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name,
			Message: "table has no primary key",
		})
	}

	return result
}

// validateRelations checks every relation of t against the full schema.
func validateRelations(s *Schema, t *TableDefinition, result *ValidationResult) {
	for name, rel := range t.Relations {
		if !rel.Kind.Valid() {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("relation %q has unknown kind %q", name, rel.Kind),
			})
			continue
		}
		target, ok := s.Table(rel.Target)
		if !ok {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("relation %q references non-existent table %q", name, rel.Target),
			})
			continue
		}
		if rel.ForeignKey == "" {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("relation %q has no foreign key", name),
			})
		}
		switch rel.Kind {
		case BelongsTo:
			// The foreign key lives on this table.
			if rel.ForeignKey != "" && !t.HasField(rel.ForeignKey) {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Column:  rel.ForeignKey,
					Message: fmt.Sprintf("relation %q foreign key is not a declared field", name),
				})
			}
			if len(target.PrimaryKey) != 1 {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("relation %q target %q must have a single-column primary key", name, rel.Target),
				})
			}
		case HasMany, HasOne:
			// The foreign key lives on the target table.
			if rel.ForeignKey != "" && !target.HasField(rel.ForeignKey) {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("relation %q foreign key %q is not declared on %q", name, rel.ForeignKey, rel.Target),
				})
			}
		case ManyToMany:
			// Missing junction configuration is reported as a warning here
			// and fails fast at resolution time, never silently no-ops.
			if rel.JunctionTable == "" || rel.RelatedKey == "" {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("relation %q is missing junction table or related key and will fail at resolution", name),
				})
			}
		}
	}
}

// Validate validates all tables in a schema, including cross-table
// relation references.
func Validate(s *Schema) *ValidationResult {
	result := &ValidationResult{}
	for _, t := range s.Tables() {
		tr := ValidateTable(t)
		result.Errors = append(result.Errors, tr.Errors...)
		result.Warnings = append(result.Warnings, tr.Warnings...)
	}
	for _, t := range s.Tables() {
		validateRelations(s, t, result)
	}
	return result
}
