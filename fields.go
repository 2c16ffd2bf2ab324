package loom

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/loom/schema"
)

// timestampDefaulted names the timestamp fields that receive the current
// time when absent or nil on a write.
var timestampDefaulted = map[string]bool{
	"createdAt":  true,
	"updatedAt":  true,
	"created_at": true,
	"updated_at": true,
}

// updatedAtNames names the fields refreshed on every update.
var updatedAtNames = []string{"updatedAt", "updated_at"}

// fieldProcessor normalizes write payloads against one table definition:
// it rejects undeclared fields, checks the required set, fills generated
// defaults and coerces values to their declared types.
type fieldProcessor struct {
	def *schema.TableDefinition
}

// prepareCreate validates and processes a create payload. It sweeps every
// declared field: serial keys are left to the backing store, uuid primary
// keys and conventional timestamp fields are defaulted when absent, and
// supplied values are coerced. Columns come back in declaration order.
func (p fieldProcessor) prepareCreate(data Record) (cols []string, vals []any, processed Record, err error) {
	if invalid := p.undeclared(data); len(invalid) > 0 {
		return nil, nil, nil, &ValidationError{Table: p.def.Name, Op: "create", Invalid: invalid}
	}

	processed = make(Record, len(p.def.Fields))
	for _, f := range p.def.Fields {
		v, present := data[f.Name]
		switch {
		case f.Type == schema.TypeSerial && (!present || v == nil):
			// Generated by the backing store.
			continue
		case f.Type == schema.TypeUUID && (!present || v == nil) && p.def.IsPrimaryKey(f.Name):
			v = uuid.NewString()
		case f.Type == schema.TypeTimestamp && (!present || v == nil) && timestampDefaulted[f.Name]:
			v = time.Now().UTC()
		case !present:
			continue
		}
		v, cerr := coerce(f.Type, v)
		if cerr != nil {
			return nil, nil, nil, &ValidationError{Table: p.def.Name, Op: "create", Invalid: []string{f.Name}}
		}
		processed[f.Name] = v
		cols = append(cols, f.Name)
		vals = append(vals, v)
	}

	var missing []string
	for _, name := range p.def.Required {
		if t, _ := p.def.FieldType(name); t == schema.TypeSerial {
			continue
		}
		if v, ok := processed[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, nil, nil, &ValidationError{Table: p.def.Name, Op: "create", Missing: missing}
	}
	return cols, vals, processed, nil
}

// prepareUpdate validates and processes an update payload. Only supplied
// fields are touched: serial fields are dropped, a nil timestamp means
// "stamp now", and a declared updatedAt field is refreshed whether or not
// the caller supplied it. Columns come back in sorted order.
func (p fieldProcessor) prepareUpdate(data Record) (cols []string, vals []any, err error) {
	if invalid := p.undeclared(data); len(invalid) > 0 {
		return nil, nil, &ValidationError{Table: p.def.Name, Op: "update", Invalid: invalid}
	}

	processed := make(Record, len(data)+1)
	for name, v := range data {
		t, _ := p.def.FieldType(name)
		if t == schema.TypeSerial {
			continue
		}
		if t == schema.TypeTimestamp && v == nil {
			v = time.Now().UTC()
		}
		v, cerr := coerce(t, v)
		if cerr != nil {
			return nil, nil, &ValidationError{Table: p.def.Name, Op: "update", Invalid: []string{name}}
		}
		processed[name] = v
	}

	for _, name := range updatedAtNames {
		if _, supplied := processed[name]; supplied {
			continue
		}
		if t, ok := p.def.FieldType(name); ok && t == schema.TypeTimestamp {
			processed[name] = time.Now().UTC()
		}
	}

	cols = make([]string, 0, len(processed))
	for name := range processed {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	vals = make([]any, len(cols))
	for i, name := range cols {
		vals[i] = processed[name]
	}
	return cols, vals, nil
}

// undeclared returns the sorted payload keys that are not declared fields.
func (p fieldProcessor) undeclared(data Record) []string {
	var invalid []string
	for name := range data {
		if !p.def.HasField(name) {
			invalid = append(invalid, name)
		}
	}
	sort.Strings(invalid)
	return invalid
}

// coerce converts a supplied value to the representation expected for its
// declared type. JSON-decoded payloads arrive with float64 numbers and
// untyped maps, so integer fields accept integral floats and numeric
// strings, and json fields accept any value that marshals.
func coerce(t schema.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.TypeInt, schema.TypeSerial:
		switch n := v.(type) {
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, err
			}
			return i, nil
		}
	case schema.TypeFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case schema.TypeJSON:
		switch v.(type) {
		case string, []byte:
			return v, nil
		default:
			buf, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return string(buf), nil
		}
	}
	return v, nil
}
