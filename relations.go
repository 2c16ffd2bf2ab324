package loom

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/syssam/loom/dialect/sql"
	"github.com/syssam/loom/schema"
)

// resolveRelations attaches the named relations to every record, one
// batched query per relation side instead of one per record.
func (m *Model) resolveRelations(ctx context.Context, recs []Record, names []string) error {
	if len(recs) == 0 || len(names) == 0 {
		return nil
	}
	for _, name := range names {
		rel, ok := m.def.Relation(name)
		if !ok {
			return NewSchemaError(m.def.Name, "relation %q not declared", name)
		}
		var err error
		switch rel.Kind {
		case schema.BelongsTo:
			err = m.resolveBelongsTo(ctx, recs, name, rel)
		case schema.HasOne, schema.HasMany:
			err = m.resolveHas(ctx, recs, name, rel)
		case schema.ManyToMany:
			err = m.resolveManyToMany(ctx, recs, name, rel)
		default:
			err = NewSchemaError(m.def.Name, "relation %q has unknown kind %q", name, rel.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) resolveBelongsTo(ctx context.Context, recs []Record, name string, rel *schema.Relation) error {
	target, err := m.client.Model(rel.Target)
	if err != nil {
		return err
	}
	tpk, err := target.pk()
	if err != nil {
		return err
	}
	keys := distinct(recs, rel.ForeignKey)
	if len(keys) == 0 {
		for _, rec := range recs {
			rec[name] = nil
		}
		return nil
	}
	query, args := m.b().SelectIn(rel.Target, tpk, keys)
	parents, err := target.queryRecords(ctx, "resolve:"+name, query, args)
	if err != nil {
		return err
	}
	byKey := make(map[string]Record, len(parents))
	for _, p := range parents {
		byKey[keyString(p[tpk])] = p
	}
	for _, rec := range recs {
		if p, ok := byKey[keyString(rec[rel.ForeignKey])]; ok {
			rec[name] = p
		} else {
			rec[name] = nil
		}
	}
	return nil
}

func (m *Model) resolveHas(ctx context.Context, recs []Record, name string, rel *schema.Relation) error {
	target, err := m.client.Model(rel.Target)
	if err != nil {
		return err
	}
	pk, err := m.pk()
	if err != nil {
		return err
	}
	keys := distinct(recs, pk)
	var children []Record
	if len(keys) > 0 {
		query, args := m.b().SelectIn(rel.Target, rel.ForeignKey, keys)
		children, err = target.queryRecords(ctx, "resolve:"+name, query, args)
		if err != nil {
			return err
		}
	}
	grouped := make(map[string][]Record, len(recs))
	for _, c := range children {
		k := keyString(c[rel.ForeignKey])
		grouped[k] = append(grouped[k], c)
	}
	for _, rec := range recs {
		group := grouped[keyString(rec[pk])]
		if rel.Kind == schema.HasOne {
			if len(group) > 0 {
				rec[name] = group[0]
			} else {
				rec[name] = nil
			}
			continue
		}
		if group == nil {
			group = []Record{}
		}
		rec[name] = group
	}
	return nil
}

func (m *Model) resolveManyToMany(ctx context.Context, recs []Record, name string, rel *schema.Relation) error {
	if rel.JunctionTable == "" || rel.RelatedKey == "" {
		return NewSchemaError(m.def.Name, "relation %q is missing junction table or related key", name)
	}
	target, err := m.client.Model(rel.Target)
	if err != nil {
		return err
	}
	tpk, err := target.pk()
	if err != nil {
		return err
	}
	pk, err := m.pk()
	if err != nil {
		return err
	}

	keys := distinct(recs, pk)
	links := []Record{}
	if len(keys) > 0 {
		query, args := m.b().SelectColumnsIn(rel.JunctionTable, []string{rel.ForeignKey, rel.RelatedKey}, rel.ForeignKey, keys)
		links, err = m.rawRecords(ctx, "resolve:"+name, query, args)
		if err != nil {
			return err
		}
	}

	relatedKeys := make([]any, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		v := link[rel.RelatedKey]
		if v == nil || seen[keyString(v)] {
			continue
		}
		seen[keyString(v)] = true
		relatedKeys = append(relatedKeys, v)
	}

	byKey := make(map[string]Record, len(relatedKeys))
	if len(relatedKeys) > 0 {
		query, args := m.b().SelectIn(rel.Target, tpk, relatedKeys)
		related, err := target.queryRecords(ctx, "resolve:"+name, query, args)
		if err != nil {
			return err
		}
		for _, r := range related {
			byKey[keyString(r[tpk])] = r
		}
	}

	grouped := make(map[string][]Record, len(recs))
	for _, link := range links {
		if r, ok := byKey[keyString(link[rel.RelatedKey])]; ok {
			k := keyString(link[rel.ForeignKey])
			grouped[k] = append(grouped[k], r)
		}
	}
	for _, rec := range recs {
		group := grouped[keyString(rec[pk])]
		if group == nil {
			group = []Record{}
		}
		rec[name] = group
	}
	return nil
}

// reconcileManyToMany brings the junction rows for one record to the
// desired related-key set by incremental diff: missing links are inserted
// in one statement, stale links deleted in one statement, and unchanged
// links are never rewritten.
func (m *Model) reconcileManyToMany(ctx context.Context, name string, rel *schema.Relation, key any, desired []any) error {
	if rel.Kind != schema.ManyToMany {
		return NewSchemaError(m.def.Name, "relation %q is not many-to-many", name)
	}
	if rel.JunctionTable == "" || rel.RelatedKey == "" {
		return NewSchemaError(m.def.Name, "relation %q is missing junction table or related key", name)
	}

	query, args := m.b().SelectColumns(rel.JunctionTable, []string{rel.RelatedKey}, map[string]any{rel.ForeignKey: key})
	links, err := m.rawRecords(ctx, "reconcile:"+name, query, args)
	if err != nil {
		return err
	}
	current := make(map[string]any, len(links))
	for _, link := range links {
		v := link[rel.RelatedKey]
		current[keyString(v)] = v
	}

	want := make(map[string]any, len(desired))
	var adds []any
	for _, v := range desired {
		k := keyString(v)
		if _, dup := want[k]; dup {
			continue
		}
		want[k] = v
		if _, ok := current[k]; !ok {
			adds = append(adds, v)
		}
	}
	var removes []any
	for k, v := range current {
		if _, ok := want[k]; !ok {
			removes = append(removes, v)
		}
	}
	sort.Slice(removes, func(i, j int) bool { return keyString(removes[i]) < keyString(removes[j]) })

	m.client.log.Debug("reconcile links",
		zap.String("table", m.def.Name),
		zap.String("relation", name),
		zap.Int("add", len(adds)),
		zap.Int("remove", len(removes)))

	if len(adds) > 0 {
		rows := make([][]any, len(adds))
		for i, v := range adds {
			rows[i] = []any{key, v}
		}
		query, args := m.b().InsertRows(rel.JunctionTable, []string{rel.ForeignKey, rel.RelatedKey}, rows)
		if err := m.conn().Exec(ctx, query, args, nil); err != nil {
			return NewMutationError(rel.JunctionTable, "link", err)
		}
	}
	if len(removes) > 0 {
		query, args := m.b().DeleteWhereIn(rel.JunctionTable, map[string]any{rel.ForeignKey: key}, rel.RelatedKey, removes)
		if err := m.conn().Exec(ctx, query, args, nil); err != nil {
			return NewMutationError(rel.JunctionTable, "unlink", err)
		}
	}
	return nil
}

// rawRecords runs a query whose columns are not bound to this table's
// definition, such as junction-table reads.
func (m *Model) rawRecords(ctx context.Context, op, query string, args []any) ([]Record, error) {
	var rows sql.Rows
	if err := m.conn().Query(ctx, query, args, &rows); err != nil {
		return nil, NewQueryError(m.def.Name, op, err)
	}
	defer rows.Close()
	recs, err := scanRecords(&rows, nil)
	if err != nil {
		return nil, NewQueryError(m.def.Name, op, err)
	}
	return recs, nil
}

// distinct collects the distinct non-nil values of field across records.
func distinct(recs []Record, field string) []any {
	seen := make(map[string]bool, len(recs))
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		k := keyString(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// keyString normalizes a key value for set membership, so an int64 key
// from the driver matches the int the caller supplied.
func keyString(v any) string {
	return fmt.Sprint(v)
}
