package loom

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/loom/dialect"
	"github.com/syssam/loom/dialect/sql"
	"github.com/syssam/loom/schema"
	"github.com/syssam/loom/sqlgen"
)

// FindOptions bounds a multi-record read. The filter is a conjunction of
// equality predicates over declared fields.
type FindOptions struct {
	Filter  map[string]any
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Page is one page of a paginated read.
type Page struct {
	Data       []Record
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Model is the accessor bound to one schema-declared table. Accessors are
// cheap to construct and safe for concurrent use; all state lives on the
// shared Client.
type Model struct {
	client *Client
	def    *schema.TableDefinition
}

// Name returns the bound table name.
func (m *Model) Name() string { return m.def.Name }

func (m *Model) b() *sqlgen.Builder { return m.client.builder }

func (m *Model) conn() dialect.ExecQuerier { return m.client.conn }

// pk returns the single primary-key column, or a SchemaError when the
// table has no key or a composite one.
func (m *Model) pk() (string, error) {
	if len(m.def.PrimaryKey) != 1 {
		return "", NewSchemaError(m.def.Name, "operation requires a single-column primary key")
	}
	return m.def.PrimaryKey[0], nil
}

// validateFilter rejects filter keys that are not declared fields.
func (m *Model) validateFilter(op string, filter map[string]any) error {
	var invalid []string
	for name := range filter {
		if !m.def.HasField(name) {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &ValidationError{Table: m.def.Name, Op: op, Invalid: invalid}
	}
	return nil
}

// Create validates and inserts a single record, returning the stored row
// with all generated values.
func (m *Model) Create(ctx context.Context, data Record) (Record, error) {
	return m.CreateWithRelations(ctx, data, nil)
}

// CreateWithRelations inserts a record together with its relation
// payloads in one transaction: BelongsTo targets are created first and
// their keys written to the record, HasOne/HasMany children are created
// pointing back at the new row, and ManyToMany payloads are linked
// through the junction table. Either everything lands or nothing does.
func (m *Model) CreateWithRelations(ctx context.Context, data Record, relations RelatedData) (Record, error) {
	if err := m.checkRelations(relations); err != nil {
		return nil, err
	}
	var created Record
	err := m.client.inTransaction(ctx, func(tx *Client) error {
		tm := &Model{client: tx, def: m.def}
		var err error
		created, err = tm.createTx(ctx, data, relations)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.invalidateTouched(ctx, relations)
	return created, nil
}

func (m *Model) createTx(ctx context.Context, data Record, relations RelatedData) (Record, error) {
	data = cloneRecord(data)

	// Parents first, so their keys can be written to this record.
	for _, name := range relationNames(relations) {
		rel := m.def.Relations[name]
		if rel.Kind != schema.BelongsTo {
			continue
		}
		if err := m.applyBelongsTo(ctx, data, name, rel, relations[name]); err != nil {
			return nil, err
		}
	}

	proc := fieldProcessor{def: m.def}
	cols, vals, processed, err := proc.prepareCreate(data)
	if err != nil {
		return nil, err
	}

	m.client.log.Debug("create", zap.String("table", m.def.Name))
	var created Record
	if m.b().SupportsReturning() {
		query, args := m.b().Insert(m.def.Name, cols, vals, true)
		created, err = m.mutateOne(ctx, "create", query, args)
		if err != nil {
			return nil, err
		}
	} else {
		query, args := m.b().Insert(m.def.Name, cols, vals, false)
		var res sql.Result
		if err := m.conn().Exec(ctx, query, args, &res); err != nil {
			return nil, NewMutationError(m.def.Name, "create", err)
		}
		pk, err := m.pk()
		if err != nil {
			return nil, err
		}
		key, ok := processed[pk]
		if !ok {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, NewMutationError(m.def.Name, "create", err)
			}
			key = id
		}
		created, err = m.findByKey(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	// Children and links after the row exists.
	for _, name := range relationNames(relations) {
		rel := m.def.Relations[name]
		if rel.Kind == schema.BelongsTo {
			continue
		}
		pk, err := m.pk()
		if err != nil {
			return nil, err
		}
		switch rel.Kind {
		case schema.HasOne:
			payload, ok := asRecord(relations[name])
			if !ok {
				return nil, NewSchemaError(m.def.Name, "relation %q payload must be a record", name)
			}
			if err := m.upsertChild(ctx, rel, created[pk], payload); err != nil {
				return nil, err
			}
		case schema.HasMany:
			payloads, ok := asRecords(relations[name])
			if !ok {
				return nil, NewSchemaError(m.def.Name, "relation %q payload must be a list of records", name)
			}
			for _, payload := range payloads {
				if err := m.upsertChild(ctx, rel, created[pk], payload); err != nil {
					return nil, err
				}
			}
		case schema.ManyToMany:
			ids, ok := asList(relations[name])
			if !ok {
				return nil, NewSchemaError(m.def.Name, "relation %q payload must be a list of keys", name)
			}
			if err := m.reconcileManyToMany(ctx, name, rel, created[pk], ids); err != nil {
				return nil, err
			}
		}
	}
	return created, nil
}

// upsertChild writes one HasOne/HasMany payload against the related
// table. A payload carrying the target's primary key updates that row in
// place, repointing its foreign key at this record; any other payload
// creates a new child row.
func (m *Model) upsertChild(ctx context.Context, rel *schema.Relation, key any, payload Record) error {
	target, err := m.client.Model(rel.Target)
	if err != nil {
		return err
	}
	tpk, err := target.pk()
	if err != nil {
		return err
	}
	payload = cloneRecord(payload)
	payload[rel.ForeignKey] = key
	if id, ok := payload[tpk]; ok && id != nil {
		delete(payload, tpk)
		_, err = target.updateTx(ctx, id, payload, nil)
		return err
	}
	_, err = target.createTx(ctx, payload, nil)
	return err
}

// applyBelongsTo writes one BelongsTo payload into the record's
// foreign-key column. A record payload creates the parent row first and
// links to it; a scalar payload is taken as the key of an existing
// parent.
func (m *Model) applyBelongsTo(ctx context.Context, data Record, name string, rel *schema.Relation, payload any) error {
	if parent, ok := asRecord(payload); ok {
		target, err := m.client.Model(rel.Target)
		if err != nil {
			return err
		}
		created, err := target.createTx(ctx, parent, nil)
		if err != nil {
			return err
		}
		tpk, err := target.pk()
		if err != nil {
			return err
		}
		data[rel.ForeignKey] = created[tpk]
		return nil
	}
	if payload == nil {
		return NewSchemaError(m.def.Name, "relation %q payload must be a record or a parent key", name)
	}
	if _, ok := asList(payload); ok {
		return NewSchemaError(m.def.Name, "relation %q payload must be a record or a parent key", name)
	}
	data[rel.ForeignKey] = payload
	return nil
}

// FindAll returns every record matching the options.
func (m *Model) FindAll(ctx context.Context, opts FindOptions) ([]Record, error) {
	if err := m.validateFilter("findAll", opts.Filter); err != nil {
		return nil, err
	}
	if opts.OrderBy != "" && !m.def.HasField(opts.OrderBy) {
		return nil, &ValidationError{Table: m.def.Name, Op: "findAll", Invalid: []string{opts.OrderBy}}
	}
	query, args := m.b().Select(m.def.Name, sqlgen.SelectOptions{
		Filter:  opts.Filter,
		OrderBy: opts.OrderBy,
		Desc:    opts.Desc,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
	return m.queryRecords(ctx, "findAll", query, args)
}

// FindByID returns the record with the given key, or nil when absent.
// Positive results are served from the cache when one is installed.
func (m *Model) FindByID(ctx context.Context, id any) (Record, error) {
	pk, err := m.pk()
	if err != nil {
		return nil, err
	}
	key, _ := CacheKey(m.def.Name, "findById", id)
	if rec, ok := m.cached(ctx, key); ok {
		return rec, nil
	}
	query, args := m.b().Select(m.def.Name, sqlgen.SelectOptions{
		Filter: map[string]any{pk: id},
		Limit:  1,
	})
	rec, err := m.queryOne(ctx, "findById", query, args)
	if err != nil {
		return nil, err
	}
	m.cacheStore(ctx, key, rec)
	return rec, nil
}

// FindOne returns the first record matching the filter, or nil when none
// does. Positive results are served from the cache when one is installed.
func (m *Model) FindOne(ctx context.Context, filter map[string]any) (Record, error) {
	if err := m.validateFilter("findOne", filter); err != nil {
		return nil, err
	}
	key, _ := CacheKey(m.def.Name, "findOne", flattenFilter(filter)...)
	if rec, ok := m.cached(ctx, key); ok {
		return rec, nil
	}
	query, args := m.b().Select(m.def.Name, sqlgen.SelectOptions{Filter: filter, Limit: 1})
	rec, err := m.queryOne(ctx, "findOne", query, args)
	if err != nil {
		return nil, err
	}
	m.cacheStore(ctx, key, rec)
	return rec, nil
}

// FindAllWithRelations returns matching records with the named relations
// attached under their relation names. Related rows are fetched in one
// batched query per relation, not one per record.
func (m *Model) FindAllWithRelations(ctx context.Context, opts FindOptions, relationNames []string) ([]Record, error) {
	recs, err := m.FindAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := m.resolveRelations(ctx, recs, relationNames); err != nil {
		return nil, err
	}
	return recs, nil
}

// Update applies the given fields to the record with the given key and
// returns the stored row. A missing record is a NotFoundError.
func (m *Model) Update(ctx context.Context, id any, data Record) (Record, error) {
	return m.UpdateWithRelations(ctx, id, data, nil)
}

// UpdateWithRelations applies field changes together with relation
// payloads in one transaction: BelongsTo payloads repoint the record's
// foreign key (creating the parent first for record payloads),
// HasOne/HasMany payloads create or update child rows pointing at the
// record, and ManyToMany payloads replace the desired link set by
// incremental diff.
func (m *Model) UpdateWithRelations(ctx context.Context, id any, data Record, relations RelatedData) (Record, error) {
	if err := m.checkRelations(relations); err != nil {
		return nil, err
	}
	var updated Record
	apply := func(tx *Client) error {
		tm := &Model{client: tx, def: m.def}
		var err error
		updated, err = tm.updateTx(ctx, id, data, relations)
		return err
	}
	var err error
	if len(relations) > 0 {
		err = m.client.inTransaction(ctx, apply)
	} else {
		err = apply(m.client)
	}
	if err != nil {
		return nil, err
	}
	m.invalidateTouched(ctx, relations)
	return updated, nil
}

func (m *Model) updateTx(ctx context.Context, id any, data Record, relations RelatedData) (Record, error) {
	pk, err := m.pk()
	if err != nil {
		return nil, err
	}
	data = cloneRecord(data)

	// Parents first, so repointed keys land in this update's write set.
	for _, name := range relationNames(relations) {
		rel := m.def.Relations[name]
		if rel.Kind != schema.BelongsTo {
			continue
		}
		if err := m.applyBelongsTo(ctx, data, name, rel, relations[name]); err != nil {
			return nil, err
		}
	}

	proc := fieldProcessor{def: m.def}
	cols, vals, err := proc.prepareUpdate(data)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 && len(relations) == 0 {
		return nil, &ValidationError{Table: m.def.Name, Op: "update"}
	}

	m.client.log.Debug("update", zap.String("table", m.def.Name))
	var updated Record
	switch {
	case len(cols) == 0:
		updated, err = m.findByKey(ctx, id)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, NewNotFoundError(m.def.Name, id)
		}
	case m.b().SupportsReturning():
		query, args := m.b().UpdateByKey(m.def.Name, cols, vals, []string{pk}, []any{id}, true)
		updated, err = m.mutateOne(ctx, "update", query, args)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, NewNotFoundError(m.def.Name, id)
		}
	default:
		existing, err := m.findByKey(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, NewNotFoundError(m.def.Name, id)
		}
		query, args := m.b().UpdateByKey(m.def.Name, cols, vals, []string{pk}, []any{id}, false)
		if err := m.conn().Exec(ctx, query, args, nil); err != nil {
			return nil, NewMutationError(m.def.Name, "update", err)
		}
		updated, err = m.findByKey(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	// Children and links after the row is known to exist.
	for _, name := range relationNames(relations) {
		rel := m.def.Relations[name]
		switch rel.Kind {
		case schema.HasOne:
			payload, ok := asRecord(relations[name])
			if !ok {
				return nil, NewSchemaError(m.def.Name, "relation %q payload must be a record", name)
			}
			if err := m.upsertChild(ctx, rel, updated[pk], payload); err != nil {
				return nil, err
			}
		case schema.HasMany:
			payloads, ok := asRecords(relations[name])
			if !ok {
				return nil, NewSchemaError(m.def.Name, "relation %q payload must be a list of records", name)
			}
			for _, payload := range payloads {
				if err := m.upsertChild(ctx, rel, updated[pk], payload); err != nil {
					return nil, err
				}
			}
		case schema.ManyToMany:
			ids, ok := asList(relations[name])
			if !ok {
				return nil, NewSchemaError(m.def.Name, "relation %q payload must be a list of keys", name)
			}
			if err := m.reconcileManyToMany(ctx, name, rel, updated[pk], ids); err != nil {
				return nil, err
			}
		}
	}
	return updated, nil
}

// UpdateMany applies the given fields to every record matching the filter
// and returns the number of records affected.
func (m *Model) UpdateMany(ctx context.Context, filter map[string]any, data Record) (int, error) {
	if err := m.validateFilter("updateMany", filter); err != nil {
		return 0, err
	}
	proc := fieldProcessor{def: m.def}
	cols, vals, err := proc.prepareUpdate(data)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, &ValidationError{Table: m.def.Name, Op: "updateMany"}
	}

	m.client.log.Debug("update many", zap.String("table", m.def.Name))
	var affected int
	if m.b().SupportsReturning() && len(m.def.PrimaryKey) > 0 {
		query, args := m.b().UpdateByFilter(m.def.Name, cols, vals, filter, m.def.PrimaryKey)
		var rows sql.Rows
		if err := m.conn().Query(ctx, query, args, &rows); err != nil {
			return 0, NewMutationError(m.def.Name, "updateMany", err)
		}
		defer rows.Close()
		recs, err := scanRecords(&rows, nil)
		if err != nil {
			return 0, NewMutationError(m.def.Name, "updateMany", err)
		}
		affected = len(recs)
	} else {
		query, args := m.b().UpdateByFilter(m.def.Name, cols, vals, filter, nil)
		var res sql.Result
		if err := m.conn().Exec(ctx, query, args, &res); err != nil {
			return 0, NewMutationError(m.def.Name, "updateMany", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, NewMutationError(m.def.Name, "updateMany", err)
		}
		affected = int(n)
	}
	m.client.invalidate(ctx, m.def.Name)
	return affected, nil
}

// Delete removes the record with the given key and returns it. A missing
// record returns nil without error.
func (m *Model) Delete(ctx context.Context, id any) (Record, error) {
	pk, err := m.pk()
	if err != nil {
		return nil, err
	}
	m.client.log.Debug("delete", zap.String("table", m.def.Name))
	var deleted Record
	if m.b().SupportsReturning() {
		query, args := m.b().DeleteByKey(m.def.Name, []string{pk}, []any{id}, true)
		deleted, err = m.mutateOne(ctx, "delete", query, args)
		if err != nil {
			return nil, err
		}
	} else {
		deleted, err = m.findByKey(ctx, id)
		if err != nil {
			return nil, err
		}
		if deleted == nil {
			return nil, nil
		}
		query, args := m.b().DeleteByKey(m.def.Name, []string{pk}, []any{id}, false)
		if err := m.conn().Exec(ctx, query, args, nil); err != nil {
			return nil, NewMutationError(m.def.Name, "delete", err)
		}
	}
	if deleted != nil {
		m.client.invalidate(ctx, m.def.Name)
	}
	return deleted, nil
}

// DeleteMany removes every record matching the filter and returns the
// number removed.
func (m *Model) DeleteMany(ctx context.Context, filter map[string]any) (int, error) {
	if err := m.validateFilter("deleteMany", filter); err != nil {
		return 0, err
	}
	m.client.log.Debug("delete many", zap.String("table", m.def.Name))
	query, args := m.b().DeleteByFilter(m.def.Name, filter)
	var res sql.Result
	if err := m.conn().Exec(ctx, query, args, &res); err != nil {
		return 0, NewMutationError(m.def.Name, "deleteMany", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewMutationError(m.def.Name, "deleteMany", err)
	}
	m.client.invalidate(ctx, m.def.Name)
	return int(n), nil
}

// deletedAtField returns the declared soft-delete marker field.
func (m *Model) deletedAtField() (string, error) {
	for _, name := range []string{"deletedAt", "deleted_at"} {
		if t, ok := m.def.FieldType(name); ok && t == schema.TypeTimestamp {
			return name, nil
		}
	}
	return "", NewSchemaError(m.def.Name, "soft delete requires a declared deletedAt timestamp field")
}

// SoftDelete stamps the record's deletedAt marker instead of removing the
// row. A table without a declared marker field is a SchemaError.
func (m *Model) SoftDelete(ctx context.Context, id any) (Record, error) {
	field, err := m.deletedAtField()
	if err != nil {
		return nil, err
	}
	return m.Update(ctx, id, Record{field: time.Now().UTC()})
}

// Restore clears the record's deletedAt marker.
func (m *Model) Restore(ctx context.Context, id any) (Record, error) {
	field, err := m.deletedAtField()
	if err != nil {
		return nil, err
	}
	pk, err := m.pk()
	if err != nil {
		return nil, err
	}
	cols, vals := []string{field}, []any{nil}
	for _, name := range updatedAtNames {
		if t, ok := m.def.FieldType(name); ok && t == schema.TypeTimestamp {
			cols = append(cols, name)
			vals = append(vals, time.Now().UTC())
			break
		}
	}

	var restored Record
	if m.b().SupportsReturning() {
		query, args := m.b().UpdateByKey(m.def.Name, cols, vals, []string{pk}, []any{id}, true)
		restored, err = m.mutateOne(ctx, "restore", query, args)
		if err != nil {
			return nil, err
		}
	} else {
		existing, err := m.findByKey(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			query, args := m.b().UpdateByKey(m.def.Name, cols, vals, []string{pk}, []any{id}, false)
			if err := m.conn().Exec(ctx, query, args, nil); err != nil {
				return nil, NewMutationError(m.def.Name, "restore", err)
			}
			restored, err = m.findByKey(ctx, id)
			if err != nil {
				return nil, err
			}
		}
	}
	if restored == nil {
		return nil, NewNotFoundError(m.def.Name, id)
	}
	m.client.invalidate(ctx, m.def.Name)
	return restored, nil
}

// CreateIndex creates an index on the named field. Kind "unique" creates
// a unique index; any other kind a plain one.
func (m *Model) CreateIndex(ctx context.Context, field, kind string) error {
	if !m.def.HasField(field) {
		return NewSchemaError(m.def.Name, "index field %q not declared", field)
	}
	stmt := m.b().CreateIndex(m.def.Name, field, kind)
	if err := m.conn().Exec(ctx, stmt, []any{}, nil); err != nil {
		return NewMutationError(m.def.Name, "createIndex", err)
	}
	return nil
}

// DropIndex drops the index previously created on the named field.
func (m *Model) DropIndex(ctx context.Context, field string) error {
	stmt := m.b().DropIndex(m.def.Name, field)
	if err := m.conn().Exec(ctx, stmt, []any{}, nil); err != nil {
		return NewMutationError(m.def.Name, "dropIndex", err)
	}
	return nil
}

// Paginate returns one page of matching records together with the total
// match count. The data and count queries run concurrently. Pages are
// one-based; out-of-range pages return empty data with the true total.
func (m *Model) Paginate(ctx context.Context, page, pageSize int, filter map[string]any) (*Page, error) {
	if err := m.validateFilter("paginate", filter); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	orderBy := ""
	if len(m.def.PrimaryKey) == 1 {
		orderBy = m.def.PrimaryKey[0]
	}

	var (
		recs  []Record
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		query, args := m.b().Select(m.def.Name, sqlgen.SelectOptions{
			Filter:  filter,
			OrderBy: orderBy,
			Limit:   pageSize,
			Offset:  (page - 1) * pageSize,
		})
		var err error
		recs, err = m.queryRecords(gctx, "paginate", query, args)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = m.count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Page{
		Data:       recs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Query runs a raw parameterized query and returns the rows as records.
// It is an escape hatch; statement text is passed through untouched.
func (m *Model) Query(ctx context.Context, query string, args ...any) ([]Record, error) {
	var rows sql.Rows
	if err := m.conn().Query(ctx, query, args, &rows); err != nil {
		return nil, NewQueryError(m.def.Name, "query", err)
	}
	defer rows.Close()
	recs, err := scanRecords(&rows, nil)
	if err != nil {
		return nil, NewQueryError(m.def.Name, "query", err)
	}
	return recs, nil
}

// count returns the number of records matching the filter.
func (m *Model) count(ctx context.Context, filter map[string]any) (int, error) {
	query, args := m.b().Count(m.def.Name, filter)
	var rows sql.Rows
	if err := m.conn().Query(ctx, query, args, &rows); err != nil {
		return 0, NewQueryError(m.def.Name, "count", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, NewQueryError(m.def.Name, "count", rows.Err())
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, NewQueryError(m.def.Name, "count", err)
	}
	return int(n), nil
}

// findByKey reads a single row by primary key, bypassing the cache.
func (m *Model) findByKey(ctx context.Context, id any) (Record, error) {
	pk, err := m.pk()
	if err != nil {
		return nil, err
	}
	query, args := m.b().Select(m.def.Name, sqlgen.SelectOptions{
		Filter: map[string]any{pk: id},
		Limit:  1,
	})
	return m.queryOne(ctx, "findByKey", query, args)
}

func (m *Model) queryRecords(ctx context.Context, op, query string, args []any) ([]Record, error) {
	var rows sql.Rows
	if err := m.conn().Query(ctx, query, args, &rows); err != nil {
		return nil, NewQueryError(m.def.Name, op, err)
	}
	defer rows.Close()
	recs, err := scanRecords(&rows, m.def)
	if err != nil {
		return nil, NewQueryError(m.def.Name, op, err)
	}
	return recs, nil
}

// mutateOne runs a write statement that returns the affected row and
// wraps failures as mutation errors.
func (m *Model) mutateOne(ctx context.Context, op, query string, args []any) (Record, error) {
	var rows sql.Rows
	if err := m.conn().Query(ctx, query, args, &rows); err != nil {
		return nil, NewMutationError(m.def.Name, op, err)
	}
	defer rows.Close()
	recs, err := scanRecords(&rows, m.def)
	if err != nil {
		return nil, NewMutationError(m.def.Name, op, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func (m *Model) queryOne(ctx context.Context, op, query string, args []any) (Record, error) {
	recs, err := m.queryRecords(ctx, op, query, args)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// cached returns the decoded record stored under key, if any.
func (m *Model) cached(ctx context.Context, key string) (Record, bool) {
	if m.client.cache == nil || m.client.inTx {
		return nil, false
	}
	buf, ok := m.client.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	rec, err := decodeRecord(buf)
	if err != nil {
		m.client.cache.Delete(ctx, key)
		return nil, false
	}
	return rec, true
}

// cacheStore stores a positive read result; absence is never cached.
func (m *Model) cacheStore(ctx context.Context, key string, rec Record) {
	if m.client.cache == nil || m.client.inTx || rec == nil {
		return
	}
	buf, err := encodeRecord(rec)
	if err != nil {
		return
	}
	m.client.cache.Set(ctx, key, buf, m.client.cacheTTL)
}

// invalidateTouched drops cached reads for this table and every table a
// relation payload wrote to.
func (m *Model) invalidateTouched(ctx context.Context, relations RelatedData) {
	m.client.invalidate(ctx, m.def.Name)
	for name := range relations {
		rel := m.def.Relations[name]
		if rel == nil {
			continue
		}
		if rel.Target != "" {
			m.client.invalidate(ctx, rel.Target)
		}
		if rel.JunctionTable != "" {
			m.client.invalidate(ctx, rel.JunctionTable)
		}
	}
}

// scanRecords drains rows into records. When a table definition is given,
// values are normalized to their declared types; raw scans only get
// byte-slice to string conversion.
func scanRecords(rows *sql.Rows, def *schema.TableDefinition) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	recs := []Record{}
	for rows.Next() {
		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			rec[c] = normalizeValue(def, c, *(dest[i].(*any)))
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// normalizeValue converts driver representations to the record
// representation: byte slices become strings and boolean columns stored
// as integers become bools.
func normalizeValue(def *schema.TableDefinition, col string, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if def == nil {
		return v
	}
	t, ok := def.FieldType(col)
	if !ok {
		return v
	}
	if t == schema.TypeBool {
		if n, ok := v.(int64); ok {
			return n != 0
		}
	}
	return v
}

// flattenFilter turns a filter into a deterministic key/value list for
// cache keying.
func flattenFilter(filter map[string]any) []any {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	flat := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		flat = append(flat, k, filter[k])
	}
	return flat
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func relationNames(relations RelatedData) []string {
	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func asRecord(v any) (Record, bool) {
	switch p := v.(type) {
	case Record:
		return p, true
	case map[string]any:
		return Record(p), true
	}
	return nil, false
}

func asRecords(v any) ([]Record, bool) {
	switch p := v.(type) {
	case []Record:
		return p, true
	case []map[string]any:
		out := make([]Record, len(p))
		for i, r := range p {
			out[i] = Record(r)
		}
		return out, true
	case []any:
		out := make([]Record, len(p))
		for i, item := range p {
			r, ok := asRecord(item)
			if !ok {
				return nil, false
			}
			out[i] = r
		}
		return out, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch p := v.(type) {
	case []any:
		return p, true
	case []int:
		out := make([]any, len(p))
		for i, n := range p {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(p))
		for i, n := range p {
			out[i] = n
		}
		return out, true
	case []string:
		out := make([]any, len(p))
		for i, s := range p {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// checkRelations verifies that every payload name is a declared relation.
func (m *Model) checkRelations(relations RelatedData) error {
	for name := range relations {
		if _, ok := m.def.Relation(name); !ok {
			return NewSchemaError(m.def.Name, "relation %q not declared", name)
		}
	}
	return nil
}
