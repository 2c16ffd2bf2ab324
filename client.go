// Package loom is a schema-driven relational mapping engine. A Client is
// built from a declarative schema and a dialect driver; table accessors
// obtained from it synthesize parameterized SQL, process field defaults,
// resolve relations and coordinate transactions.
package loom

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/syssam/loom/dialect"
	"github.com/syssam/loom/dialect/sql"
	"github.com/syssam/loom/schema"
	"github.com/syssam/loom/sqlgen"
)

// Record is a single table row keyed by field name.
type Record map[string]any

// RelatedData carries relation payloads alongside a write, keyed by the
// declared relation name.
type RelatedData map[string]any

// Client is the engine entry point. It is safe for concurrent use; table
// accessors share its schema and driver by reference.
type Client struct {
	driver  dialect.Driver
	conn    dialect.ExecQuerier
	schema  *schema.Schema
	builder *sqlgen.Builder

	cache    Cache
	cacheTTL time.Duration
	log      *zap.Logger
	inTx     bool
}

// Option configures a Client.
type Option func(*Client)

// WithCache installs a read-result cache. Without it single-record reads
// always hit the backing store.
func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithCacheTTL sets the lifetime of cached read results.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cl *Client) { cl.cacheTTL = ttl }
}

// WithLogger installs a structured logger for operation-level debug logs.
func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// NewClient returns a Client over the given driver and validated schema.
func NewClient(drv dialect.Driver, s *schema.Schema, opts ...Option) *Client {
	c := &Client{
		driver:  drv,
		conn:    drv,
		schema:  s,
		builder: sqlgen.New(drv.Dialect()),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens a database connection for the given dialect and DSN and
// returns a Client over it.
func Open(dialectName, dsn string, s *schema.Schema, opts ...Option) (*Client, error) {
	drv, err := sql.Open(dialectName, dsn)
	if err != nil {
		return nil, fmt.Errorf("loom: opening %s connection: %w", dialectName, err)
	}
	return NewClient(drv, s, opts...), nil
}

// Driver returns the underlying dialect driver.
func (c *Client) Driver() dialect.Driver { return c.driver }

// Schema returns the schema the client was built with.
func (c *Client) Schema() *schema.Schema { return c.schema }

// Close closes the underlying driver.
func (c *Client) Close() error { return c.driver.Close() }

// Model returns the accessor bound to the named table. An unknown table
// is a SchemaError.
func (c *Client) Model(name string) (*Model, error) {
	def, ok := c.schema.Table(name)
	if !ok {
		return nil, NewSchemaError(name, "table not declared in schema")
	}
	return &Model{client: c, def: def}, nil
}

// Models returns the names of all accessible tables, sorted.
func (c *Client) Models() []string {
	return c.schema.TableNames()
}

// CreateTables creates every schema-declared table that does not already
// exist, ordered so that foreign-key targets are created before their
// dependents.
func (c *Client) CreateTables(ctx context.Context) error {
	defs, err := c.tableOrder()
	if err != nil {
		return err
	}
	for _, def := range defs {
		stmt, err := c.builder.CreateTable(c.schema, def)
		if err != nil {
			return NewSchemaError(def.Name, "%v", err)
		}
		c.log.Debug("create table", zap.String("table", def.Name))
		if err := c.conn.Exec(ctx, stmt, []any{}, nil); err != nil {
			return NewMutationError(def.Name, "createTable", err)
		}
	}
	return nil
}

// DropTables removes every schema-declared table, dependents first.
func (c *Client) DropTables(ctx context.Context) error {
	defs, err := c.tableOrder()
	if err != nil {
		return err
	}
	for i := len(defs) - 1; i >= 0; i-- {
		def := defs[i]
		c.log.Debug("drop table", zap.String("table", def.Name))
		if err := c.conn.Exec(ctx, c.builder.DropTable(def.Name), []any{}, nil); err != nil {
			return NewMutationError(def.Name, "dropTable", err)
		}
	}
	if c.cache != nil {
		c.cache.Clear(ctx)
	}
	return nil
}

// tableOrder returns the table definitions sorted so that every BelongsTo
// target precedes its dependents. A reference cycle is a SchemaError.
func (c *Client) tableOrder() ([]*schema.TableDefinition, error) {
	defs := c.schema.Tables()
	indegree := make(map[string]int, len(defs))
	dependents := make(map[string][]string, len(defs))
	for _, def := range defs {
		indegree[def.Name] += 0
		for _, name := range def.RelationNames() {
			rel := def.Relations[name]
			if rel.Kind != schema.BelongsTo || rel.Target == def.Name {
				continue
			}
			indegree[def.Name]++
			dependents[rel.Target] = append(dependents[rel.Target], def.Name)
		}
	}

	var queue []string
	for _, def := range defs {
		if indegree[def.Name] == 0 {
			queue = append(queue, def.Name)
		}
	}

	ordered := make([]*schema.TableDefinition, 0, len(defs))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		def, _ := c.schema.Table(name)
		ordered = append(ordered, def)
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(ordered) != len(defs) {
		return nil, NewSchemaError("", "cyclic foreign-key references between tables")
	}
	return ordered, nil
}

// invalidate drops every cached read of table after a successful write.
func (c *Client) invalidate(ctx context.Context, table string) {
	if c.cache != nil {
		c.cache.DeletePrefix(ctx, TablePrefix(table))
	}
}
