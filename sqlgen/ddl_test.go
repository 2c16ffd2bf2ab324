package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/dialect"
	"github.com/syssam/loom/schema"
)

func blogSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		&schema.TableDefinition{
			Name: "users",
			Fields: []schema.Field{
				{Name: "id", Type: schema.TypeSerial},
				{Name: "email", Type: schema.TypeText},
				{Name: "createdAt", Type: schema.TypeTimestamp},
			},
			Required:   []string{"id", "email"},
			PrimaryKey: []string{"id"},
		},
		&schema.TableDefinition{
			Name: "posts",
			Fields: []schema.Field{
				{Name: "id", Type: schema.TypeSerial},
				{Name: "title", Type: schema.TypeText},
				{Name: "user_id", Type: schema.TypeInt},
			},
			Required:   []string{"id", "title"},
			Optional:   []string{"user_id"},
			PrimaryKey: []string{"id"},
			Relations: map[string]*schema.Relation{
				"author": {
					Kind:       schema.BelongsTo,
					Target:     "users",
					ForeignKey: "user_id",
					OnDelete:   "CASCADE",
				},
			},
		},
	)
	require.NoError(t, err)
	return s
}

func TestCreateTable(t *testing.T) {
	s := blogSchema(t)

	t.Run("Postgres", func(t *testing.T) {
		users, _ := s.Table("users")
		stmt, err := New(dialect.Postgres).CreateTable(s, users)
		require.NoError(t, err)
		assert.Equal(t, `CREATE TABLE IF NOT EXISTS "users" (`+
			`"id" bigserial, `+
			`"email" text NOT NULL, `+
			`"createdAt" timestamptz DEFAULT CURRENT_TIMESTAMP, `+
			`PRIMARY KEY ("id"))`, stmt)
	})

	t.Run("SQLiteInlineSerialKey", func(t *testing.T) {
		users, _ := s.Table("users")
		stmt, err := New(dialect.SQLite).CreateTable(s, users)
		require.NoError(t, err)
		assert.Contains(t, stmt, `"id" integer PRIMARY KEY AUTOINCREMENT`)
		assert.NotContains(t, stmt, `PRIMARY KEY ("id")`)
	})

	t.Run("ForeignKey", func(t *testing.T) {
		posts, _ := s.Table("posts")
		stmt, err := New(dialect.Postgres).CreateTable(s, posts)
		require.NoError(t, err)
		assert.Contains(t, stmt, `FOREIGN KEY ("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`)
	})

	t.Run("MissingTarget", func(t *testing.T) {
		orphan := &schema.TableDefinition{
			Name:       "orphans",
			Fields:     []schema.Field{{Name: "id", Type: schema.TypeSerial}, {Name: "p_id", Type: schema.TypeInt}},
			PrimaryKey: []string{"id"},
			Relations: map[string]*schema.Relation{
				"parent": {Kind: schema.BelongsTo, Target: "nowhere", ForeignKey: "p_id"},
			},
		}
		_, err := New(dialect.Postgres).CreateTable(s, orphan)
		assert.Error(t, err)
	})
}

func TestIndexStatements(t *testing.T) {
	t.Run("CreateUnique", func(t *testing.T) {
		stmt := New(dialect.Postgres).CreateIndex("users", "email", "unique")
		assert.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "idx_users_email" ON "users" ("email")`, stmt)
	})

	t.Run("CreatePlain", func(t *testing.T) {
		stmt := New(dialect.SQLite).CreateIndex("users", "email", "")
		assert.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_users_email" ON "users" ("email")`, stmt)
	})

	t.Run("DropMySQL", func(t *testing.T) {
		stmt := New(dialect.MySQL).DropIndex("users", "email")
		assert.Equal(t, "DROP INDEX `idx_users_email` ON `users`", stmt)
	})

	t.Run("Drop", func(t *testing.T) {
		stmt := New(dialect.Postgres).DropIndex("users", "email")
		assert.Equal(t, `DROP INDEX IF EXISTS "idx_users_email"`, stmt)
	})
}

func TestDropTable(t *testing.T) {
	assert.Equal(t, `DROP TABLE IF EXISTS "users" CASCADE`, New(dialect.Postgres).DropTable("users"))
	assert.Equal(t, "DROP TABLE IF EXISTS `users`", New(dialect.MySQL).DropTable("users"))
}
