package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		s, err := Load("testdata/schema.yaml")
		require.NoError(t, err)
		assert.Equal(t, []string{"post_tags", "posts", "tags", "users"}, s.TableNames())

		users, ok := s.Table("users")
		require.True(t, ok)
		typ, _ := users.FieldType("deletedAt")
		assert.Equal(t, TypeTimestamp, typ)

		posts, _ := s.Table("posts")
		tags, ok := posts.Relation("tags")
		require.True(t, ok)
		assert.Equal(t, ManyToMany, tags.Kind)
		assert.Equal(t, "post_tags", tags.JunctionTable)
		assert.Equal(t, "tag_id", tags.RelatedKey)

		author, _ := posts.Relation("author")
		assert.Equal(t, BelongsTo, author.Kind)
		assert.Equal(t, "CASCADE", author.OnDelete)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load("testdata/nope.yaml")
		assert.ErrorContains(t, err, "reading testdata/nope.yaml")
	})
}

func TestParse(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := Parse([]byte("tables: {}"))
		assert.ErrorContains(t, err, "no tables declared")
	})

	t.Run("BadKind", func(t *testing.T) {
		_, err := Parse([]byte(`
tables:
  users:
    fields:
      - {name: id, type: serial}
    primaryKey: [id]
    relations:
      posts: {kind: sideways, target: posts, foreignKey: user_id}
`))
		assert.ErrorContains(t, err, `unknown relation kind "sideways"`)
	})
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "users", tableName("User", ""))
	assert.Equal(t, "blog_posts", tableName("BlogPost", ""))
	assert.Equal(t, "users", tableName("users", ""))
	assert.Equal(t, "accounts", tableName("User", "accounts"))
}

func TestParseKind(t *testing.T) {
	for raw, want := range map[string]Kind{
		"hasMany":      HasMany,
		"has_many":     HasMany,
		"has-one":      HasOne,
		"belongsTo":    BelongsTo,
		"many_to_many": ManyToMany,
	} {
		kind, err := parseKind(raw)
		require.NoError(t, err)
		assert.Equal(t, want, kind)
	}
}
