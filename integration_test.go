package loom_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/loom"
	"github.com/syssam/loom/dialect"
	dsql "github.com/syssam/loom/dialect/sql"
)

func sqliteClient(t *testing.T, opts ...loom.Option) *loom.Client {
	t.Helper()
	drv, err := dsql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	// One in-memory database per test; the pool must not open a second
	// connection or it would see a different empty database.
	drv.DB().SetMaxOpenConns(1)
	client := loom.NewClient(drv, testSchema(t), opts...)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.CreateTables(context.Background()))
	return client
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	users, err := client.Model("users")
	require.NoError(t, err)

	created, err := users.Create(ctx, loom.Record{"email": "ada@lovelace.dev", "name": "ada"})
	require.NoError(t, err)
	require.NotNil(t, created["id"])

	found, err := users.FindByID(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, "ada@lovelace.dev", found["email"])
	assert.Equal(t, "ada", found["name"])

	one, err := users.FindOne(ctx, map[string]any{"email": "ada@lovelace.dev"})
	require.NoError(t, err)
	assert.Equal(t, created["id"], one["id"])
}

func TestSQLiteNotFoundSemantics(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	users, _ := client.Model("users")

	// Reads and delete report absence as nil without error.
	rec, err := users.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = users.Delete(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// A keyed update of a missing record is an error.
	_, err = users.Update(ctx, 999, loom.Record{"name": "ghost"})
	assert.True(t, loom.IsNotFound(err))
}

func TestSQLiteManyToMany(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	posts, _ := client.Model("posts")
	tags, _ := client.Model("tags")

	var ids []any
	for _, label := range []string{"go", "sql", "orm"} {
		tag, err := tags.Create(ctx, loom.Record{"label": label})
		require.NoError(t, err)
		ids = append(ids, tag["id"])
	}

	post, err := posts.CreateWithRelations(ctx, loom.Record{"title": "hello"},
		loom.RelatedData{"tags": ids[:2]})
	require.NoError(t, err)

	loaded := func() []loom.Record {
		recs, err := posts.FindAllWithRelations(ctx, loom.FindOptions{
			Filter: map[string]any{"id": post["id"]},
		}, []string{"tags"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		return recs[0]["tags"].([]loom.Record)
	}
	require.Len(t, loaded(), 2)

	// Reapplying the same set is a no-op.
	_, err = posts.UpdateWithRelations(ctx, post["id"], loom.Record{},
		loom.RelatedData{"tags": ids[:2]})
	require.NoError(t, err)
	require.Len(t, loaded(), 2)

	// Diff: drop the first tag, keep the second, add the third.
	_, err = posts.UpdateWithRelations(ctx, post["id"], loom.Record{},
		loom.RelatedData{"tags": ids[1:]})
	require.NoError(t, err)
	linked := loaded()
	require.Len(t, linked, 2)
	labels := map[string]bool{}
	for _, tag := range linked {
		labels[tag["label"].(string)] = true
	}
	assert.True(t, labels["sql"])
	assert.True(t, labels["orm"])
	assert.False(t, labels["go"])
}

func TestSQLiteRelationWrites(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	users, _ := client.Model("users")
	posts, _ := client.Model("posts")

	// An existing post named in a child payload is adopted in place, not
	// inserted a second time.
	orphan, err := posts.Create(ctx, loom.Record{"title": "orphan"})
	require.NoError(t, err)

	owner, err := users.CreateWithRelations(ctx, loom.Record{"email": "o@b.c"},
		loom.RelatedData{"posts": []any{
			map[string]any{"id": orphan["id"], "title": "adopted"},
		}})
	require.NoError(t, err)

	adopted, err := posts.FindByID(ctx, orphan["id"])
	require.NoError(t, err)
	assert.Equal(t, "adopted", adopted["title"])
	assert.Equal(t, owner["id"], adopted["user_id"])

	all, err := posts.FindAll(ctx, loom.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// A scalar BelongsTo payload links to the existing parent by key.
	linked, err := posts.CreateWithRelations(ctx, loom.Record{"title": "second"},
		loom.RelatedData{"author": owner["id"]})
	require.NoError(t, err)
	assert.Equal(t, owner["id"], linked["user_id"])

	// And repoints the foreign key on update.
	other, err := users.Create(ctx, loom.Record{"email": "x@b.c"})
	require.NoError(t, err)
	moved, err := posts.UpdateWithRelations(ctx, linked["id"], loom.Record{},
		loom.RelatedData{"author": other["id"]})
	require.NoError(t, err)
	assert.Equal(t, other["id"], moved["user_id"])
}

func TestSQLitePaginate(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	users, _ := client.Model("users")
	posts, _ := client.Model("posts")

	author, err := users.Create(ctx, loom.Record{"email": "a@b.c"})
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		_, err := posts.Create(ctx, loom.Record{
			"title":   fmt.Sprintf("post %02d", i),
			"user_id": author["id"],
		})
		require.NoError(t, err)
	}

	page, err := posts.Paginate(ctx, 2, 10, map[string]any{"user_id": author["id"]})
	require.NoError(t, err)
	assert.Len(t, page.Data, 10)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, "post 10", page.Data[0]["title"])

	// Out-of-range pages return empty data with the true total.
	page, err = posts.Paginate(ctx, 9, 10, map[string]any{"user_id": author["id"]})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 25, page.Total)
}

func TestSQLiteTransactionAtomicity(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	tags, _ := client.Model("tags")

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *loom.Client) error {
		txTags, err := tx.Model("tags")
		if err != nil {
			return err
		}
		if _, err := txTags.Create(ctx, loom.Record{"label": "doomed"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := tags.FindOne(ctx, map[string]any{"label": "doomed"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLiteSoftDelete(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	users, _ := client.Model("users")

	created, err := users.Create(ctx, loom.Record{"email": "a@b.c"})
	require.NoError(t, err)

	marked, err := users.SoftDelete(ctx, created["id"])
	require.NoError(t, err)
	assert.NotNil(t, marked["deletedAt"])

	restored, err := users.Restore(ctx, created["id"])
	require.NoError(t, err)
	assert.Nil(t, restored["deletedAt"])

	// The row was never removed.
	found, err := users.FindByID(ctx, created["id"])
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestSQLiteIndexes(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	users, _ := client.Model("users")

	require.NoError(t, users.CreateIndex(ctx, "email", "unique"))

	_, err := users.Create(ctx, loom.Record{"email": "dup@b.c"})
	require.NoError(t, err)
	_, err = users.Create(ctx, loom.Record{"email": "dup@b.c"})
	require.Error(t, err)
	assert.True(t, dsql.IsUniqueConstraintError(err))
	assert.True(t, loom.IsMutationError(err))

	require.NoError(t, users.DropIndex(ctx, "email"))
	_, err = users.Create(ctx, loom.Record{"email": "dup@b.c"})
	require.NoError(t, err)

	assert.True(t, loom.IsSchemaError(users.CreateIndex(ctx, "ghost", "")))
}

func TestSQLiteCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t, loom.WithCache(loom.NewTTLCache(time.Minute)))
	users, _ := client.Model("users")

	created, err := users.Create(ctx, loom.Record{"email": "a@b.c", "name": "before"})
	require.NoError(t, err)

	first, err := users.FindByID(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, "before", first["name"])

	_, err = users.Update(ctx, created["id"], loom.Record{"name": "after"})
	require.NoError(t, err)

	second, err := users.FindByID(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, "after", second["name"])
}

func TestSQLiteUpdateAndDeleteMany(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	posts, _ := client.Model("posts")

	for i := 0; i < 3; i++ {
		_, err := posts.Create(ctx, loom.Record{"title": "draft"})
		require.NoError(t, err)
	}
	_, err := posts.Create(ctx, loom.Record{"title": "published"})
	require.NoError(t, err)

	n, err := posts.UpdateMany(ctx, map[string]any{"title": "draft"}, loom.Record{"title": "archived"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = posts.DeleteMany(ctx, map[string]any{"title": "archived"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	remaining, err := posts.FindAll(ctx, loom.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSQLiteRawQuery(t *testing.T) {
	ctx := context.Background()
	client := sqliteClient(t)
	tags, _ := client.Model("tags")

	for _, label := range []string{"a", "b"} {
		_, err := tags.Create(ctx, loom.Record{"label": label})
		require.NoError(t, err)
	}

	rows, err := tags.Query(ctx, `SELECT COUNT(*) AS n FROM "tags" WHERE "label" != ?`, "a")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0]["n"])
}
