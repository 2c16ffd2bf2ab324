package loom

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/schema"
)

func userDef() *schema.TableDefinition {
	return &schema.TableDefinition{
		Name: "users",
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeSerial},
			{Name: "email", Type: schema.TypeText},
			{Name: "name", Type: schema.TypeText},
			{Name: "age", Type: schema.TypeInt},
			{Name: "meta", Type: schema.TypeJSON},
			{Name: "createdAt", Type: schema.TypeTimestamp},
			{Name: "updatedAt", Type: schema.TypeTimestamp},
		},
		Required:   []string{"id", "email"},
		Optional:   []string{"name", "age", "meta"},
		PrimaryKey: []string{"id"},
	}
}

func TestPrepareCreate(t *testing.T) {
	proc := fieldProcessor{def: userDef()}

	t.Run("Defaults", func(t *testing.T) {
		cols, vals, processed, err := proc.prepareCreate(Record{"email": "a@b.c"})
		require.NoError(t, err)
		require.Len(t, cols, 3)
		assert.Equal(t, []string{"email", "createdAt", "updatedAt"}, cols)
		assert.Equal(t, "a@b.c", vals[0])

		// Serial key left to the store, timestamps stamped.
		assert.NotContains(t, processed, "id")
		assert.WithinDuration(t, time.Now().UTC(), processed["createdAt"].(time.Time), time.Minute)
		assert.WithinDuration(t, time.Now().UTC(), processed["updatedAt"].(time.Time), time.Minute)
	})

	t.Run("MissingRequired", func(t *testing.T) {
		_, _, _, err := proc.prepareCreate(Record{"name": "no email"})
		require.Error(t, err)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"email"}, verr.Missing)
		assert.Equal(t, "create", verr.Op)
	})

	t.Run("UndeclaredFields", func(t *testing.T) {
		_, _, _, err := proc.prepareCreate(Record{"email": "a@b.c", "zz": 1, "aa": 2})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"aa", "zz"}, verr.Invalid)
	})

	t.Run("IntegerCoercion", func(t *testing.T) {
		_, _, processed, err := proc.prepareCreate(Record{"email": "a@b.c", "age": float64(30)})
		require.NoError(t, err)
		assert.Equal(t, int64(30), processed["age"])
	})

	t.Run("IntegerFromString", func(t *testing.T) {
		_, _, processed, err := proc.prepareCreate(Record{"email": "a@b.c", "age": "30"})
		require.NoError(t, err)
		assert.Equal(t, int64(30), processed["age"])
	})

	t.Run("NonNumericStringRejected", func(t *testing.T) {
		_, _, _, err := proc.prepareCreate(Record{"email": "a@b.c", "age": "thirty"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"age"}, verr.Invalid)
	})

	t.Run("JSONCoercion", func(t *testing.T) {
		_, _, processed, err := proc.prepareCreate(Record{"email": "a@b.c", "meta": map[string]any{"k": "v"}})
		require.NoError(t, err)
		assert.Equal(t, `{"k":"v"}`, processed["meta"])
	})

	t.Run("ExplicitSerialKept", func(t *testing.T) {
		_, _, processed, err := proc.prepareCreate(Record{"id": 7, "email": "a@b.c"})
		require.NoError(t, err)
		assert.Equal(t, 7, processed["id"])
	})

	t.Run("UUIDKeyGenerated", func(t *testing.T) {
		def := &schema.TableDefinition{
			Name: "api_keys",
			Fields: []schema.Field{
				{Name: "id", Type: schema.TypeUUID},
				{Name: "label", Type: schema.TypeText},
			},
			Required:   []string{"id"},
			PrimaryKey: []string{"id"},
		}
		p := fieldProcessor{def: def}
		_, _, processed, err := p.prepareCreate(Record{"label": "ci"})
		require.NoError(t, err)
		_, perr := uuid.Parse(processed["id"].(string))
		assert.NoError(t, perr)
	})
}

func TestPrepareUpdate(t *testing.T) {
	proc := fieldProcessor{def: userDef()}

	t.Run("RefreshesUpdatedAt", func(t *testing.T) {
		cols, vals, err := proc.prepareUpdate(Record{"name": "new"})
		require.NoError(t, err)
		require.Equal(t, []string{"name", "updatedAt"}, cols)
		assert.Equal(t, "new", vals[0])
		assert.WithinDuration(t, time.Now().UTC(), vals[1].(time.Time), time.Minute)
	})

	t.Run("DropsSerial", func(t *testing.T) {
		cols, _, err := proc.prepareUpdate(Record{"id": 99, "name": "new"})
		require.NoError(t, err)
		assert.NotContains(t, cols, "id")
	})

	t.Run("NilTimestampStampsNow", func(t *testing.T) {
		cols, vals, err := proc.prepareUpdate(Record{"createdAt": nil})
		require.NoError(t, err)
		require.Equal(t, []string{"createdAt", "updatedAt"}, cols)
		assert.WithinDuration(t, time.Now().UTC(), vals[0].(time.Time), time.Minute)
	})

	t.Run("UndeclaredRejected", func(t *testing.T) {
		_, _, err := proc.prepareUpdate(Record{"bogus": 1})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"bogus"}, verr.Invalid)
		assert.Equal(t, "update", verr.Op)
	})
}
