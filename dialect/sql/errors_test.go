package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSQLState struct{ state string }

func (e fakeSQLState) Error() string    { return "constraint violation" }
func (e fakeSQLState) SQLState() string { return e.state }

type fakeNumbered struct{ num uint16 }

func (e fakeNumbered) Error() string  { return "mysql error" }
func (e fakeNumbered) Number() uint16 { return e.num }

func TestIsUniqueConstraintError(t *testing.T) {
	t.Run("SQLState", func(t *testing.T) {
		assert.True(t, IsUniqueConstraintError(fakeSQLState{state: "23505"}))
		assert.False(t, IsUniqueConstraintError(fakeSQLState{state: "23503"}))
	})

	t.Run("MySQLNumber", func(t *testing.T) {
		assert.True(t, IsUniqueConstraintError(fakeNumbered{num: 1062}))
		assert.False(t, IsUniqueConstraintError(fakeNumbered{num: 1451}))
	})

	t.Run("StringFallback", func(t *testing.T) {
		assert.True(t, IsUniqueConstraintError(errors.New(`UNIQUE constraint failed: users.email`)))
		assert.True(t, IsUniqueConstraintError(errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`)))
		assert.False(t, IsUniqueConstraintError(errors.New("connection refused")))
	})

	t.Run("Wrapped", func(t *testing.T) {
		err := fmt.Errorf("exec: %w", fakeSQLState{state: "23505"})
		assert.True(t, IsUniqueConstraintError(err))
	})

	t.Run("Nil", func(t *testing.T) {
		assert.False(t, IsUniqueConstraintError(nil))
	})
}

func TestIsForeignKeyConstraintError(t *testing.T) {
	assert.True(t, IsForeignKeyConstraintError(fakeSQLState{state: "23503"}))
	assert.True(t, IsForeignKeyConstraintError(fakeNumbered{num: 1452}))
	assert.True(t, IsForeignKeyConstraintError(fakeNumbered{num: 1451}))
	assert.True(t, IsForeignKeyConstraintError(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsForeignKeyConstraintError(errors.New("syntax error")))
}

func TestIsCheckConstraintError(t *testing.T) {
	assert.True(t, IsCheckConstraintError(fakeSQLState{state: "23514"}))
	assert.True(t, IsCheckConstraintError(fakeNumbered{num: 3819}))
	assert.True(t, IsCheckConstraintError(errors.New(`new row violates check constraint "age_positive"`)))
	assert.False(t, IsCheckConstraintError(errors.New("deadlock detected")))
}

func TestIsConstraintError(t *testing.T) {
	assert.True(t, IsConstraintError(fakeSQLState{state: "23505"}))
	assert.True(t, IsConstraintError(fakeSQLState{state: "23503"}))
	assert.True(t, IsConstraintError(fakeSQLState{state: "23514"}))
	assert.False(t, IsConstraintError(errors.New("not a constraint")))
}
