package sqlstage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var widgetTemplates = Templates{
	Insert: "INSERT INTO widgets (id, name) VALUES (:id, :name)",
	Update: "UPDATE widgets SET name = :name WHERE id = :id",
	Delete: "DELETE FROM widgets WHERE id = :id",
	Select: "SELECT id, name FROM widgets WHERE id = :id",
}

func newWidgetRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock := newMockConn(t)
	reg, err := NewRegistries().Init("widget", conn, widgetTemplates)
	require.NoError(t, err)
	return reg, mock
}

func TestUnitDispatchesOnce(t *testing.T) {
	reg, mock := newWidgetRegistry(t)

	u := NewUnit()
	w := &widget{ID: 1, Name: "a"}
	w.Insert()
	u.Track(reg, w)

	require.NoError(t, u.Close())
	assert.Equal(t, 1, reg.Conn().Len(), "one queued statement per dispatched record")

	// Further closes are no-ops.
	require.NoError(t, u.Close())
	assert.Equal(t, 1, reg.Conn().Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitIgnoreLeavesNoTrace(t *testing.T) {
	reg, mock := newWidgetRegistry(t)

	u := NewUnit()
	u.Track(reg, &widget{ID: 1, Name: "a"}) // action defaults to ignore

	require.NoError(t, u.Close())
	assert.Equal(t, 0, reg.Conn().Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoDispatchesOnErrorPath(t *testing.T) {
	reg, mock := newWidgetRegistry(t)
	boom := errors.New("business rule failed")

	err := Do(func(u *Unit) error {
		w := &widget{ID: 7}
		w.Delete()
		u.Track(reg, w)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, reg.Conn().Len(), "dispatch happens on every exit path")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoJoinsDispatchErrors(t *testing.T) {
	conn, _ := newMockConn(t)
	reg, err := NewRegistries().Init("widget", conn, Templates{}) // no templates
	require.NoError(t, err)

	err = Do(func(u *Unit) error {
		w := &widget{ID: 1}
		w.Insert()
		u.Track(reg, w)
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsDispatch(err))
}

func TestRunInTransaction(t *testing.T) {
	t.Run("success commits", func(t *testing.T) {
		conn, mock := newMockConn(t)
		ctx := context.Background()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO widgets").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := RunInTransaction(ctx, conn, func() error {
			return conn.Enqueue(ctx, "INSERT INTO widgets (id) VALUES (:id)", map[string]any{"id": 1})
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure aborts and re-raises", func(t *testing.T) {
		conn, mock := newMockConn(t)
		ctx := context.Background()
		boom := errors.New("validation failed")

		err := RunInTransaction(ctx, conn, func() error {
			if err := conn.Enqueue(ctx, "INSERT INTO widgets (id) VALUES (:id)", map[string]any{"id": 1}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, conn.Len())
		require.NoError(t, mock.ExpectationsWereMet(), "nothing may reach the database")
	})
}

func TestCommitGuardSwallows(t *testing.T) {
	conn, mock := newMockConn(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO widgets").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	require.NoError(t, conn.Enqueue(ctx, "INSERT INTO widgets (id) VALUES (:id)", map[string]any{"id": 1}))

	g := Guard(conn)
	g.Close() // must not panic or propagate
	g.Close() // idempotent
	assert.Equal(t, 0, conn.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}
