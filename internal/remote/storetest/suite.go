// Package storetest is a compliance suite for remote.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
)

// Run exercises the row CRUD contract against a store.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) remote.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	userID := "u-" + uuid.NewString()
	otherID := "u-" + uuid.NewString()

	todos := []model.Todo{
		{ID: uuid.NewString(), ListID: "l1", Text: "first"},
		{ID: uuid.NewString(), ListID: "l1", Text: "second", Completed: true},
	}
	rows, err := remote.EncodeRows(userID, todos)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, model.TableTodos, rows))

	foreign, err := remote.EncodeRows(otherID, []model.Todo{{ID: uuid.NewString(), ListID: "l9", Text: "not mine"}})
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, model.TableTodos, foreign))

	// Select is scoped by user_id.
	got, err := s.Select(ctx, model.TableTodos, remote.Filter{remote.ColumnUserID: userID}, &remote.Order{Column: "text"})
	require.NoError(t, err)
	decoded, err := remote.DecodeRows[model.Todo](got)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "first", decoded[0].Text)
	assert.Equal(t, "second", decoded[1].Text)

	got, err = s.Select(ctx, model.TableTodos, remote.Filter{remote.ColumnUserID: userID}, &remote.Order{Column: "text", Descending: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0]["text"])

	// Duplicate ids are a conflict, never a retryable failure.
	err = s.Insert(ctx, model.TableTodos, rows[:1])
	require.Error(t, err)
	assert.Equal(t, remote.Conflict, remote.Classify(err))
	assert.True(t, remote.IsIrrecoverable(err))

	// Update patches matching rows only.
	require.NoError(t, s.Update(ctx, model.TableTodos,
		remote.Row{"text": "first (edited)", "completed": true},
		remote.Filter{remote.ColumnID: todos[0].ID, remote.ColumnUserID: userID}))
	got, err = s.Select(ctx, model.TableTodos, remote.Filter{remote.ColumnID: todos[0].ID}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	one, err := remote.DecodeRow[model.Todo](got[0])
	require.NoError(t, err)
	assert.Equal(t, "first (edited)", one.Text)
	assert.True(t, one.Completed)
	assert.Equal(t, "l1", one.ListID)

	// Upsert inserts then replaces.
	ud := model.UserData{Settings: model.DefaultSettings()}
	row, err := remote.EncodeRow(userID, ud)
	require.NoError(t, err)
	row[remote.ColumnID] = userID
	require.NoError(t, s.Upsert(ctx, model.TableUserData, []remote.Row{row}))
	ud.Settings.AutoAIReactions = false
	row, err = remote.EncodeRow(userID, ud)
	require.NoError(t, err)
	row[remote.ColumnID] = userID
	require.NoError(t, s.Upsert(ctx, model.TableUserData, []remote.Row{row}))
	got, err = s.Select(ctx, model.TableUserData, remote.Filter{remote.ColumnUserID: userID}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	back, err := remote.DecodeRow[model.UserData](got[0])
	require.NoError(t, err)
	assert.False(t, back.Settings.AutoAIReactions)

	// Delete by id, then bulk by user.
	require.NoError(t, s.Delete(ctx, model.TableTodos, remote.Filter{remote.ColumnID: todos[1].ID}))
	got, err = s.Select(ctx, model.TableTodos, remote.Filter{remote.ColumnUserID: userID}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.Delete(ctx, model.TableTodos, remote.Filter{remote.ColumnUserID: userID}))
	got, err = s.Select(ctx, model.TableTodos, remote.Filter{remote.ColumnUserID: userID}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Select(ctx, model.TableTodos, remote.Filter{remote.ColumnUserID: otherID}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1, "bulk delete must not touch other users")

	err = s.Delete(ctx, model.TableTodos, remote.Filter{})
	assert.True(t, errors.Is(err, remote.ErrUnfilteredDelete))
}
