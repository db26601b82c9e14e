package store_test

import (
	"context"
	"testing"

	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/internal/store/storetest"
	"github.com/devsketch/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := store.NewUserRepository(storetest.Open(t))

	created, err := repo.Create(ctx, types.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)
	assert.Equal(t, "hash", byID.PasswordHash)
	assert.False(t, byID.IsVerified)
	assert.Nil(t, byID.RefreshToken)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.Create(ctx, types.User{Email: "ada@example.com", PasswordHash: "other"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = repo.GetByID(ctx, created.ID+100)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepositoryRefreshSlot(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	repo := store.NewUserRepository(db)
	id := storetest.InsertUser(t, db, "bob@example.com", "hash", true)

	require.NoError(t, repo.SetRefreshToken(ctx, id, "first"))

	swapped, err := repo.CompareAndSwapRefreshToken(ctx, id, "stale", "second")
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = repo.CompareAndSwapRefreshToken(ctx, id, "first", "second")
	require.NoError(t, err)
	assert.True(t, swapped)

	user, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, "second", *user.RefreshToken)

	require.NoError(t, repo.ClearRefreshToken(ctx, id))
	require.NoError(t, repo.ClearRefreshToken(ctx, id))
	user, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, user.RefreshToken)

	swapped, err = repo.CompareAndSwapRefreshToken(ctx, id, "second", "third")
	require.NoError(t, err)
	assert.False(t, swapped, "an empty slot never matches")

	assert.ErrorIs(t, repo.ClearRefreshToken(ctx, id+1), store.ErrNotFound)
	assert.ErrorIs(t, repo.SetRefreshToken(ctx, id+1, "x"), store.ErrNotFound)
}

func TestUserRepositoryUpdates(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	repo := store.NewUserRepository(db)
	id := storetest.InsertUser(t, db, "carol@example.com", "old", false)

	require.NoError(t, repo.UpdatePassword(ctx, id, "new"))
	require.NoError(t, repo.SetVerified(ctx, id, true))

	user, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new", user.PasswordHash)
	assert.True(t, user.IsVerified)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, id+1, "x"), store.ErrNotFound)
	assert.ErrorIs(t, repo.SetVerified(ctx, id+1, true), store.ErrNotFound)
}
