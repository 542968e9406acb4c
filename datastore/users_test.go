package datastore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreybb/quire/models"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user := &models.User{Email: "  Writer@Example.com ", Name: "Writer"}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "writer@example.com", user.Email)

	byEmail, err := repo.GetUserByEmail(ctx, "WRITER@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Writer", byID.Name)

	_, err = repo.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.post(t, "First", "# one")
	f.post(t, "Second", "two")

	got, err := f.posts.GetPostByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "# one", got.Content)

	list, err := f.posts.GetPostsByUserID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	empty, err := f.posts.GetPostsByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.posts.GetPostByID(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
