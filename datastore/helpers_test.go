package datastore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreybb/quire/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, Options{
		Driver: DriverSQLite,
		DSN:    SQLiteDSN(filepath.Join(t.TempDir(), "quire.db")),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))
	return db
}

type fixture struct {
	db       *sql.DB
	users    *UserRepository
	posts    *PostRepository
	projects *ProjectRepository
	chapters *ChapterRepository
	items    *ProjectPostRepository
	user     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:       db,
		users:    NewUserRepository(db),
		posts:    NewPostRepository(db),
		projects: NewProjectRepository(db),
		chapters: NewChapterRepository(db),
		items:    NewProjectPostRepository(db),
		user:     &models.User{Email: "author@example.com", Name: "Author"},
	}
	require.NoError(t, f.users.CreateUser(context.Background(), f.user))
	return f
}

func (f *fixture) post(t *testing.T, title, content string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: f.user.ID, Title: title, Slug: title, Content: content}
	require.NoError(t, f.posts.CreatePost(context.Background(), p))
	return p
}

func (f *fixture) project(t *testing.T, title string, postIDs ...string) *models.Project {
	t.Helper()
	p := &models.Project{UserID: f.user.ID, Title: title}
	require.NoError(t, f.projects.CreateProject(context.Background(), p, postIDs))
	return p
}

func (f *fixture) chapter(t *testing.T, projectID, title string) *models.Chapter {
	t.Helper()
	c := &models.Chapter{ProjectID: projectID, Title: title}
	require.NoError(t, f.chapters.CreateChapter(context.Background(), c))
	return c
}
