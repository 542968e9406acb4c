package assembly

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreybb/quire/models"
)

type fakeSource struct {
	project  *models.Project
	chapters []models.Chapter
	posts    []models.ProjectPostContent
}

func (f *fakeSource) GetProjectByID(_ context.Context, id string) (*models.Project, error) {
	if f.project == nil || f.project.ID != id {
		return nil, fmt.Errorf("project not found: %w", sql.ErrNoRows)
	}
	return f.project, nil
}

func (f *fakeSource) GetChaptersForProject(context.Context, string) ([]models.Chapter, error) {
	return append([]models.Chapter(nil), f.chapters...), nil
}

// GetIncludedPostsForAssembly filters like the real store does.
func (f *fakeSource) GetIncludedPostsForAssembly(context.Context, string) ([]models.ProjectPostContent, error) {
	var out []models.ProjectPostContent
	for _, p := range f.posts {
		if p.IncludeInBook {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeMarkdown struct {
	calls int
	err   error
}

func (m *fakeMarkdown) ToHTML(_ context.Context, md string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if md == "" {
		return "", nil
	}
	return "<p>" + md + "</p>", nil
}

func strPtr(s string) *string { return &s }

func item(id, title string, chapterID *string, order int, include bool) models.ProjectPostContent {
	return models.ProjectPostContent{
		ProjectPost: models.ProjectPost{
			ID:            id,
			PostID:        "post-" + id,
			ChapterID:     chapterID,
			Order:         order,
			IncludeInBook: include,
		},
		Title:    title,
		Markdown: title + " body",
	}
}

func sectionTitles(tree *models.DocumentTree) []any {
	var out []any
	for _, s := range tree.Sections {
		if s.ChapterTitle == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *s.ChapterTitle)
	}
	return out
}

func itemTitles(s models.Section) []string {
	out := make([]string, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Title
	}
	return out
}

func newProject() *models.Project {
	return &models.Project{ID: "proj", Title: "My Book", Description: strPtr("A book")}
}

func TestAssemble_ChapterAndUnassigned(t *testing.T) {
	src := &fakeSource{
		project:  newProject(),
		chapters: []models.Chapter{{ID: "intro", Title: "Intro", Order: 1}},
		posts: []models.ProjectPostContent{
			item("a", "A", strPtr("intro"), 1, true),
			item("b", "B", nil, 1, true),
		},
	}

	tree, err := NewAssembler(src, &fakeMarkdown{}).Assemble(context.Background(), "proj")
	require.NoError(t, err)

	assert.Equal(t, "My Book", tree.Title)
	assert.Equal(t, "A book", tree.Description)
	require.Len(t, tree.Sections, 2)
	assert.Equal(t, []any{"Intro", nil}, sectionTitles(tree))
	assert.Equal(t, []string{"A"}, itemTitles(tree.Sections[0]))
	assert.Equal(t, []string{"B"}, itemTitles(tree.Sections[1]))
	assert.True(t, tree.Sections[1].IsUnassigned())
	assert.Equal(t, "<p>A body</p>", tree.Sections[0].Items[0].HTMLContent)
}

func TestAssemble_OrdersChaptersAndPosts(t *testing.T) {
	src := &fakeSource{
		project: newProject(),
		chapters: []models.Chapter{
			{ID: "c2", Title: "Second", Order: 2},
			{ID: "c1", Title: "First", Order: 1},
		},
		posts: []models.ProjectPostContent{
			item("p2", "p2", nil, 2, true),
			item("x", "x", strPtr("c2"), 1, true),
			item("p1", "p1", nil, 1, true),
			item("y", "y", strPtr("c1"), 5, true),
		},
	}

	tree, err := NewAssembler(src, &fakeMarkdown{}).Assemble(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, []any{"First", "Second", nil}, sectionTitles(tree))
	assert.Equal(t, []string{"p1", "p2"}, itemTitles(tree.Sections[2]))
}

func TestAssemble_ReorderSwapsUnassignedItems(t *testing.T) {
	src := &fakeSource{
		project: newProject(),
		posts: []models.ProjectPostContent{
			item("p1", "p1", nil, 1, true),
			item("p2", "p2", nil, 2, true),
		},
	}
	asm := NewAssembler(src, &fakeMarkdown{})

	tree, err := asm.Assemble(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, itemTitles(tree.Sections[0]))

	src.posts[0].Order, src.posts[1].Order = 2, 1
	tree, err = asm.Assemble(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, itemTitles(tree.Sections[0]))
}

func TestAssemble_TiesKeepInsertionOrder(t *testing.T) {
	src := &fakeSource{
		project: newProject(),
		posts: []models.ProjectPostContent{
			item("first", "first", nil, 1, true),
			item("second", "second", nil, 1, true),
			item("third", "third", nil, 1, true),
		},
	}
	tree, err := NewAssembler(src, &fakeMarkdown{}).Assemble(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, itemTitles(tree.Sections[0]))
}

func TestAssemble_ExcludedPostsOmitted(t *testing.T) {
	src := &fakeSource{
		project:  newProject(),
		chapters: []models.Chapter{{ID: "c1", Title: "One", Order: 1}},
		posts: []models.ProjectPostContent{
			item("in1", "in1", strPtr("c1"), 1, true),
			item("out1", "out1", strPtr("c1"), 2, false),
			item("in2", "in2", nil, 1, true),
			item("out2", "out2", nil, 2, false),
		},
	}
	tree, err := NewAssembler(src, &fakeMarkdown{}).Assemble(context.Background(), "proj")
	require.NoError(t, err)

	seen := map[string]int{}
	for _, s := range tree.Sections {
		for _, it := range s.Items {
			seen[it.ProjectPostID]++
		}
	}
	assert.Equal(t, map[string]int{"in1": 1, "in2": 1}, seen)
	assert.Equal(t, 2, tree.ItemCount())
}

func TestAssemble_ChapterSections(t *testing.T) {
	src := &fakeSource{
		project: newProject(),
		chapters: []models.Chapter{
			{ID: "empty", Title: "Empty", Order: 1},
			{ID: "blank", Title: "Blank", Content: strPtr("   "), Order: 2},
			{ID: "notes", Title: "Notes", Content: strPtr("read this first"), Order: 3},
		},
	}
	tree, err := NewAssembler(src, &fakeMarkdown{}).Assemble(context.Background(), "proj")
	require.NoError(t, err)

	require.Len(t, tree.Sections, 1, "chapters without content or posts are skipped, no trailing empty section")
	assert.Equal(t, "Notes", *tree.Sections[0].ChapterTitle)
	assert.Equal(t, "<p>read this first</p>", tree.Sections[0].ChapterContent)
	assert.Empty(t, tree.Sections[0].Items)
}

func TestAssemble_OrphanedPostsFallToUnassigned(t *testing.T) {
	src := &fakeSource{
		project: newProject(),
		posts:   []models.ProjectPostContent{item("o", "orphan", strPtr("gone"), 1, true)},
	}
	tree, err := NewAssembler(src, &fakeMarkdown{}).Assemble(context.Background(), "proj")
	require.NoError(t, err)
	require.Len(t, tree.Sections, 1)
	assert.True(t, tree.Sections[0].IsUnassigned())
}

func TestAssemble_Idempotent(t *testing.T) {
	src := &fakeSource{
		project:  newProject(),
		chapters: []models.Chapter{{ID: "c1", Title: "One", Content: strPtr("hi"), Order: 1}},
		posts: []models.ProjectPostContent{
			item("a", "A", strPtr("c1"), 1, true),
			item("b", "B", nil, 1, true),
		},
	}
	md := &fakeMarkdown{}
	asm := NewAssembler(src, md)

	first, err := asm.Assemble(context.Background(), "proj")
	require.NoError(t, err)
	callsAfterFirst := md.calls
	second, err := asm.Assemble(context.Background(), "proj")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst*2, md.calls, "markdown is re-rendered on every assembly")
}

func TestAssemble_Errors(t *testing.T) {
	t.Run("unknown project", func(t *testing.T) {
		_, err := NewAssembler(&fakeSource{project: newProject()}, &fakeMarkdown{}).
			Assemble(context.Background(), "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("markdown failure", func(t *testing.T) {
		boom := errors.New("boom")
		src := &fakeSource{
			project: newProject(),
			posts:   []models.ProjectPostContent{item("a", "A", nil, 1, true)},
		}
		_, err := NewAssembler(src, &fakeMarkdown{err: boom}).Assemble(context.Background(), "proj")
		assert.ErrorIs(t, err, boom)
	})
}
