// Package assembly turns a project's chapters and posts into the ordered
// document tree the render backends consume.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/ordering"
)

// ContentSource is the read side of the content store used during assembly.
type ContentSource interface {
	GetProjectByID(ctx context.Context, projectID string) (*models.Project, error)
	GetChaptersForProject(ctx context.Context, projectID string) ([]models.Chapter, error)
	GetIncludedPostsForAssembly(ctx context.Context, projectID string) ([]models.ProjectPostContent, error)
}

// MarkdownRenderer converts markdown into an HTML fragment.
type MarkdownRenderer interface {
	ToHTML(ctx context.Context, markdown string) (string, error)
}

type Assembler struct {
	source   ContentSource
	markdown MarkdownRenderer
}

func NewAssembler(source ContentSource, markdown MarkdownRenderer) *Assembler {
	return &Assembler{source: source, markdown: markdown}
}

// Assemble builds the document tree for a project from its current content.
// Nothing is cached: every call re-renders from source markdown.
func (a *Assembler) Assemble(ctx context.Context, projectID string) (*models.DocumentTree, error) {
	project, err := a.source.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	chapters, err := a.source.GetChaptersForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}
	posts, err := a.source.GetIncludedPostsForAssembly(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	ordering.SortChapters(chapters)
	ordering.SortPosts(posts)
	buckets := ordering.PartitionByBucket(posts)

	tree := &models.DocumentTree{
		ProjectID: project.ID,
		Title:     project.Title,
		Sections:  []models.Section{},
	}
	if project.Description != nil {
		tree.Description = *project.Description
	}

	known := make(map[string]bool, len(chapters))
	for _, ch := range chapters {
		known[ch.ID] = true
	}

	for _, ch := range chapters {
		assigned := buckets[ch.ID]
		intro := ""
		if ch.Content != nil {
			intro = *ch.Content
		}
		if len(assigned) == 0 && strings.TrimSpace(intro) == "" {
			continue
		}

		introHTML, err := a.markdown.ToHTML(ctx, intro)
		if err != nil {
			return nil, fmt.Errorf("render intro of chapter %q: %w", ch.Title, err)
		}
		items, err := a.renderItems(ctx, assigned)
		if err != nil {
			return nil, err
		}

		chapterID, title := ch.ID, ch.Title
		tree.Sections = append(tree.Sections, models.Section{
			ChapterID:      &chapterID,
			ChapterTitle:   &title,
			ChapterContent: introHTML,
			Items:          items,
		})
	}

	// Posts pointing at a chapter that no longer exists read as unassigned.
	var unassigned []models.ProjectPostContent
	for _, p := range posts {
		if p.ChapterID == nil || !known[*p.ChapterID] {
			unassigned = append(unassigned, p)
		}
	}
	if len(unassigned) > 0 {
		items, err := a.renderItems(ctx, unassigned)
		if err != nil {
			return nil, err
		}
		tree.Sections = append(tree.Sections, models.Section{Items: items})
	}

	slog.DebugContext(ctx, "assembled document",
		"project_id", project.ID,
		"sections", len(tree.Sections),
		"items", tree.ItemCount(),
	)
	return tree, nil
}

func (a *Assembler) renderItems(ctx context.Context, posts []models.ProjectPostContent) ([]models.RenderedItem, error) {
	items := make([]models.RenderedItem, 0, len(posts))
	for _, p := range posts {
		html, err := a.markdown.ToHTML(ctx, p.Markdown)
		if err != nil {
			return nil, fmt.Errorf("render post %q: %w", p.Title, err)
		}
		items = append(items, models.RenderedItem{
			ProjectPostID: p.ID,
			PostID:        p.PostID,
			Title:         p.Title,
			HTMLContent:   html,
			SourceOrder:   p.Order,
		})
	}
	return items, nil
}
