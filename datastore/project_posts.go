package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/ordering"
)

const insertProjectPostSQL = `
	INSERT INTO project_posts (id, project_id, post_id, chapter_id, sort_order, include_in_book, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type ProjectPostRepository struct {
	db *sql.DB
}

func NewProjectPostRepository(db *sql.DB) *ProjectPostRepository {
	return &ProjectPostRepository{db: db}
}

const projectPostColumns = `pp.id, pp.project_id, pp.post_id, pp.chapter_id, pp.sort_order, pp.include_in_book, pp.created_at`

func scanProjectPost(row interface{ Scan(...any) error }, extra ...any) (*models.ProjectPost, error) {
	var (
		pp        models.ProjectPost
		chapterID sql.NullString
	)
	dest := append([]any{&pp.ID, &pp.ProjectID, &pp.PostID, &chapterID, &pp.Order, &pp.IncludeInBook, &pp.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	pp.ChapterID = stringPtr(chapterID)
	return &pp, nil
}

// AddPost attaches a post to the end of the project's unassigned bucket.
// It returns ErrAlreadyInProject if the post is already attached.
func (r *ProjectPostRepository) AddPost(ctx context.Context, projectID, postID string) (*models.ProjectPost, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin add post tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_posts WHERE project_id = $1 AND post_id = $2`,
		projectID, postID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check project membership: %w", err)
	}
	if exists > 0 {
		return nil, ErrAlreadyInProject
	}

	existing, err := queryOrders(ctx, tx,
		`SELECT sort_order FROM project_posts WHERE project_id = $1 AND chapter_id IS NULL`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read unassigned orders: %w", err)
	}

	pp := &models.ProjectPost{
		ID:            newRowID(),
		ProjectID:     projectID,
		PostID:        postID,
		Order:         ordering.NextOrder(existing),
		IncludeInBook: true,
		CreatedAt:     now(),
	}
	if _, err := tx.ExecContext(ctx, insertProjectPostSQL,
		pp.ID, pp.ProjectID, pp.PostID, nil, pp.Order, pp.IncludeInBook, pp.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert project post: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project post: %w", err)
	}
	return pp, nil
}

func (r *ProjectPostRepository) GetProjectPost(ctx context.Context, projectID, projectPostID string) (*models.ProjectPost, error) {
	query := `SELECT ` + projectPostColumns + ` FROM project_posts pp WHERE pp.id = $1 AND pp.project_id = $2`
	pp, err := scanProjectPost(r.db.QueryRowContext(ctx, query, projectPostID, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project post not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get project post: %w", err)
	}
	return pp, nil
}

// GetProjectPosts lists every post attached to the project, included or not,
// with the post title.
func (r *ProjectPostRepository) GetProjectPosts(ctx context.Context, projectID string) ([]models.ProjectPostContent, error) {
	return r.queryContent(ctx, `
		SELECT `+projectPostColumns+`, p.title, p.content
		FROM project_posts pp
		JOIN posts p ON p.id = pp.post_id
		WHERE pp.project_id = $1
		ORDER BY pp.sort_order ASC, pp.id ASC
	`, projectID)
}

// GetIncludedPostsForAssembly lists the posts flagged for inclusion, with the
// markdown source the assembler renders.
func (r *ProjectPostRepository) GetIncludedPostsForAssembly(ctx context.Context, projectID string) ([]models.ProjectPostContent, error) {
	return r.queryContent(ctx, `
		SELECT `+projectPostColumns+`, p.title, p.content
		FROM project_posts pp
		JOIN posts p ON p.id = pp.post_id
		WHERE pp.project_id = $1 AND pp.include_in_book = $2
		ORDER BY pp.sort_order ASC, pp.id ASC
	`, projectID, true)
}

func (r *ProjectPostRepository) queryContent(ctx context.Context, query string, args ...any) ([]models.ProjectPostContent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query project posts: %w", err)
	}
	defer rows.Close()

	posts := []models.ProjectPostContent{}
	for rows.Next() {
		var c models.ProjectPostContent
		pp, err := scanProjectPost(rows, &c.Title, &c.Markdown)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project post row: %w", err)
		}
		c.ProjectPost = *pp
		posts = append(posts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project post rows: %w", err)
	}
	return posts, nil
}

// ReorderPosts applies a batch of order changes to posts of a single bucket in
// one transaction. Unknown ids or a batch spanning several buckets abort the
// whole batch.
func (r *ProjectPostRepository) ReorderPosts(ctx context.Context, projectID string, moves []models.OrderMove) error {
	if err := ordering.ValidateReorder(moves); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	buckets := make([]*string, 0, len(moves))
	for _, m := range moves {
		var chapterID sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT chapter_id FROM project_posts WHERE id = $1 AND project_id = $2`,
			m.ID, projectID).Scan(&chapterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("project post %s not found: %w", m.ID, err)
			}
			return fmt.Errorf("failed to read project post %s: %w", m.ID, err)
		}
		buckets = append(buckets, stringPtr(chapterID))
	}
	if err := ordering.CheckSingleBucket(buckets); err != nil {
		return err
	}

	for _, m := range moves {
		if _, err := tx.ExecContext(ctx,
			`UPDATE project_posts SET sort_order = $1 WHERE id = $2 AND project_id = $3`,
			m.Order, m.ID, projectID); err != nil {
			return fmt.Errorf("failed to reorder project post %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post reorder: %w", err)
	}
	return nil
}

// AssignPost moves a project post into a chapter, or into the unassigned
// bucket when chapterID is nil. The order value is kept as is.
func (r *ProjectPostRepository) AssignPost(ctx context.Context, projectID, projectPostID string, chapterID *string) error {
	if chapterID != nil {
		var n int
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM project_chapters WHERE id = $1 AND project_id = $2`,
			*chapterID, projectID).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check chapter: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("chapter not found: %w", sql.ErrNoRows)
		}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE project_posts SET chapter_id = $1 WHERE id = $2 AND project_id = $3`,
		nullableString(chapterID), projectPostID, projectID)
	if err != nil {
		return fmt.Errorf("failed to assign project post %s: %w", projectPostID, err)
	}
	return requireAffected(res, "project post not found")
}

func (r *ProjectPostRepository) SetIncludeInBook(ctx context.Context, projectID, projectPostID string, include bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE project_posts SET include_in_book = $1 WHERE id = $2 AND project_id = $3`,
		include, projectPostID, projectID)
	if err != nil {
		return fmt.Errorf("failed to update include flag for %s: %w", projectPostID, err)
	}
	return requireAffected(res, "project post not found")
}

// RemovePost detaches a post from the project. Remaining order values are not
// compacted and the underlying post is untouched.
func (r *ProjectPostRepository) RemovePost(ctx context.Context, projectID, projectPostID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM project_posts WHERE id = $1 AND project_id = $2`, projectPostID, projectID)
	if err != nil {
		return fmt.Errorf("failed to remove project post %s: %w", projectPostID, err)
	}
	return requireAffected(res, "project post not found")
}
