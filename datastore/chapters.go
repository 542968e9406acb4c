package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/ordering"
)

type ChapterRepository struct {
	db *sql.DB
}

func NewChapterRepository(db *sql.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

const chapterColumns = `id, project_id, title, content, sort_order, created_at`

func scanChapter(row interface{ Scan(...any) error }) (*models.Chapter, error) {
	var (
		c       models.Chapter
		content sql.NullString
	)
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &content, &c.Order, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Content = stringPtr(content)
	return &c, nil
}

// CreateChapter appends a chapter after the project's existing chapters.
func (r *ChapterRepository) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	if chapter.ID == "" {
		chapter.ID = newRowID()
	}
	chapter.CreatedAt = now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chapter tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := queryOrders(ctx, tx,
		`SELECT sort_order FROM project_chapters WHERE project_id = $1`, chapter.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to read chapter orders: %w", err)
	}
	chapter.Order = ordering.NextOrder(existing)

	query := `
		INSERT INTO project_chapters (id, project_id, title, content, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, query, chapter.ID, chapter.ProjectID, chapter.Title,
		nullableString(chapter.Content), chapter.Order, chapter.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert chapter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chapter: %w", err)
	}
	return nil
}

// GetChaptersForProject returns the project's chapters in ascending order.
func (r *ChapterRepository) GetChaptersForProject(ctx context.Context, projectID string) ([]models.Chapter, error) {
	query := `
		SELECT ` + chapterColumns + `
		FROM project_chapters
		WHERE project_id = $1
		ORDER BY sort_order ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters for project %s: %w", projectID, err)
	}
	defer rows.Close()

	chapters := []models.Chapter{}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chapter row: %w", err)
		}
		chapters = append(chapters, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapter rows: %w", err)
	}
	return chapters, nil
}

func (r *ChapterRepository) GetChapterByID(ctx context.Context, projectID, chapterID string) (*models.Chapter, error) {
	query := `SELECT ` + chapterColumns + ` FROM project_chapters WHERE id = $1 AND project_id = $2`
	c, err := scanChapter(r.db.QueryRowContext(ctx, query, chapterID, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chapter not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get chapter by ID: %w", err)
	}
	return c, nil
}

// ReorderChapters applies every move or none of them.
func (r *ChapterRepository) ReorderChapters(ctx context.Context, projectID string, moves []models.OrderMove) error {
	if err := ordering.ValidateReorder(moves); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE project_chapters SET sort_order = $1 WHERE id = $2 AND project_id = $3`
	for _, m := range moves {
		res, err := tx.ExecContext(ctx, query, m.Order, m.ID, projectID)
		if err != nil {
			return fmt.Errorf("failed to reorder chapter %s: %w", m.ID, err)
		}
		if err := requireAffected(res, "chapter "+m.ID+" not found"); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chapter reorder: %w", err)
	}
	return nil
}

// DeleteChapter removes a chapter. Its posts move to the unassigned bucket and
// keep their order values.
func (r *ChapterRepository) DeleteChapter(ctx context.Context, projectID, chapterID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chapter delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE project_posts SET chapter_id = NULL WHERE chapter_id = $1 AND project_id = $2`,
		chapterID, projectID); err != nil {
		return fmt.Errorf("failed to unassign chapter posts: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM project_chapters WHERE id = $1 AND project_id = $2`, chapterID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete chapter %s: %w", chapterID, err)
	}
	if err := requireAffected(res, "chapter not found"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chapter delete: %w", err)
	}
	return nil
}

func queryOrders(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []int
	for rows.Next() {
		var o int
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
